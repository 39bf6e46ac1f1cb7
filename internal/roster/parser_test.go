package roster

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/risk-alert-api/internal/dto"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseCSV(t *testing.T) {
	payload := []byte("\xef\xbb\xbfemail, name ,subject,attendance,marks,feesPaid\n" +
		"asha@example.com,Asha,Math,80,70,true\n" +
		",,,,,\n" +
		"ravi@example.com,Ravi,Phy,55\n")

	rows, format, err := Parse(payload)
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)
	require.Len(t, rows, 2)
	require.Equal(t, dto.RawRosterRow{
		"email": "asha@example.com", "name": "Asha", "subject": "Math",
		"attendance": "80", "marks": "70", "feesPaid": "true",
	}, rows[0])
	require.Equal(t, "55", rows[1]["attendance"])
	require.Equal(t, "", rows[1]["marks"])
}

func TestParseXLSX(t *testing.T) {
	payload := buildWorkbook(t, [][]any{
		{"email", "name", "subject", "attendance", "marks", "feesPaid"},
		{"asha@example.com", "Asha", "Math", 80, 70, true},
		{},
		{"ravi@example.com", "Ravi", "Phy", 55.5, 40, false},
	})

	rows, format, err := Parse(payload)
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, format)
	require.Len(t, rows, 2)
	require.Equal(t, "asha@example.com", rows[0]["email"])
	require.Equal(t, "80", rows[0]["attendance"])
	require.Equal(t, "55.5", rows[1]["attendance"])
	require.Equal(t, "Phy", rows[1]["subject"])
}

func TestParseRejectsUnsupported(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	_, _, err := Parse(png)
	require.ErrorIs(t, err, ErrUnsupportedRoster)
}

func TestParseEmptyCSV(t *testing.T) {
	_, _, err := Parse([]byte(""))
	require.Error(t, err)
}

func TestDetectFormats(t *testing.T) {
	format, _, err := Detect([]byte("email,name\na@example.com,A\n"))
	require.NoError(t, err)
	require.Equal(t, FormatCSV, format)

	format, _, err = Detect(buildWorkbook(t, [][]any{{"email"}}))
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, format)

	require.True(t, bytes.HasPrefix(buildWorkbook(t, nil), []byte("PK")))
}

func TestParseMalformedCSV(t *testing.T) {
	_, _, err := Parse([]byte("email,name\n\"alice@example.com,Alice\n"))
	require.ErrorIs(t, err, ErrMalformedRoster)
}
