// Package roster turns uploaded spreadsheets into untyped roster rows.
package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/risk-alert-api/internal/dto"
)

// ErrUnsupportedRoster indicates the upload is neither CSV nor XLSX.
var ErrUnsupportedRoster = errors.New("unsupported roster format: upload a CSV or XLSX file")

// ErrEmptyRoster indicates the file has no header row.
var ErrEmptyRoster = errors.New("roster file has no header row")

// ErrMalformedRoster indicates the file was recognised but could not be read.
var ErrMalformedRoster = errors.New("roster file is malformed")

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeCSV  = "text/csv"
	mimeText = "text/plain"
)

// Format names the detected roster encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Detect sniffs the payload and reports its roster format.
func Detect(payload []byte) (Format, string, error) {
	detected := mimetype.Detect(payload)
	for m := detected; m != nil; m = m.Parent() {
		switch {
		case m.Is(mimeXLSX), m.Is(mimeZip):
			return FormatXLSX, detected.String(), nil
		case m.Is(mimeCSV), m.Is(mimeText):
			return FormatCSV, detected.String(), nil
		}
	}
	return "", detected.String(), ErrUnsupportedRoster
}

// Parse reads a CSV or XLSX roster. The first row is the header; blank rows are dropped.
func Parse(payload []byte) ([]dto.RawRosterRow, Format, error) {
	format, mime, err := Detect(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w (detected %s)", err, mime)
	}

	var table [][]string
	switch format {
	case FormatXLSX:
		table, err = readXLSX(payload)
	default:
		table, err = readCSV(payload)
	}
	if err != nil {
		return nil, format, err
	}

	rows, err := toRows(table)
	if err != nil {
		return nil, format, err
	}
	return rows, format, nil
}

func readCSV(payload []byte) ([][]string, error) {
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var table [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv: %v", ErrMalformedRoster, err)
		}
		table = append(table, record)
	}
	return table, nil
}

func readXLSX(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		if errors.Is(err, excelize.ErrWorkbookFileFormat) {
			return nil, ErrUnsupportedRoster
		}
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrMalformedRoster, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptyRoster
	}

	table, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheetName, err)
	}
	return table, nil
}

func toRows(table [][]string) ([]dto.RawRosterRow, error) {
	if len(table) == 0 {
		return nil, ErrEmptyRoster
	}

	header := make([]string, len(table[0]))
	for i, name := range table[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows := make([]dto.RawRosterRow, 0, len(table)-1)
	for _, record := range table[1:] {
		if isBlank(record) {
			continue
		}

		row := make(dto.RawRosterRow, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
