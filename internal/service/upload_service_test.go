package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/repository"
)

type storageStub struct {
	uploaded bytes.Buffer
	name     string
	err      error
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.name = name
	s.uploaded.Reset()
	_, err := s.uploaded.ReadFrom(reader)
	if err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + name, nil
}

type deferredStub struct {
	keys   []string
	delays []time.Duration
}

func (d *deferredStub) After(delay time.Duration, key string) bool {
	d.keys = append(d.keys, key)
	d.delays = append(d.delays, delay)
	return true
}

const rosterCSV = "email,name,subject,attendance,marks,feesPaid\n" +
	"asha@example.com,Asha,Math,40,30,false\n" +
	"asha@example.com,Asha,Phy,50,45,false\n" +
	"ravi@example.com,Ravi,Math,90,85,true\n"

func newUploadService(t *testing.T, storage FileStorage, deferred DeferredDispatcher, maxSizeMB int) RosterUploadService {
	t.Helper()
	db := setupRiskDB(t)
	ingest := NewIngestService(repository.NewUserRepository(db), repository.NewAcademicRecordRepository(db), testLogger())
	return NewRosterUploadService(ingest, storage, deferred, 10*time.Second, maxSizeMB, testLogger())
}

func TestUploadServiceRejectsSize(t *testing.T) {
	svc := newUploadService(t, nil, nil, 1)

	file := buildFileHeader(t, "roster.csv", bytes.Repeat([]byte("a"), 2*1024*1024))

	_, err := svc.Upload(context.Background(), file, "")
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestUploadServiceRequiresFile(t *testing.T) {
	svc := newUploadService(t, nil, nil, 5)

	_, err := svc.Upload(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrUploadMissing)
}

func TestUploadServiceTypeValidation(t *testing.T) {
	svc := newUploadService(t, nil, nil, 5)

	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	file := buildFileHeader(t, "image.png", pngHeader)
	_, err := svc.Upload(context.Background(), file, "")
	require.ErrorIs(t, err, ErrUnsupportedRoster)
}

func TestUploadServiceSuccess(t *testing.T) {
	storage := &storageStub{}
	deferred := &deferredStub{}
	svc := newUploadService(t, storage, deferred, 5)

	file := buildFileHeader(t, "Spring Roster.csv", []byte(rosterCSV))

	resp, err := svc.Upload(context.Background(), file, "req-1")
	require.NoError(t, err)
	require.Len(t, resp.Processed, 2)
	require.True(t, resp.Processed[0].Success)
	require.Equal(t, "asha@example.com", resp.Processed[0].Email)
	require.Equal(t, "https://cdn.example.com/spring-roster.csv", resp.ArchiveURL)
	require.Equal(t, rosterCSV, storage.uploaded.String())
	require.True(t, resp.DispatchScheduled)
	require.Equal(t, []string{"req-1"}, deferred.keys)
	require.Equal(t, []time.Duration{10 * time.Second}, deferred.delays)
}

func TestUploadServiceArchiveFailureIsNotFatal(t *testing.T) {
	storage := &storageStub{err: errors.New("cloud offline")}
	svc := newUploadService(t, storage, nil, 5)

	resp, err := svc.Upload(context.Background(), buildFileHeader(t, "roster.csv", []byte(rosterCSV)), "")
	require.NoError(t, err)
	require.Empty(t, resp.ArchiveURL)
	require.Len(t, resp.Processed, 2)
	require.False(t, resp.DispatchScheduled)
}

func TestUploadServiceSkipsDispatchWhenNothingStored(t *testing.T) {
	deferred := &deferredStub{}
	svc := newUploadService(t, nil, deferred, 5)

	file := buildFileHeader(t, "roster.csv", []byte("email,name,subject\n,,Math\n"))
	resp, err := svc.Upload(context.Background(), file, "")
	require.NoError(t, err)
	require.Equal(t, dto.IngestResult{Processed: []dto.IngestOutcome{}, Skipped: 1}, resp.IngestResult)
	require.False(t, resp.DispatchScheduled)
	require.Empty(t, deferred.keys)
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
