package recorder

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/pkg/models"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func readRows(t *testing.T, path string) (string, [][]string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	content := string(raw)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("Log is not valid CSV: %v", err)
	}
	return content, rows
}

func sampleData(i int) RunData {
	return RunData{
		Time:        time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC),
		Filename:    fmt.Sprintf("scan_%d.png", i),
		Method:      "clahe",
		Lang:        "eng",
		GroundTruth: "  HELLO WORLD ",
		Recognition: models.RecognitionResult{Text: "HELLO W0RLD", ProcessingMs: 12.345},
		Score:       &models.ScoreResult{EditDistance: 1, CharAccuracy: 1 - 1.0/11},
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC)
	if got := FormatTimestamp(ts); got != "20240309_140507_123456" {
		t.Errorf("Expected 20240309_140507_123456, got %s", got)
	}
	if got := FormatTimestamp(ts.Truncate(time.Second)); got != "20240309_140507_000000" {
		t.Errorf("Expected zero padded micros, got %s", got)
	}
}

func TestNewRunRecord(t *testing.T) {
	rec := NewRunRecord(sampleData(1))
	if rec.GroundTruth != "HELLO WORLD" {
		t.Errorf("Expected trimmed ground truth, got %q", rec.GroundTruth)
	}
	if !rec.Scored() || *rec.EditDistance != 1 {
		t.Errorf("Expected scored record, got %+v", rec)
	}

	data := sampleData(2)
	data.Score = nil
	data.GroundTruth = ""
	if rec := NewRunRecord(data); rec.Scored() {
		t.Error("Expected unscored record without a score")
	}
}

func TestCSVLog_HeaderOnceAndFormatting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.csv")
	r := NewRecorder(NewCSVLog(path))

	if _, err := r.Record(context.Background(), sampleData(1)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	unscored := sampleData(2)
	unscored.Score = nil
	unscored.GroundTruth = ""
	if _, err := r.Record(context.Background(), unscored); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	content, rows := readRows(t, path)
	if !strings.HasPrefix(content, utf8BOM) {
		t.Error("Expected log to start with a UTF-8 BOM")
	}
	if strings.Count(content, utf8BOM) != 1 {
		t.Error("Expected exactly one BOM")
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d rows", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Header, ",") {
		t.Errorf("Unexpected header: %v", rows[0])
	}

	want := []string{"20240309_140507_123456", "scan_1.png", "clahe", "eng", "12.35", "HELLO WORLD", "HELLO W0RLD", "0.9091", "1"}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Errorf("Expected row %v, got %v", want, rows[1])
	}
	for i, row := range rows {
		if len(row) != len(Header) {
			t.Errorf("Row %d has %d columns", i, len(row))
		}
	}
	if rows[2][5] != "" || rows[2][7] != "" || rows[2][8] != "" {
		t.Errorf("Expected empty optional fields, got %v", rows[2])
	}
}

func TestCSVLog_ExistingEmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewCSVLog(path).Append(NewRunRecord(sampleData(1))); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, rows := readRows(t, path)
	if len(rows) != 2 || rows[0][0] != "timestamp" {
		t.Errorf("Expected header then row, got %v", rows)
	}
}

func TestCSVLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	r := NewRecorder(NewCSVLog(path))

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := sampleData(i)
			data.Recognition.Text = strings.Repeat("line, with \"quotes\"\n", 20)
			if _, err := r.Record(context.Background(), data); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Unexpected error: %v", err)
	}

	content, rows := readRows(t, path)
	if strings.Count(content, "timestamp,filename") != 1 {
		t.Error("Expected header exactly once")
	}
	if len(rows) != n+1 {
		t.Fatalf("Expected %d rows, got %d", n+1, len(rows))
	}
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		if len(row) != len(Header) {
			t.Fatalf("Malformed row: %v", row)
		}
		seen[row[1]] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d distinct filenames, got %d", n, len(seen))
	}
}

func TestCSVLog_AppendFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRecorder(NewCSVLog(filepath.Join(blocker, "results.csv")))
	_, err := r.Record(context.Background(), sampleData(1))
	if !apperrors.IsType(err, apperrors.ErrorTypeStorage) {
		t.Errorf("Expected storage error, got %v", err)
	}
}

func TestCSVLog_Records(t *testing.T) {
	log := NewCSVLog(filepath.Join(t.TempDir(), "results.csv"))

	recs, err := log.Records()
	if err != nil || len(recs) != 0 {
		t.Fatalf("Expected no records for a missing log, got %v, %v", recs, err)
	}

	if err := log.Append(NewRunRecord(sampleData(1))); err != nil {
		t.Fatal(err)
	}
	unscored := sampleData(2)
	unscored.Score = nil
	if err := log.Append(NewRunRecord(unscored)); err != nil {
		t.Fatal(err)
	}

	recs, err = log.Records()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].CharAccuracy == nil || *recs[0].CharAccuracy != 0.9091 {
		t.Errorf("Expected accuracy 0.9091, got %v", recs[0].CharAccuracy)
	}
	if recs[1].Scored() {
		t.Error("Expected second record to be unscored")
	}
}

func TestCSVLog_WriteTo(t *testing.T) {
	log := NewCSVLog(filepath.Join(t.TempDir(), "results.csv"))
	var buf bytes.Buffer
	if n, err := log.WriteTo(&buf); err != nil || n != 0 {
		t.Fatalf("Expected empty copy for missing log, got %d, %v", n, err)
	}
	if err := log.Append(NewRunRecord(sampleData(1))); err != nil {
		t.Fatal(err)
	}
	if _, err := log.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "scan_1.png") {
		t.Errorf("Expected copied log to contain the row, got %q", buf.String())
	}
}

type recordingSink struct {
	mu   sync.Mutex
	recs []models.RunRecord
	err  error
}

func (s *recordingSink) Write(ctx context.Context, rec models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func TestRecorder_Sinks(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("db down")}
	r := NewRecorder(NewCSVLog(filepath.Join(t.TempDir(), "results.csv")), failing, ok)

	rec, err := r.Record(context.Background(), sampleData(1))
	if err != nil {
		t.Fatalf("Sink failure must not fail the run: %v", err)
	}
	if len(ok.recs) != 1 || ok.recs[0].Timestamp != rec.Timestamp {
		t.Errorf("Expected sink to receive the record, got %v", ok.recs)
	}
	if len(failing.recs) != 1 {
		t.Error("Expected failing sink to be called")
	}
}

func TestRecorder_AppendFailureSkipsSinks(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	r := NewRecorder(NewCSVLog(filepath.Join(blocker, "results.csv")), sink)

	if _, err := r.Record(context.Background(), sampleData(1)); err == nil {
		t.Fatal("Expected append error")
	}
	if len(sink.recs) != 0 {
		t.Error("Sinks must not see records that were not logged")
	}
}
