package recorder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/pkg/models"

	"github.com/shopspring/decimal"
)

// utf8BOM lets spreadsheet tools detect the encoding of non-ASCII transcriptions.
const utf8BOM = "\ufeff"

// Header is the fixed column order of the run log.
var Header = []string{
	"timestamp",
	"filename",
	"method",
	"lang",
	"processing_ms",
	"ground_truth",
	"ocr_text",
	"char_accuracy",
	"edit_distance",
}

// CSVLog is an append-only CSV file shared by every pipeline run in the
// process. All access goes through mu.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog creates a log backed by path. The file is created on first append.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// Path returns the backing file path
func (l *CSVLog) Path() string {
	return l.path
}

// Append writes rec as one row, preceded by the header when the file is new
// or empty. The row is written with a single Write call.
func (l *CSVLog) Append(rec models.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewStorageError("failed to create log directory", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return apperrors.NewStorageError("failed to open run log", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperrors.NewStorageError("failed to stat run log", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		buf.WriteString(utf8BOM)
		if err := w.Write(Header); err != nil {
			return apperrors.NewInternalError("failed to encode header", err)
		}
	}
	if err := w.Write(encodeRecord(rec)); err != nil {
		return apperrors.NewInternalError("failed to encode run record", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewInternalError("failed to encode run record", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return apperrors.NewStorageError("failed to append run record", err)
	}
	return nil
}

// WriteTo copies the whole log to w. A missing log writes nothing.
func (l *CSVLog) WriteTo(w io.Writer) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, apperrors.NewStorageError("failed to open run log", err)
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Records parses every row of the log.
func (l *CSVLog) Records() ([]models.RunRecord, error) {
	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		return nil, err
	}
	data := bytes.TrimPrefix(buf.Bytes(), []byte(utf8BOM))
	if len(data) == 0 {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Header)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, apperrors.NewStorageError("run log is malformed", err)
	}

	records := make([]models.RunRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 && strings.Join(row, ",") == strings.Join(Header, ",") {
			continue
		}
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("run log row %d is malformed", i+1), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeRecord(rec models.RunRecord) []string {
	accuracy := ""
	if rec.CharAccuracy != nil {
		accuracy = decimal.NewFromFloat(*rec.CharAccuracy).StringFixed(4)
	}
	distance := ""
	if rec.EditDistance != nil {
		distance = strconv.Itoa(*rec.EditDistance)
	}
	return []string{
		rec.Timestamp,
		rec.Filename,
		rec.Method,
		rec.Lang,
		decimal.NewFromFloat(rec.ProcessingMs).StringFixed(2),
		rec.GroundTruth,
		rec.OCRText,
		accuracy,
		distance,
	}
}

func decodeRecord(row []string) (models.RunRecord, error) {
	rec := models.RunRecord{
		Timestamp:   row[0],
		Filename:    row[1],
		Method:      row[2],
		Lang:        row[3],
		GroundTruth: row[5],
		OCRText:     row[6],
	}

	ms, err := decimal.NewFromString(row[4])
	if err != nil {
		return rec, fmt.Errorf("processing_ms: %w", err)
	}
	rec.ProcessingMs = ms.InexactFloat64()

	if row[7] != "" {
		acc, err := decimal.NewFromString(row[7])
		if err != nil {
			return rec, fmt.Errorf("char_accuracy: %w", err)
		}
		v := acc.InexactFloat64()
		rec.CharAccuracy = &v
	}
	if row[8] != "" {
		d, err := strconv.Atoi(row[8])
		if err != nil {
			return rec, fmt.Errorf("edit_distance: %w", err)
		}
		rec.EditDistance = &d
	}
	return rec, nil
}
