// Package recorder turns finished pipeline runs into RunRecords and appends
// them to the run log.
package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/pkg/models"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "20060102_150405"

// FormatTimestamp renders t with microsecond precision, e.g. 20240131_154502_123456.
// It sorts lexically and is safe to use in file names.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format(timestampLayout), t.Nanosecond()/int(time.Microsecond))
}

// RunData is everything a pipeline run produced.
type RunData struct {
	Time        time.Time
	Filename    string
	Method      string
	Lang        string
	GroundTruth string
	Recognition models.RecognitionResult
	Score       *models.ScoreResult
}

// Sink receives every record after it reached the run log.
type Sink interface {
	Write(ctx context.Context, rec models.RunRecord) error
}

// Recorder appends run records to a CSVLog and mirrors them to sinks.
type Recorder struct {
	log   *CSVLog
	sinks []Sink
}

// NewRecorder creates a recorder writing to log.
func NewRecorder(log *CSVLog, sinks ...Sink) *Recorder {
	return &Recorder{log: log, sinks: sinks}
}

// Log returns the underlying run log
func (r *Recorder) Log() *CSVLog {
	return r.log
}

// Record builds the record for data and appends it to the log. A failed
// append is returned; a failed sink write is only logged.
func (r *Recorder) Record(ctx context.Context, data RunData) (models.RunRecord, error) {
	rec := NewRunRecord(data)

	if err := r.log.Append(rec); err != nil {
		return models.RunRecord{}, err
	}

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			logger.WithFields(logrus.Fields{
				"timestamp": rec.Timestamp,
				"sink":      fmt.Sprintf("%T", sink),
			}).WithError(err).Warn("Failed to mirror run record")
		}
	}

	logger.WithFields(logrus.Fields{
		"timestamp":     rec.Timestamp,
		"filename":      rec.Filename,
		"method":        rec.Method,
		"processing_ms": rec.ProcessingMs,
		"scored":        rec.Scored(),
	}).Debug("Run recorded")

	return rec, nil
}

// NewRunRecord builds the record for data without persisting it.
func NewRunRecord(data RunData) models.RunRecord {
	rec := models.RunRecord{
		Timestamp:    FormatTimestamp(data.Time),
		Filename:     data.Filename,
		Method:       data.Method,
		Lang:         data.Lang,
		ProcessingMs: data.Recognition.ProcessingMs,
		GroundTruth:  strings.TrimSpace(data.GroundTruth),
		OCRText:      data.Recognition.Text,
	}
	if data.Score != nil {
		acc := data.Score.CharAccuracy
		dist := data.Score.EditDistance
		rec.CharAccuracy = &acc
		rec.EditDistance = &dist
	}
	return rec
}
