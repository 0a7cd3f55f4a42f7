package recorder

import (
	"context"
	"database/sql"
	"fmt"

	"go-ocr-enhancer/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS ocr_runs (
	id INT AUTO_INCREMENT PRIMARY KEY,
	run_timestamp VARCHAR(32) NOT NULL,
	filename VARCHAR(255) NOT NULL,
	method VARCHAR(32) NOT NULL,
	lang VARCHAR(16) NOT NULL,
	processing_ms DOUBLE NOT NULL,
	ground_truth LONGTEXT,
	ocr_text LONGTEXT,
	char_accuracy DOUBLE NULL,
	edit_distance INT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`

const insertRun = `INSERT INTO ocr_runs
	(run_timestamp, filename, method, lang, processing_ms, ground_truth, ocr_text, char_accuracy, edit_distance)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// MySQLSink mirrors run records into the ocr_runs table.
type MySQLSink struct {
	db *sql.DB
}

// OpenMySQLSink connects to dsn and makes sure the ocr_runs table exists.
func OpenMySQLSink(ctx context.Context, dsn string) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	sink := NewMySQLSink(db)
	if err := sink.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

// NewMySQLSink wraps an existing connection pool
func NewMySQLSink(db *sql.DB) *MySQLSink {
	return &MySQLSink{db: db}
}

func (s *MySQLSink) ensureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create ocr_runs table: %w", err)
	}
	return nil
}

// Write implements Sink.
func (s *MySQLSink) Write(ctx context.Context, rec models.RunRecord) error {
	var accuracy sql.NullFloat64
	if rec.CharAccuracy != nil {
		accuracy = sql.NullFloat64{Float64: *rec.CharAccuracy, Valid: true}
	}
	var distance sql.NullInt64
	if rec.EditDistance != nil {
		distance = sql.NullInt64{Int64: int64(*rec.EditDistance), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, insertRun,
		rec.Timestamp, rec.Filename, rec.Method, rec.Lang, rec.ProcessingMs,
		rec.GroundTruth, rec.OCRText, accuracy, distance)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *MySQLSink) Close() error {
	return s.db.Close()
}
