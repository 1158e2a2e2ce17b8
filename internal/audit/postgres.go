package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/warestack/wms-predict/internal/models"
)

const insertPrediction = `
INSERT INTO ml_predictions
    (prediction_id, model_type, model_version, entity_type, entity_id,
     input_features, output, confidence, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// PostgresLog appends prediction records to the ml_predictions table.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog opens a pooled connection to dsn and pings it so that a
// bad DSN fails at startup.
func NewPostgresLog(ctx context.Context, dsn string) (*PostgresLog, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	return &PostgresLog{db: db}, nil
}

// NewPostgresLogFromDB wraps an existing pool. Used in tests with a stub
// driver.
func NewPostgresLogFromDB(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts one immutable row. Feature and output snapshots are
// stored as JSON documents.
func (l *PostgresLog) Append(ctx context.Context, record models.PredictionRecord) error {
	features, err := json.Marshal(record.InputFeatures)
	if err != nil {
		return &models.AuditWriteError{Err: fmt.Errorf("encode input features: %w", err)}
	}
	output, err := json.Marshal(record.Output)
	if err != nil {
		return &models.AuditWriteError{Err: fmt.Errorf("encode output: %w", err)}
	}

	_, err = l.db.ExecContext(ctx, insertPrediction,
		record.PredictionID,
		record.ModelType,
		record.ModelVersion,
		record.EntityType,
		record.EntityID,
		features,
		output,
		record.Confidence,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return &models.AuditWriteError{Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (l *PostgresLog) Close() error { return l.db.Close() }
