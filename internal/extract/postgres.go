package extract

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/models"
)

const insertFeatureValue = `
INSERT INTO ml_feature_values
    (feature_set, entity_id, period_start, feature_name, feature_value, computed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (feature_set, entity_id, period_start, feature_name)
DO UPDATE SET feature_value = EXCLUDED.feature_value, computed_at = EXCLUDED.computed_at`

// PostgresSink upserts feature values into ml_feature_values. Each vector
// is written in one transaction so a partially stored period is never
// visible to training jobs.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a pooled connection to dsn and verifies it.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feature db: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping feature db: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// NewPostgresSinkFromDB wraps an existing pool. Used in tests.
func NewPostgresSinkFromDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Write stores every feature of one vector.
func (s *PostgresSink) Write(ctx context.Context, set features.FeatureSet, vec models.FeatureVector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feature tx: %w", err)
	}
	computedAt := time.Now().UTC()
	for _, f := range vec.Features {
		if _, err := tx.ExecContext(ctx, insertFeatureValue,
			string(set), vec.EntityID, vec.Period.UTC(), f.Name, f.Value, computedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert feature %s: %w", f.Name, err)
		}
	}
	return tx.Commit()
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error { return s.db.Close() }
