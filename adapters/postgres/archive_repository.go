// Package postgres persists batch output for cross-session comparison. The
// archive is optional: the pipeline runs entirely in memory and this adapter
// is only wired when DATABASE_URL is set.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gaitlab/domain/core"
	"gaitlab/domain/metrics"
	"gaitlab/domain/model"
	"gaitlab/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_records (
	batch_id     TEXT NOT NULL,
	subject_id   TEXT NOT NULL,
	trial_type   TEXT NOT NULL,
	metric       TEXT NOT NULL,
	condition    TEXT NOT NULL,
	value        DOUBLE PRECISION,
	missing      BOOLEAN NOT NULL DEFAULT FALSE,
	strides_used INT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (batch_id, subject_id, trial_type, metric, condition)
);

CREATE TABLE IF NOT EXISTS model_results (
	batch_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	trial_type TEXT NOT NULL,
	condition  TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (batch_id, kind, trial_type, condition, outcome)
);
`

// ArchiveRepository stores committed metric records and model results.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository connects to the archive database and ensures the
// schema exists.
func NewArchiveRepository(databaseURL string) (*ArchiveRepository, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to archive database")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ensure archive schema")
	}
	return &ArchiveRepository{db: db}, nil
}

// Close releases the connection pool.
func (r *ArchiveRepository) Close() error {
	return r.db.Close()
}

// StoreMetrics writes a batch's metric records in one transaction.
func (r *ArchiveRepository) StoreMetrics(ctx context.Context, batchID core.BatchID, records []metrics.Record) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range records {
		var value interface{}
		if !rec.Missing {
			value = rec.Value
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metric_records (batch_id, subject_id, trial_type, metric, condition, value, missing, strides_used)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (batch_id, subject_id, trial_type, metric, condition)
			DO UPDATE SET value = EXCLUDED.value, missing = EXCLUDED.missing, strides_used = EXCLUDED.strides_used
		`, batchID, rec.Key.SubjectID, rec.Key.TrialType, rec.Key.Metric, rec.Key.Condition,
			value, rec.Missing, rec.StridesUsed)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StoreModels writes a batch's model results as JSON documents.
func (r *ArchiveRepository) StoreModels(ctx context.Context, batchID core.BatchID, results []*model.Result) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, res := range results {
		doc, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO model_results (batch_id, kind, trial_type, condition, outcome, result)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (batch_id, kind, trial_type, condition, outcome)
			DO UPDATE SET result = EXCLUDED.result
		`, batchID, res.Kind, res.TrialType, res.Condition, res.Outcome, doc)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBatches returns the archived batch IDs, newest first.
func (r *ArchiveRepository) ListBatches(ctx context.Context, limit int) ([]core.BatchID, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []core.BatchID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT batch_id FROM metric_records
		GROUP BY batch_id
		ORDER BY MAX(created_at) DESC
		LIMIT $1
	`, limit)
	return ids, err
}
