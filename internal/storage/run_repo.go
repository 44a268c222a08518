package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"lectio/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// InsertRun records one finished pipeline run; stages is marshaled to jsonb.
func (r *RunRepo) InsertRun(ctx context.Context, run models.IngestRun, stages any) error {
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal run stages: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO ingest_runs (run_id, course, status, chunk_count, vector_count, fail_stage, fail_reason, stages, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, $9, $10)`,
		run.RunID, run.Course, run.Status, run.ChunkCount, run.VectorCount,
		run.FailStage, run.FailReason, stagesJSON, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

func (r *RunRepo) ListRunsByCourse(ctx context.Context, course string, limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id::text, course, status, chunk_count, vector_count,
       COALESCE(fail_stage,''), COALESCE(fail_reason,''), started_at, finished_at
FROM ingest_runs
WHERE course=$1
ORDER BY started_at DESC
LIMIT $2`, course, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.IngestRun, 0, limit)
	for rows.Next() {
		var run models.IngestRun
		if err := rows.Scan(&run.RunID, &run.Course, &run.Status, &run.ChunkCount, &run.VectorCount,
			&run.FailStage, &run.FailReason, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return out, nil
}
