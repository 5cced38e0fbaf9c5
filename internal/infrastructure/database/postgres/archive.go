package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/search"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// ArchiveRepository persists molecule records to PostgreSQL.  It implements
// search.Recorder and is usually combined with the CSV ledger through a
// MultiRecorder.
type ArchiveRepository struct {
	pool   *Pool
	logger logging.Logger
}

// NewArchiveRepository creates the repository on an open pool.
func NewArchiveRepository(pool *Pool, log logging.Logger) *ArchiveRepository {
	return &ArchiveRepository{pool: pool, logger: log}
}

const insertMoleculeSQL = `
INSERT INTO molecules (run_id, generation, smiles, canonical, reward, objectives, elapsed_seconds, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Record implements search.Recorder.
func (r *ArchiveRepository) Record(ctx context.Context, rec search.MoleculeRecord) error {
	objectives, err := json.Marshal(rec.Objectives)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode objectives")
	}
	_, err = r.pool.Pgx().Exec(ctx, insertMoleculeSQL,
		rec.RunID,
		rec.Generation,
		rec.SMILES,
		rec.Canonical,
		rec.Reward,
		objectives,
		rec.Elapsed.Seconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to archive molecule")
	}
	return nil
}

// Close implements search.Recorder.  The pool is owned by the caller.
func (r *ArchiveRepository) Close() error { return nil }

// BestRow is one entry of the per-run leaderboard.
type BestRow struct {
	Canonical string
	Reward    float64
	CreatedAt time.Time
}

const bestByRunSQL = `
SELECT DISTINCT ON (canonical) canonical, reward, created_at
FROM molecules
WHERE run_id = $1
ORDER BY canonical, reward DESC
LIMIT $2`

// BestByRun returns up to limit distinct molecules of a run, each with its
// highest observed reward.
func (r *ArchiveRepository) BestByRun(ctx context.Context, runID string, limit int) ([]BestRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Pgx().Query(ctx, bestByRunSQL, runID, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query run leaderboard")
	}
	defer rows.Close()

	var out []BestRow
	for rows.Next() {
		var row BestRow
		if err := rows.Scan(&row.Canonical, &row.Reward, &row.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan leaderboard row")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

const countByRunSQL = `SELECT COUNT(*) FROM molecules WHERE run_id = $1`

// CountByRun returns the number of archived molecules for a run.
func (r *ArchiveRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	if err := r.pool.Pgx().QueryRow(ctx, countByRunSQL, runID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count archived molecules")
	}
	return count, nil
}
