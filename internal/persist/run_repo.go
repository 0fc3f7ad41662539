package persist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RunSummary is one finished simulation run.
type RunSummary struct {
	ID         uuid.UUID
	ServerName string
	Seed       uint64
	StartedAt  time.Time
	EndedAt    time.Time
	Ticks      uint64
	Spawned    uint64
	Swept      uint64
	PeakLive   int
	Applied    uint64
	Killed     uint64
	Damage     float64
	GameOver   bool
	Rejections map[string]uint64 // reason → count
}

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun stores a run and its rejection counts in one transaction. A zero
// ID is replaced with a fresh UUID, which is returned.
func (r *RunRepo) SaveRun(ctx context.Context, s RunSummary) (uuid.UUID, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save run begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (id, server_name, seed, started_at, ended_at, ticks,
		                   spawned, swept, peak_live, applied, killed, damage, game_over)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.ServerName, int64(s.Seed), s.StartedAt, s.EndedAt, int64(s.Ticks),
		int64(s.Spawned), int64(s.Swept), s.PeakLive, int64(s.Applied), int64(s.Killed), s.Damage, s.GameOver,
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	reasons := make([]string, 0, len(s.Rejections))
	for reason := range s.Rejections {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	batch := &pgx.Batch{}
	for _, reason := range reasons {
		batch.Queue(`INSERT INTO run_rejections (run_id, reason, count) VALUES ($1, $2, $3)`,
			s.ID, reason, int64(s.Rejections[reason]))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return uuid.Nil, fmt.Errorf("insert run rejections: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("save run commit: %w", err)
	}
	return s.ID, nil
}

// Recent returns the latest runs, newest first, without rejection counts.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, server_name, seed, started_at, ended_at, ticks,
		        spawned, swept, peak_live, applied, killed, damage, game_over
		 FROM runs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunSummary
	for rows.Next() {
		var s RunSummary
		var seed, ticks, spawned, swept, applied, killed int64
		if err := rows.Scan(&s.ID, &s.ServerName, &seed, &s.StartedAt, &s.EndedAt, &ticks,
			&spawned, &swept, &s.PeakLive, &applied, &killed, &s.Damage, &s.GameOver); err != nil {
			return nil, err
		}
		s.Seed, s.Ticks = uint64(seed), uint64(ticks)
		s.Spawned, s.Swept = uint64(spawned), uint64(swept)
		s.Applied, s.Killed = uint64(applied), uint64(killed)
		result = append(result, s)
	}
	return result, rows.Err()
}

// Rejections loads the per-reason rejection counts of one run.
func (r *RunRepo) Rejections(ctx context.Context, id uuid.UUID) (map[string]uint64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT reason, count FROM run_rejections WHERE run_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = uint64(n)
	}
	return out, rows.Err()
}
