package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hordecore/server/internal/config"
	"go.uber.org/zap/zaptest"
)

// Runs against a real database when HORDECORE_TEST_DSN is set.
func TestRunRepoRoundTrip(t *testing.T) {
	dsn := os.Getenv("HORDECORE_TEST_DSN")
	if dsn == "" {
		t.Skip("HORDECORE_TEST_DSN not set")
	}
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := RunMigrations(ctx, db.Pool, log); err != nil {
		t.Fatal(err)
	}

	repo := NewRunRepo(db)
	start := time.Now().UTC().Truncate(time.Millisecond)
	id, err := repo.SaveRun(ctx, RunSummary{
		ServerName: "test",
		Seed:       42,
		StartedAt:  start,
		EndedAt:    start.Add(time.Minute),
		Ticks:      3600,
		Spawned:    500,
		Applied:    120,
		Killed:     80,
		Damage:     2400,
		Rejections: map[string]uint64{"cooldown": 30, "dead": 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == uuid.Nil {
		t.Fatal("SaveRun returned nil id")
	}
	t.Cleanup(func() {
		db.Pool.Exec(context.Background(), `DELETE FROM runs WHERE id = $1`, id)
	})

	got, err := repo.Rejections(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got["cooldown"] != 30 || got["dead"] != 4 {
		t.Errorf("rejections = %v", got)
	}

	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range recent {
		if r.ID == id {
			found = true
			if r.Ticks != 3600 || r.Seed != 42 {
				t.Errorf("stored run = %+v", r)
			}
		}
	}
	if !found {
		t.Errorf("run %s not in Recent", id)
	}
}
