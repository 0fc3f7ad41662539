package replay

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hordecore/server/internal/net/frame"
)

func TestRecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.hcrp")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := Create(path, Meta{ServerName: "test", Seed: 99, TickRate: 16 * time.Millisecond, StartedAt: start})
	if err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		f := &frame.Frame{Tick: tick, Live: int(tick) * 10}
		if tick == 3 {
			f.Outcomes = []frame.Outcome{{Target: 4, Amount: 20, Applied: true, Killed: true}}
			f.Over = true
		}
		if err := rec.Record(f); err != nil {
			t.Fatal(err)
		}
	}
	if rec.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	rd, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Close()
	m := rd.Meta()
	if m.Seed != 99 || m.ServerName != "test" || !m.StartedAt.Equal(start) {
		t.Errorf("meta = %+v", m)
	}

	var ticks []uint64
	var last *frame.Frame
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		ticks = append(ticks, f.Tick)
		last = f
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("ticks = %v, want [1 2 3]", ticks)
	}
	if !last.Over || len(last.Outcomes) != 1 || !last.Outcomes[0].Killed {
		t.Errorf("last frame = %+v", last)
	}
}

func TestNewReaderRejectsForeignFile(t *testing.T) {
	_, err := NewReader(strings.NewReader("PK\x03\x04 not a replay"))
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("err = %v, want ErrBadMagic", err)
	}
}
