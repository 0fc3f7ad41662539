// hcinspect reads what hordecore leaves behind: replay files and the run
// history table.
//
// Usage:
//
//	go run ./cmd/hcinspect replay <file> [-frames] [-outcomes]
//	go run ./cmd/hcinspect runs [-config path] [-limit n]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/hordecore/server/internal/config"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/net/frame"
	"github.com/hordecore/server/internal/persist"
	"github.com/hordecore/server/internal/replay"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hcinspect replay <file> [-frames] [-outcomes]")
	fmt.Fprintln(os.Stderr, "       hcinspect runs [-config path] [-limit n]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "replay":
		err = replayCmd(os.Args[2:])
	case "runs":
		err = runsCmd(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// replay
// ---------------------------------------------------------------------------

type frameYAML struct {
	Tick        uint64        `yaml:"tick"`
	Live        int           `yaml:"live"`
	Projectiles int           `yaml:"projectiles"`
	Health      float32       `yaml:"player_health"`
	Spawned     int           `yaml:"spawned,omitempty"`
	Swept       int           `yaml:"swept,omitempty"`
	Over        bool          `yaml:"over,omitempty"`
	Outcomes    []outcomeYAML `yaml:"outcomes,omitempty"`
	Dropped     int           `yaml:"dropped,omitempty"`
}

type outcomeYAML struct {
	Target uint64  `yaml:"target"`
	Amount float32 `yaml:"amount"`
	Kind   string  `yaml:"kind"`
	Result string  `yaml:"result"`
	Killed bool    `yaml:"killed,omitempty"`
}

type replayTotals struct {
	Frames      uint64
	LastTick    uint64
	PeakLive    int
	Spawned     int
	Swept       int
	Applied     int
	Killed      int
	Rejected    map[string]int
	GameOverAt  uint64
	MinHealth   float32
	Projectiles int
}

func replayCmd(args []string) error {
	if len(args) < 1 {
		usage()
	}
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	frames := fs.Bool("frames", false, "print every frame as YAML")
	outcomes := fs.Bool("outcomes", false, "include outcomes when printing frames")
	_ = fs.Parse(args[1:])

	rd, err := replay.Open(args[0])
	if err != nil {
		return err
	}
	defer rd.Close()

	meta := rd.Meta()
	fmt.Printf("server:     %s\n", meta.ServerName)
	fmt.Printf("seed:       %d\n", meta.Seed)
	fmt.Printf("tick rate:  %s\n", meta.TickRate)
	fmt.Printf("started at: %s\n", meta.StartedAt.Format(time.RFC3339))

	var enc *yaml.Encoder
	if *frames {
		enc = yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
	}

	t := replayTotals{Rejected: map[string]int{}, MinHealth: -1}
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", t.Frames, err)
		}
		t.add(f)
		if enc != nil {
			if err := enc.Encode(toYAML(f, *outcomes)); err != nil {
				return err
			}
		}
	}
	t.print()
	return nil
}

func (t *replayTotals) add(f *frame.Frame) {
	t.Frames++
	t.LastTick = f.Tick
	t.PeakLive = max(t.PeakLive, f.Live)
	t.Projectiles = max(t.Projectiles, f.Projectiles)
	t.Spawned += f.Spawned
	t.Swept += f.Swept
	if t.MinHealth < 0 || f.PlayerHealth < t.MinHealth {
		t.MinHealth = f.PlayerHealth
	}
	if f.Over && t.GameOverAt == 0 {
		t.GameOverAt = f.Tick
	}
	for _, o := range f.Outcomes {
		switch {
		case o.Applied && o.Killed:
			t.Applied++
			t.Killed++
		case o.Applied:
			t.Applied++
		default:
			t.Rejected[damage.Reason(o.Reason).String()]++
		}
	}
}

func (t *replayTotals) print() {
	fmt.Println()
	fmt.Printf("frames:          %d (last tick %d)\n", t.Frames, t.LastTick)
	fmt.Printf("peak live:       %d\n", t.PeakLive)
	fmt.Printf("peak projectiles: %d\n", t.Projectiles)
	fmt.Printf("spawned/swept:   %d / %d\n", t.Spawned, t.Swept)
	fmt.Printf("applied/killed:  %d / %d (recorded outcomes only)\n", t.Applied, t.Killed)
	reasons := make([]string, 0, len(t.Rejected))
	for r := range t.Rejected {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("rejected %-10s %d\n", r+":", t.Rejected[r])
	}
	if t.GameOverAt > 0 {
		fmt.Printf("game over at tick %d\n", t.GameOverAt)
	}
}

func toYAML(f *frame.Frame, withOutcomes bool) frameYAML {
	out := frameYAML{
		Tick:        f.Tick,
		Live:        f.Live,
		Projectiles: f.Projectiles,
		Health:      f.PlayerHealth,
		Spawned:     f.Spawned,
		Swept:       f.Swept,
		Over:        f.Over,
		Dropped:     f.Dropped,
	}
	if !withOutcomes {
		return out
	}
	for _, o := range f.Outcomes {
		result := "applied"
		if !o.Applied {
			result = damage.Reason(o.Reason).String()
		}
		out.Outcomes = append(out.Outcomes, outcomeYAML{
			Target: o.Target,
			Amount: o.Amount,
			Kind:   damage.Kind(o.Kind).String(),
			Result: result,
			Killed: o.Killed,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// runs
// ---------------------------------------------------------------------------

func runsCmd(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "config/hordecore.toml", "server config with a database section")
	limit := fs.Int("limit", 10, "number of runs to list")
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("%s has no database.dsn", *cfgPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := persist.NewDB(ctx, cfg.Database, zap.NewNop())
	if err != nil {
		return err
	}
	defer db.Close()

	repo := persist.NewRunRepo(db)
	runs, err := repo.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "stopped"
		if r.GameOver {
			status = "game over"
		}
		fmt.Printf("%s  %s  seed=%d ticks=%d spawned=%d peak=%d applied=%d kills=%d  %s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Seed, r.Ticks, r.Spawned, r.PeakLive, r.Applied, r.Killed, status)
		rej, err := repo.Rejections(ctx, r.ID)
		if err != nil {
			return err
		}
		reasons := make([]string, 0, len(rej))
		for reason := range rej {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("    rejected %s: %d\n", reason, rej[reason])
		}
	}
	return nil
}
