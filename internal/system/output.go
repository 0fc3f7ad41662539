package system

import (
	"time"

	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/damage"
	hnet "github.com/hordecore/server/internal/net"
	"github.com/hordecore/server/internal/net/frame"
	"github.com/hordecore/server/internal/population"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
)

// FrameSink consumes one frame per tick. replay.Recorder is one; FeedSink
// is the other.
type FrameSink interface {
	Record(f *frame.Frame) error
}

// FeedSink broadcasts frames to overlay feed subscribers.
type FeedSink struct {
	server *hnet.Server
	enc    *frame.Encoder
}

func NewFeedSink(server *hnet.Server) *FeedSink {
	return &FeedSink{server: server, enc: frame.NewEncoder()}
}

func (f *FeedSink) Record(fr *frame.Frame) error {
	raw, err := f.enc.Encode(fr)
	if err != nil {
		return err
	}
	// Each session queues the slice, so every tick gets its own buffer.
	f.server.Broadcast(hnet.AppendFrame(make([]byte, 0, len(raw)+4), raw))
	return nil
}

// FrameSources are the per-tick counters a frame reports.
type FrameSources struct {
	Clock    *Clock
	World    *world.State
	Index    *spatial.Index
	Pipeline *damage.Pipeline
	Control  *population.Controller
	Spawn    *SpawnSystem
	Outcome  *OutcomeObserver
}

// OutputSystem builds the tick's frame and hands it to every sink. A sink
// that fails is logged and detached. Phase 9 (Output).
type OutputSystem struct {
	src         FrameSources
	sinks       []FrameSink
	maxOutcomes int
	frame       frame.Frame
	log         *zap.Logger
}

func NewOutputSystem(src FrameSources, maxOutcomes int, log *zap.Logger, sinks ...FrameSink) *OutputSystem {
	return &OutputSystem{src: src, sinks: sinks, maxOutcomes: maxOutcomes, log: log}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	if len(s.sinks) == 0 {
		return
	}
	f := s.build()
	kept := s.sinks[:0]
	for _, sink := range s.sinks {
		if err := sink.Record(f); err != nil {
			s.log.Error("frame sink failed, detaching", zap.Uint64("tick", f.Tick), zap.Error(err))
			continue
		}
		kept = append(kept, sink)
	}
	clear(s.sinks[len(kept):])
	s.sinks = kept
}

// AddSink attaches a sink from the next frame on.
func (s *OutputSystem) AddSink(sink FrameSink) {
	s.sinks = append(s.sinks, sink)
}

// Sinks returns the number of attached sinks.
func (s *OutputSystem) Sinks() int { return len(s.sinks) }

func (s *OutputSystem) build() *frame.Frame {
	src := s.src
	f := &s.frame
	outcomes := f.Outcomes[:0]
	*f = frame.Frame{
		Tick:        src.Clock.Tick,
		Live:        src.World.HostileCount(),
		Projectiles: src.World.ProjectileCount(),
		Index:       src.Index.Snapshot().Version(),
		Swept:       len(src.Control.Swept()),
	}
	if cur, max, ok := src.World.Health(src.World.Player()); ok {
		f.PlayerHealth, f.PlayerMax = cur, max
	}
	if src.Spawn != nil {
		f.Spawned = src.Spawn.Admitted()
	}
	if src.Outcome != nil {
		f.Over = src.Outcome.Over()
	}

	all := src.Pipeline.Outcomes()
	n := len(all)
	if s.maxOutcomes >= 0 && n > s.maxOutcomes {
		n = s.maxOutcomes
	}
	for _, o := range all[:n] {
		outcomes = append(outcomes, frame.Outcome{
			Target:  uint64(o.Target),
			Amount:  o.Context.Amount,
			Kind:    uint32(o.Context.Kind),
			Applied: o.Applied,
			Reason:  uint8(o.Reason),
			Killed:  o.Killed,
		})
	}
	f.Outcomes = outcomes
	f.Dropped = len(all) - n
	return f
}
