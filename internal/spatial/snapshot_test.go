package spatial

import (
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/hordecore/server/internal/core/ecs"
	"pgregory.net/rapid"
)

func sortedIDs(ids []ecs.EntityID) []ecs.EntityID {
	out := append([]ecs.EntityID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(a, b []ecs.EntityID) bool {
	a, b = sortedIDs(a), sortedIDs(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bruteForce(points []Point, x, y, r float32) []ecs.EntityID {
	var out []ecs.EntityID
	for _, p := range points {
		dx := float64(p.X) - float64(x)
		dy := float64(p.Y) - float64(y)
		if dx*dx+dy*dy <= float64(r)*float64(r) {
			out = append(out, p.ID)
		}
	}
	return out
}

func TestQueryRadiusBoundaryIsInclusive(t *testing.T) {
	const a, b, c = ecs.EntityID(1), ecs.EntityID(2), ecs.EntityID(3)
	s := Build([]Point{{0, 0, a}, {100, 0, b}, {3, 4, c}})

	got := s.QueryRadius(0, 0, 5)
	if !equalIDs(got, []ecs.EntityID{a, c}) {
		t.Errorf("QueryRadius = %v, want {%d, %d}", got, a, c)
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := Build(nil)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if got := s.QueryRadius(0, 0, 1000); len(got) != 0 {
		t.Errorf("empty snapshot returned %v", got)
	}
}

func TestIndexBeforeFirstBuild(t *testing.T) {
	idx := NewIndex()
	if got := idx.QueryRadius(1, 2, 50); len(got) != 0 {
		t.Errorf("query before build returned %v", got)
	}
	if idx.Snapshot() == nil {
		t.Fatal("Snapshot() must never be nil")
	}
}

func TestNegativeRadiusMatchesNothing(t *testing.T) {
	s := Build([]Point{{0, 0, 1}})
	if got := s.QueryRadius(0, 0, -1); len(got) != 0 {
		t.Errorf("negative radius returned %v", got)
	}
}

func TestIdenticalCoordinates(t *testing.T) {
	pts := make([]Point, 5000)
	for i := range pts {
		pts[i] = Point{X: 7, Y: 7, ID: ecs.EntityID(i + 1)}
	}
	s := Build(pts)

	if got := s.QueryRadius(7, 7, 0); len(got) != len(pts) {
		t.Errorf("zero radius on stacked points returned %d, want %d", len(got), len(pts))
	}
	if got := s.QueryRadius(8, 8, 1); len(got) != 0 {
		t.Errorf("query beyond radius returned %d points", len(got))
	}
}

func TestNaNPointsAreSkipped(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		bad  []int
		axis int
	}{
		{"x at root split", []int{0, 32, 63}, 0},
		{"y values", []int{1, 17, 40}, 1},
		{"every other point", []int{0, 2, 4, 6, 8, 10, 12, 14}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := make([]Point, 64)
			for i := range pts {
				pts[i] = Point{X: float32(i%8) * 10, Y: float32(i/8) * 10, ID: ecs.EntityID(i + 1)}
			}
			for _, i := range tt.bad {
				if tt.axis == 0 {
					pts[i].X = nan
				} else {
					pts[i].Y = nan
				}
			}
			s := Build(pts)
			if s.Len() != len(pts)-len(tt.bad) {
				t.Fatalf("Len() = %d, want %d", s.Len(), len(pts)-len(tt.bad))
			}
			missed := 0
			for _, p := range pts {
				if math.IsNaN(float64(p.X)) || math.IsNaN(float64(p.Y)) {
					continue
				}
				got := s.QueryRadius(p.X, p.Y, 0.5)
				if len(got) != 1 || got[0] != p.ID {
					missed++
				}
			}
			if missed != 0 {
				t.Errorf("%d valid points not found at their own position", missed)
			}
			if got := s.QueryRadius(35, 35, 1000); len(got) != s.Len() {
				t.Errorf("wide query returned %d, want %d", len(got), s.Len())
			}
		})
	}
}

func TestBuildDoesNotRetainInput(t *testing.T) {
	pts := []Point{{0, 0, 1}, {10, 10, 2}}
	s := Build(pts)
	pts[0] = Point{X: 500, Y: 500, ID: 9}

	if got := s.QueryRadius(0, 0, 1); !equalIDs(got, []ecs.EntityID{1}) {
		t.Errorf("snapshot changed after input mutation: %v", got)
	}
}

func TestRebuildVersions(t *testing.T) {
	idx := NewIndex()
	first := idx.Rebuild([]Point{{0, 0, 1}})
	second := idx.Rebuild([]Point{{50, 50, 2}})

	if second.Version() <= first.Version() {
		t.Errorf("versions not increasing: %d then %d", first.Version(), second.Version())
	}
	if idx.Snapshot() != second {
		t.Error("latest rebuild not published")
	}
	if got := first.QueryRadius(0, 0, 1); !equalIDs(got, []ecs.EntityID{1}) {
		t.Errorf("old snapshot mutated by rebuild: %v", got)
	}
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	idx := NewIndex()
	const n = 200
	makePoints := func(x float32) []Point {
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{X: x, Y: float32(i), ID: ecs.EntityID(i + 1)}
		}
		return pts
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := idx.Snapshot()
				if got := s.Len(); got != 0 && got != n {
					t.Errorf("torn snapshot with %d points", got)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		idx.Rebuild(makePoints(float32(i)))
	}
	close(stop)
	wg.Wait()
}

func TestQueryRadiusMatchesBruteForce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")
		// a small coordinate grid forces plenty of ties on both axes
		coord := rapid.Custom(func(t *rapid.T) float32 {
			return float32(rapid.IntRange(-20, 20).Draw(t, "c")) / 2
		})
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{
				X:  coord.Draw(t, "x"),
				Y:  coord.Draw(t, "y"),
				ID: ecs.EntityID(i + 1),
			}
		}
		s := Build(pts)

		cx := coord.Draw(t, "cx")
		cy := coord.Draw(t, "cy")
		r := float32(rapid.IntRange(0, 30).Draw(t, "r")) / 2

		got := s.QueryRadius(cx, cy, r)
		want := bruteForce(pts, cx, cy, r)
		if !equalIDs(got, want) {
			t.Fatalf("QueryRadius(%v, %v, %v) = %v, want %v", cx, cy, r, sortedIDs(got), sortedIDs(want))
		}
		seen := make(map[ecs.EntityID]bool, len(got))
		for _, id := range got {
			if seen[id] {
				t.Fatalf("duplicate id %d in result", id)
			}
			seen[id] = true
		}
	})
}

func BenchmarkQueryRadius20k(b *testing.B) {
	pts := make([]Point, 20000)
	for i := range pts {
		pts[i] = Point{X: float32(i%200) * 15, Y: float32(i/200) * 15, ID: ecs.EntityID(i + 1)}
	}
	s := Build(pts)
	buf := make([]ecs.EntityID, 0, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = s.AppendRadius(buf[:0], float32(i%3000), float32(i%1500), 10)
	}
}
