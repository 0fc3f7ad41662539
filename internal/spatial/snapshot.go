// Package spatial provides the immutable point index answering "which
// collidable actors lie within radius r of (x, y)" queries.
package spatial

import (
	"math"

	"github.com/hordecore/server/internal/core/ecs"
)

// Point is one indexed actor position.
type Point struct {
	X, Y float32
	ID   ecs.EntityID
}

// Snapshot is an implicit 2D kd-tree built from the positions of a single
// rebuild instant. The subtree for the range [lo, hi) is rooted at its
// median element; even depths split on x, odd depths on y. A Snapshot is
// never mutated after Build returns, so any number of goroutines may query
// it concurrently.
type Snapshot struct {
	points  []Point
	version uint64
}

var emptySnapshot = &Snapshot{}

// Build constructs a balanced kd-tree over points in O(n log n). The input
// slice is copied and not retained. Ids are expected to be unique. Points
// with a NaN coordinate are dropped: they are unordered on their axis and
// no query can reach them.
func Build(points []Point) *Snapshot {
	return buildVersion(points, 0)
}

func buildVersion(points []Point, version uint64) *Snapshot {
	pts := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(float64(p.X)) || math.IsNaN(float64(p.Y)) {
			continue
		}
		pts = append(pts, p)
	}
	build(pts, 0)
	return &Snapshot{points: pts, version: version}
}

func build(pts []Point, depth int) {
	for len(pts) > 1 {
		mid := len(pts) / 2
		axis := depth & 1
		selectNth(pts, mid, axis)
		build(pts[:mid], depth+1)
		// right subtree handled iteratively
		pts = pts[mid+1:]
		depth++
	}
}

func coord(p *Point, axis int) float32 {
	if axis == 0 {
		return p.X
	}
	return p.Y
}

// selectNth reorders pts so that pts[k] holds the element that would be at
// index k if pts were sorted on axis, everything before it is <= and
// everything after it is >=. The three-way partition keeps runs of equal
// coordinates (e.g. every actor stacked on one spot) linear instead of
// quadratic.
func selectNth(pts []Point, k, axis int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		pivot := medianOfThree(pts, lo, lo+(hi-lo)/2, hi, axis)
		lt, i, gt := lo, lo, hi
		for i <= gt {
			c := coord(&pts[i], axis)
			switch {
			case c < pivot:
				pts[lt], pts[i] = pts[i], pts[lt]
				lt++
				i++
			case c > pivot:
				pts[i], pts[gt] = pts[gt], pts[i]
				gt--
			default:
				i++
			}
		}
		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

func medianOfThree(pts []Point, a, b, c, axis int) float32 {
	x, y, z := coord(&pts[a], axis), coord(&pts[b], axis), coord(&pts[c], axis)
	if x > y {
		x, y = y, x
	}
	if y > z {
		y = z
	}
	if x > y {
		return x
	}
	return y
}

// Len returns the number of indexed points.
func (s *Snapshot) Len() int { return len(s.points) }

// Version is the rebuild sequence number assigned by Index.Rebuild.
func (s *Snapshot) Version() uint64 { return s.version }

// QueryRadius returns the ids of every point whose Euclidean distance to
// (x, y) is <= r. A negative or NaN radius matches nothing.
func (s *Snapshot) QueryRadius(x, y, r float32) []ecs.EntityID {
	return s.AppendRadius(nil, x, y, r)
}

// AppendRadius is QueryRadius appending into buf, so hot producers can reuse
// one buffer across queries.
func (s *Snapshot) AppendRadius(buf []ecs.EntityID, x, y, r float32) []ecs.EntityID {
	if len(s.points) == 0 || !(r >= 0) {
		return buf
	}
	q := query{
		x:  float64(x),
		y:  float64(y),
		r:  float64(r),
		r2: float64(r) * float64(r),
	}
	return q.visit(s.points, 0, buf)
}

type query struct {
	x, y, r, r2 float64
}

func (q *query) visit(pts []Point, depth int, buf []ecs.EntityID) []ecs.EntityID {
	for len(pts) > 0 {
		mid := len(pts) / 2
		p := &pts[mid]
		dx := float64(p.X) - q.x
		dy := float64(p.Y) - q.y
		if dx*dx+dy*dy <= q.r2 {
			buf = append(buf, p.ID)
		}

		var diff float64
		if depth&1 == 0 {
			diff = dx
		} else {
			diff = dy
		}
		// diff = split - center. Left holds coords <= split, right >= split.
		goLeft := diff >= -q.r
		goRight := diff <= q.r
		switch {
		case goLeft && goRight:
			buf = q.visit(pts[:mid], depth+1, buf)
			pts = pts[mid+1:]
		case goLeft:
			pts = pts[:mid]
		case goRight:
			pts = pts[mid+1:]
		default:
			return buf
		}
		depth++
	}
	return buf
}
