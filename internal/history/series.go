package history

import (
	"fmt"
	"math"
	"time"
)

// Point is a single observation of the tracked index.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// NewPoint validates and constructs a Point.
func NewPoint(ts time.Time, value float64) (Point, error) {
	if ts.IsZero() {
		return Point{}, fmt.Errorf("history: zero timestamp")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Point{}, fmt.Errorf("history: non-finite value %v", value)
	}
	return Point{Timestamp: ts, Value: value}, nil
}

// Series is an ordered, deduplicated sequence of points. Timestamps are
// normalised to a canonical location on append and kept non-decreasing.
// The series itself is not goroutine-safe; callers serialise access.
type Series struct {
	loc    *time.Location
	points []Point
}

// NewSeries constructs an empty series using loc as the canonical timezone.
func NewSeries(loc *time.Location) *Series {
	if loc == nil {
		loc = time.UTC
	}
	return &Series{loc: loc}
}

// Append records a point. A point sharing the last stored timestamp
// overwrites that entry (late correction); a point older than the last
// stored timestamp is dropped to keep the series ordered.
func (s *Series) Append(p Point) {
	p.Timestamp = p.Timestamp.In(s.loc)

	if n := len(s.points); n > 0 {
		last := s.points[n-1]
		if p.Timestamp.Equal(last.Timestamp) {
			s.points[n-1].Value = p.Value
			return
		}
		if p.Timestamp.Before(last.Timestamp) {
			return
		}
	}
	s.points = append(s.points, p)
}

// Prune drops every point strictly older than now-maxAge.
func (s *Series) Prune(now time.Time, maxAge time.Duration) {
	cutoff := now.Add(-maxAge)
	idx := 0
	for idx < len(s.points) && s.points[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.points = append(s.points[:0], s.points[idx:]...)
	}
}

// LastPoint returns the most recent point, if any.
func (s *Series) LastPoint() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// PointsSince returns a copy of every point with timestamp >= cutoff,
// in ascending order.
func (s *Series) PointsSince(cutoff time.Time) []Point {
	idx := 0
	for idx < len(s.points) && s.points[idx].Timestamp.Before(cutoff) {
		idx++
	}
	return append([]Point(nil), s.points[idx:]...)
}

// Points returns a copy of the full series.
func (s *Series) Points() []Point {
	return append([]Point(nil), s.points...)
}

// Len reports the number of stored points.
func (s *Series) Len() int {
	return len(s.points)
}

// Location returns the canonical timezone of the series.
func (s *Series) Location() *time.Location {
	return s.loc
}
