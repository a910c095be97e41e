package chart

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"moexwatch/internal/fetcher"
	"moexwatch/internal/history"
)

// Options parameterise chart rendering.
type Options struct {
	Title    string
	Width    int
	Height   int
	Location *time.Location
}

// Renderer draws the index time series as a PNG.
type Renderer struct {
	opts Options
	loc  *time.Location
}

// NewRenderer constructs a Renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{opts: opts, loc: loc}
}

var lineColor = drawing.ColorFromHex("003f5c")

// Render draws the points, with optional day-summary levels, to PNG bytes.
// It fails on an empty point list.
func (r *Renderer) Render(points []history.Point, summary *fetcher.DaySummary) ([]byte, error) {
	if len(points) == 0 {
		return nil, errors.New("chart: at least one data point is required")
	}
	if len(points) == 1 {
		// A single point cannot span an axis; extend it into a short
		// flat segment.
		points = []history.Point{
			{Timestamp: points[0].Timestamp.Add(-5 * time.Minute), Value: points[0].Value},
			points[0],
		}
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Timestamp.In(r.loc)
		y[i] = p.Value
	}

	minValue, maxValue := y[0], y[0]
	for _, v := range y[1:] {
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}
	padding := (maxValue - minValue) * 0.05
	if padding < 1.0 {
		padding = 1.0
	}
	yMin := minValue - padding
	yMax := maxValue + padding

	series := []chart.Series{
		chart.TimeSeries{
			Name:    r.opts.Title,
			XValues: x,
			YValues: y,
			Style: chart.Style{
				StrokeColor: lineColor,
				StrokeWidth: 2,
			},
		},
	}

	if summary != nil {
		series = append(series, r.summaryLevels(x[0], x[len(x)-1], summary, yMin, yMax)...)
	}

	graph := chart.Chart{
		Title:  r.opts.Title,
		Width:  r.opts.Width,
		Height: r.opts.Height,
		XAxis: chart.XAxis{
			ValueFormatter: r.formatTime,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// summaryLevels draws dashed day open/high/low lines, skipping levels
// outside the visible range so they cannot distort the scale.
func (r *Renderer) summaryLevels(start, end time.Time, summary *fetcher.DaySummary, yMin, yMax float64) []chart.Series {
	levels := []struct {
		name  string
		value float64
		color drawing.Color
	}{
		{"Открытие", summary.Open, drawing.ColorFromHex("4a4a4a")},
		{"Максимум", summary.High, drawing.ColorFromHex("0b8a6a")},
		{"Минимум", summary.Low, drawing.ColorFromHex("d64545")},
	}

	out := make([]chart.Series, 0, len(levels))
	for _, level := range levels {
		if level.value < yMin || level.value > yMax {
			continue
		}
		out = append(out, chart.TimeSeries{
			Name:    fmt.Sprintf("%s %.2f", level.name, level.value),
			XValues: []time.Time{start, end},
			YValues: []float64{level.value, level.value},
			Style: chart.Style{
				StrokeColor:     level.color,
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 4},
			},
		})
	}
	return out
}

func (r *Renderer) formatTime(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.In(r.loc).Format("15:04")
	case int64:
		return time.Unix(0, t).In(r.loc).Format("15:04")
	case float64:
		return time.Unix(0, int64(t)).In(r.loc).Format("15:04")
	default:
		return ""
	}
}
