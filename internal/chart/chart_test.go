package chart

import (
	"bytes"
	"testing"
	"time"

	"moexwatch/internal/fetcher"
	"moexwatch/internal/history"
)

var moscow = time.FixedZone("MSK", 3*60*60)

var pngMagic = []byte{0x89, 0x50, 0x4e, 0x47}

func testPoints(t *testing.T, n int) []history.Point {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, moscow)
	out := make([]history.Point, 0, n)
	for i := 0; i < n; i++ {
		p, err := history.NewPoint(base.Add(time.Duration(i)*time.Minute), 2880+float64(i))
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, p)
	}
	return out
}

func TestRenderEmptyFails(t *testing.T) {
	r := NewRenderer(Options{Title: "IMOEX2", Location: moscow})
	if _, err := r.Render(nil, nil); err == nil {
		t.Fatal("empty point list must fail")
	}
}

func TestRenderProducesPNG(t *testing.T) {
	r := NewRenderer(Options{Title: "IMOEX2", Width: 640, Height: 360, Location: moscow})

	png, err := r.Render(testPoints(t, 10), nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderSinglePoint(t *testing.T) {
	r := NewRenderer(Options{Title: "IMOEX2", Width: 640, Height: 360, Location: moscow})

	png, err := r.Render(testPoints(t, 1), nil)
	if err != nil {
		t.Fatalf("a single point should render as a flat segment: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderWithSummary(t *testing.T) {
	r := NewRenderer(Options{Title: "IMOEX2", Width: 640, Height: 360, Location: moscow})

	summary := &fetcher.DaySummary{Open: 2882, High: 2895, Low: 2500, Close: 2889}
	png, err := r.Render(testPoints(t, 10), summary)
	if err != nil {
		t.Fatalf("Render with summary: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestSummaryLevelsClippedToRange(t *testing.T) {
	r := NewRenderer(Options{Title: "IMOEX2", Location: moscow})
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, moscow)

	summary := &fetcher.DaySummary{Open: 2882, High: 5000, Low: 100, Close: 2889}
	levels := r.summaryLevels(start, start.Add(time.Hour), summary, 2870, 2900)

	if len(levels) != 1 {
		t.Fatalf("out-of-range levels must be skipped, got %d series", len(levels))
	}
}
