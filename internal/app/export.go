package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"moexwatch/internal/history"
)

// Export writes the persisted history as CSV and/or a PNG chart.
func (a *App) Export(_ context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	loc, err := a.location()
	if err != nil {
		return err
	}

	snap := a.newStore(loc).Load()
	points := snap.History.Points()

	if opts.From != nil || opts.To != nil {
		filtered := make([]history.Point, 0, len(points))
		for _, p := range points {
			if opts.From != nil && p.Timestamp.Before(*opts.From) {
				continue
			}
			if opts.To != nil && !p.Timestamp.Before(*opts.To) {
				continue
			}
			filtered = append(filtered, p)
		}
		points = filtered
	}
	if len(points) == 0 {
		a.Logger.Info().Msg("no points found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := a.writeCSV(opts.CSVPath, loc, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := a.writePNG(opts.PNGPath, loc, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsamplePoints(points []history.Point, max int) []history.Point {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]history.Point, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func (a *App) writeCSV(path string, loc *time.Location, points []history.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "value"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			p.Timestamp.In(loc).Format(time.RFC3339),
			strconv.FormatFloat(p.Value, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func (a *App) writePNG(path string, loc *time.Location, points []history.Point) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	png, err := a.newChartRenderer(loc).Render(points, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
