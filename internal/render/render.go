package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"moexwatch/internal/history"
)

const (
	// PricePlaceholder is shown while the first real value is pending.
	PricePlaceholder = "♻️ Перезапуск отслеживания…"
	// ChartPlaceholderCaption is shown while the first real chart is pending.
	ChartPlaceholderCaption = "Обновляю график…"
)

// Renderer builds the user-facing texts for one tracked index.
type Renderer struct {
	indexName string
	loc       *time.Location
	window    time.Duration
}

// New constructs a Renderer. The window bounds the "change over the last
// minute" reference lookup in price messages.
func New(indexName string, loc *time.Location, window time.Duration) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{indexName: indexName, loc: loc, window: window}
}

// PriceMessage renders the live price text for the given observation.
// The delta line appears only when a reference point at least one window
// back exists and the move is at least 0.01.
func (r *Renderer) PriceMessage(points []history.Point, ts time.Time, value float64) string {
	var delta string
	cutoff := ts.Add(-r.window)

	var reference *history.Point
	for i := range points {
		if points[i].Timestamp.After(cutoff) {
			break
		}
		reference = &points[i]
	}
	if reference != nil {
		diff := value - reference.Value
		if diff >= 0.01 || diff <= -0.01 {
			arrow := "⬆️"
			if diff < 0 {
				arrow = "⬇️"
			}
			delta = fmt.Sprintf("\n%s Изменение за минуту: %s", arrow, formatSigned(diff))
		}
	}

	local := ts.In(r.loc)
	return fmt.Sprintf(
		"<b>%s</b>\nТекущее значение: <b>%s</b>\nВремя обновления: %s%s",
		r.indexName,
		formatValue(value),
		local.Format("02.01.2006 15:04:05 MST"),
		delta,
	)
}

// ChartCaption renders the caption below the chart photo.
func (r *Renderer) ChartCaption(points []history.Point) string {
	if len(points) == 0 {
		return ChartPlaceholderCaption
	}
	start := points[0].Timestamp.In(r.loc)
	end := points[len(points)-1].Timestamp.In(r.loc)
	return fmt.Sprintf(
		"Диапазон: %s – %s (МСК)\nКоличество точек: %d",
		start.Format("02.01 15:04"),
		end.Format("02.01 15:04"),
		len(points),
	)
}

// AlertMessage renders the one-shot move alert.
func (r *Renderer) AlertMessage(diff, value float64) string {
	direction, arrow := "Рост", "🚀"
	if diff < 0 {
		direction, arrow = "Падение", "📉"
	}
	return fmt.Sprintf(
		"%s %s индекса на %s пунктов за минуту!\nТекущее значение: %s",
		arrow, direction, formatSigned(diff), formatValue(value),
	)
}

func formatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatSigned(v float64) string {
	fixed := decimal.NewFromFloat(v).StringFixed(2)
	if !strings.HasPrefix(fixed, "-") {
		return "+" + fixed
	}
	return fixed
}
