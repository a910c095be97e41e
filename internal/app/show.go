package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints the tail of the persisted history and the known live
// message handles.
func (a *App) Show(_ context.Context, opts ShowOptions) error {
	loc, err := a.location()
	if err != nil {
		return err
	}

	snap := a.newStore(loc).Load()
	points := snap.History.Points()
	if len(points) == 0 {
		fmt.Fprintln(os.Stdout, "no history recorded")
	} else {
		if opts.Limit > 0 && len(points) > opts.Limit {
			points = points[len(points)-opts.Limit:]
		}

		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time\tValue")
		for _, p := range points {
			fmt.Fprintf(
				writer,
				"%s\t%s\n",
				p.Timestamp.In(loc).Format(time.RFC3339),
				decimal.NewFromFloat(p.Value).StringFixed(2),
			)
		}
		writer.Flush()
	}

	for _, chatID := range snap.ChatIDs() {
		refs := snap.Chats[chatID]
		fmt.Fprintf(os.Stdout, "chat %d: price_message_id=%d chart_message_id=%d\n",
			chatID, refs.PriceMessageID, refs.ChartMessageID)
	}
	return nil
}
