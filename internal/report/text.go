package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"particles/internal/sim"
)

// Text writes one human readable line per generation.
type Text struct {
	W io.Writer
}

func (t Text) Report(_ context.Context, r sim.Record) error {
	_, err := fmt.Fprintln(t.W, FormatRecord(r))
	return err
}

func FormatRecord(r sim.Record) string {
	return fmt.Sprintf("generation %s: %s/%s reached the goal (%s) in %s over %s ticks, best fitness %s, mean %s",
		humanize.Comma(int64(r.Index)),
		humanize.Comma(int64(r.GoalReachedCount)),
		humanize.Comma(int64(r.PopulationSize)),
		FormatPercent(r.SuccessRate()),
		r.Duration.Round(time.Millisecond),
		humanize.Comma(int64(r.Ticks)),
		humanize.FormatFloat("#,###.##", r.BestFitness),
		humanize.FormatFloat("#,###.##", r.MeanFitness),
	)
}

func FormatPercent(ratio float64) string {
	return humanize.FtoaWithDigits(ratio*100, 1) + "%"
}
