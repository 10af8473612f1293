package scraper

import (
	"context"
	"errors"
	"log/slog"
)

// step is one logical stage of a scrape. A fatal step aborts the run when
// it fails; a best-effort step's failure is logged and absorbed.
type step struct {
	name  string
	fatal bool
	run   func(ctx context.Context) error
}

// runSteps executes steps in order.
//
// An expired ctx stops the run before the next step starts, whatever that
// step's fatality. A driver failure is fatal even from a best-effort step:
// the session is gone and nothing after it can succeed.
func runSteps(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.run(ctx)
		if err == nil {
			slog.Debug("step completed", "step", s.name)
			continue
		}
		if s.fatal || errors.Is(err, ErrDriver) {
			slog.Debug("step failed", "step", s.name, "error", err)
			return err
		}
		slog.Debug("best-effort step skipped", "step", s.name, "error", err)
	}
	return nil
}
