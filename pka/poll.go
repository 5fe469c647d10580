package pka

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// waitFor polls cond until it reports true.
//
// It gives up with ErrTimeout after cfg.Poll.MaxPolls reads (never when zero)
// and returns early when ctx is done. A context deadline counts as a
// timeout.
func (d *Dev) waitFor(ctx context.Context, stage string, cond func() bool) error {
	poll := d.cfg.Poll
	for n := 1; ; n++ {
		if cond() {
			return nil
		}
		if poll.MaxPolls > 0 && n >= poll.MaxPolls {
			return fmt.Errorf("%w: %s", ErrTimeout, stage)
		}

		if poll.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctxError(stage, ctx.Err())
			case <-time.After(poll.Interval):
			}
		} else if err := ctx.Err(); err != nil {
			return ctxError(stage, err)
		}
	}
}

func ctxError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, stage, err)
	}
	return fmt.Errorf("pka: %s: %w", stage, err)
}
