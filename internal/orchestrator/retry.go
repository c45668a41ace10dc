package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/labops/patchctl/internal/logging"
	"github.com/labops/patchctl/internal/tracker"
)

// retryExternal runs fn with a bounded fixed-interval retry. External
// calls (pushes, tracker API requests) are the only retried operations;
// local git failures, validation outcomes, and API rejections that
// would fail identically on retry are never retried.
func (r *run) retryExternal(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(r.o.opts.RetryInterval),
			uint64(r.o.opts.RetryAttempts-1),
		),
		ctx,
	)

	guarded := func() error {
		err := fn()
		if err != nil && tracker.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempt := 0
	return backoff.RetryNotify(guarded, policy, func(err error, next time.Duration) {
		attempt++
		logging.Warn("external call failed, retrying",
			"attempt", attempt, "next_in", next, "error", err)
	})
}
