// Package retryutil is the one retry/backoff helper shared by every
// scraper. Fixed sleep loops are not welcome anywhere else in the tree.
package retryutil

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultMaxAttempts = 3

// Permanent wraps an error so Do stops retrying immediately. Login
// rejections and parse failures are permanent, transport hiccups are not.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op with exponential backoff, at most three attempts, honoring
// context cancellation.
func Do(ctx context.Context, name string, op func() error) error {
	return DoAttempts(ctx, name, defaultMaxAttempts, op)
}

func DoAttempts(ctx context.Context, name string, attempts uint64, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponential(), attempts-1),
		ctx,
	)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		slog.WarnContext(
			ctx, "retrying operation",
			"op", name,
			"err", err,
			"wait", wait,
		)
	})
}

func newExponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond * 500
	b.MaxInterval = time.Second * 10
	b.MaxElapsedTime = time.Minute
	return b
}
