package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/naka-gawa/git-line-diffs/internal/gateway"
)

// AvailabilityPolicy controls how long and how often WaitForSource retries.
type AvailabilityPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed bounds the total wait; zero waits until ctx ends.
	MaxElapsed time.Duration
}

// DefaultAvailabilityPolicy polls every 500ms at first, backing off to 10s.
func DefaultAvailabilityPolicy() AvailabilityPolicy {
	return AvailabilityPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// WaitForSource blocks until source lists its repositories without
// gateway.ErrSourceUnavailable. Other errors stop the wait immediately.
// notify, when set, is called before every retry.
func WaitForSource(ctx context.Context, source gateway.Source, policy AvailabilityPolicy, notify func(err error, next time.Duration)) error {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	operation := func() (struct{}, error) {
		_, err := source.ListRepositories(ctx)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, gateway.ErrSourceUnavailable):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	_, err := backoff.Retry(ctx, operation, opts...)
	return err
}
