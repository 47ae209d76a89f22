package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/campaignmesh/logging"
)

// RetryOptions configures RetryModel.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts including the first. Defaults to 3.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// ShouldRetry decides whether an error is transient. By default every
	// error except context cancellation is retried.
	ShouldRetry func(err error) bool
	Logger      logging.Logger
}

// RetryModel retries a wrapped Model with exponential backoff. Only
// failures that happen before the first response chunk are retried so that
// callers never see duplicated partial output.
type RetryModel struct {
	inner Model
	opts  RetryOptions
}

// NewRetryModel wraps inner with retry behaviour.
func NewRetryModel(inner Model, optFns ...func(o *RetryOptions)) *RetryModel {
	opts := RetryOptions{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		ShouldRetry:    defaultShouldRetry,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	return &RetryModel{inner: inner, opts: opts}
}

// Info implements Model.
func (r *RetryModel) Info() Info { return r.inner.Info() }

// Generate implements Model.
func (r *RetryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 16)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		attempt := 0

		op := func() error {
			attempt++
			forwarded := false

			respCh, errCh := r.inner.Generate(ctx, req)

			err := Consume(ctx, respCh, errCh, func(resp Response) error {
				forwarded = true
				select {
				case out <- resp:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err == nil {
				return nil
			}

			if forwarded || !r.opts.ShouldRetry(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		notify := func(err error, wait time.Duration) {
			r.opts.Logger.Warn("model.retry", "model", r.inner.Info().Name, "attempt", attempt, "wait", wait, "error", err.Error())
		}

		if err := backoff.RetryNotify(op, r.policy(ctx), notify); err != nil {
			errOut <- err
		}
	}()

	return out, errOut
}

func (r *RetryModel) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = r.opts.MaxBackoff
	b.Multiplier = r.opts.Multiplier
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxAttempts-1)), ctx)
}

func defaultShouldRetry(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
