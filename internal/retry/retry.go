// Package retry wraps idempotent reads in bounded exponential backoff.
// Mutations never go through here; conflicts surface to the caller as is.
//
// Only transport-class failures are retried: network errors, errors pgx
// reports as safe to retry, and the Postgres error classes that mean the
// server or connection went away. Anything else (a bad query, a scan into
// the wrong type) fails on the first attempt.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnRetry, if set, is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

// Default allows three attempts within roughly a quarter second.
func Default() Policy {
	return Policy{
		MaxTries:        3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Do calls op until it succeeds, fails with an error Retryable rejects, the
// context ends, or MaxTries is reached.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(max(p.MaxTries, 1)),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

// Permanent marks err so Do returns it without another attempt.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retryable reports whether err is a transient transport failure.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLState(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// transientSQLState covers connection exceptions (class 08), serialization
// failures and deadlocks, too_many_connections and server shutdown.
func transientSQLState(code string) bool {
	switch code {
	case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
		return true
	}
	return strings.HasPrefix(code, "08")
}
