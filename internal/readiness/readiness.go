// Package readiness polls service endpoints until they accept connections.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 60 * time.Second
)

// ErrNotReady matches every NotReadyError.
var ErrNotReady = errors.New("endpoints not ready")

// NotReadyError is returned when the timeout elapses before every endpoint
// accepted a connection.
type NotReadyError struct {
	Pending []string
	Timeout time.Duration
	LastErr error
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%v after %s: %v (last error: %v)", ErrNotReady, e.Timeout, e.Pending, e.LastErr)
}

func (e *NotReadyError) Is(target error) bool { return target == ErrNotReady }

func (e *NotReadyError) Unwrap() error { return e.LastErr }

// Prober checks a single endpoint once.
type Prober interface {
	Probe(ctx context.Context, addr string) error
}

// TCPProber considers an endpoint ready once a TCP connect succeeds.
type TCPProber struct {
	DialTimeout time.Duration
}

func NewTCPProber() *TCPProber {
	return &TCPProber{DialTimeout: time.Second}
}

func (p *TCPProber) Probe(ctx context.Context, addr string) error {
	dialer := net.Dialer{Timeout: p.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, addr string) error

func (f ProberFunc) Probe(ctx context.Context, addr string) error {
	return f(ctx, addr)
}

type Waiter struct {
	Prober   Prober
	Interval time.Duration
	Timeout  time.Duration
}

func NewWaiter(prober Prober, interval, timeout time.Duration) *Waiter {
	if prober == nil {
		prober = NewTCPProber()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Waiter{Prober: prober, Interval: interval, Timeout: timeout}
}

// Wait polls every address until all of them succeed. Once an address has
// answered it is not probed again. On timeout it returns a *NotReadyError
// naming the addresses that never answered. Cancelling ctx abandons the poll
// and returns the context error.
func (w *Waiter) Wait(ctx context.Context, addrs []string) error {
	pending := slices.Clone(addrs)
	if len(pending) == 0 {
		return nil
	}

	deadline := time.NewTimer(w.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	var lastErr error
	for {
		pending = slices.DeleteFunc(pending, func(addr string) bool {
			err := w.Prober.Probe(ctx, addr)
			if err != nil {
				lastErr = err
			}
			return err == nil
		})
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &NotReadyError{Pending: pending, Timeout: w.Timeout, LastErr: lastErr}
		case <-ticker.C:
		}
	}
}
