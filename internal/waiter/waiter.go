// Package waiter resolves selectors against a page that may still be
// rendering. It probes once, then re-probes on every change notification
// until a match arrives or the timeout elapses.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/onboardly/internal/dom"
)

// DefaultTimeout bounds a single anchor wait.
const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout is returned by Until when no probe succeeded in time.
	ErrTimeout = errors.New("wait timed out")
	// ErrElementNotFound matches every *ElementNotFoundError.
	ErrElementNotFound = errors.New("element not found")
)

// ElementNotFoundError reports a selector that never resolved.
type ElementNotFoundError struct {
	Selector string
	Timeout  time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element with selector %q not found within %dms", e.Selector, e.Timeout.Milliseconds())
}

func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// SubscribeFunc opens a change-notification stream.
type SubscribeFunc func(ctx context.Context) (dom.Subscription, error)

// ProbeFunc checks the condition once. ok=false means "not yet".
type ProbeFunc[T any] func(ctx context.Context) (v T, ok bool, err error)

// Until probes immediately and returns without subscribing when the probe
// already succeeds. Otherwise it subscribes, probes again to close the race
// between the first probe and the subscription, and re-probes on every
// notification. The subscription is always closed before returning.
func Until[T any](ctx context.Context, timeout time.Duration, subscribe SubscribeFunc, probe ProbeFunc[T]) (T, error) {
	var zero T

	if v, ok, err := probe(ctx); err != nil || ok {
		return v, err
	}

	sub, err := subscribe(ctx)
	if err != nil {
		return zero, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	if v, ok, err := probe(ctx); err != nil || ok {
		return v, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
			return zero, ErrTimeout
		case <-sub.Notify():
			v, ok, err := probe(ctx)
			if err != nil || ok {
				return v, err
			}
		}
	}
}

// Host is the part of dom.Page the waiter needs.
type Host interface {
	Query(ctx context.Context, selector string) (dom.Element, bool, error)
	Subscribe(ctx context.Context) (dom.Subscription, error)
}

// Waiter waits for anchor elements on one host.
type Waiter struct {
	host Host
}

func New(host Host) *Waiter {
	return &Waiter{host: host}
}

// Wait resolves selector, waiting up to timeout for it to appear. The
// returned element is not guaranteed to stay attached.
func (w *Waiter) Wait(ctx context.Context, selector string, timeout time.Duration) (dom.Element, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	el, err := Until(ctx, timeout, w.host.Subscribe, func(ctx context.Context) (dom.Element, bool, error) {
		return w.host.Query(ctx, selector)
	})
	if errors.Is(err, ErrTimeout) {
		return dom.Element{}, &ElementNotFoundError{Selector: selector, Timeout: timeout}
	}
	if err != nil {
		return dom.Element{}, fmt.Errorf("wait for %q: %w", selector, err)
	}
	return el, nil
}
