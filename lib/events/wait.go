package events

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// WaitOption configures Await.
type WaitOption func(*waitConfig)

type waitConfig struct {
	timeout time.Duration
	set     bool
}

// WithTimeout bounds the wait. A non-positive duration disables the bound.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) {
		c.timeout = d
		c.set = true
	}
}

// NoTimeout waits until the event fires or the context ends.
func NoTimeout() WaitOption {
	return WithTimeout(0)
}

// Pending is a one-shot registration created by Await.
type Pending[E any] struct {
	bus      *Bus
	handle   Handle
	ch       chan E
	once     sync.Once
	timeout  time.Duration
	deadline time.Time
}

// Await registers a one-shot listener for E right away, so an event fired
// between Await and Wait is not lost. The timeout starts now.
func Await[E any](b *Bus, opts ...WaitOption) *Pending[E] {
	cfg := waitConfig{timeout: b.waitTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pending[E]{
		bus:     b,
		ch:      make(chan E, 1),
		timeout: cfg.timeout,
	}
	if p.timeout > 0 {
		p.deadline = time.Now().Add(p.timeout)
	}
	p.handle = On(b, func(_ context.Context, e E) error {
		p.once.Do(func() {
			p.ch <- e
			p.release()
		})
		return nil
	})
	return p
}

// Wait blocks until the event fires, the timeout elapses or ctx ends. The
// listener is removed in every case.
func (p *Pending[E]) Wait(ctx context.Context) (E, error) {
	var zero E

	var expired <-chan time.Time
	if !p.deadline.IsZero() {
		timer := time.NewTimer(time.Until(p.deadline))
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case e := <-p.ch:
		return e, nil
	case <-expired:
		if e, ok := p.cancel(); ok {
			return e, nil
		}
		return zero, &TimeoutError{Event: reflect.TypeFor[E](), Timeout: p.timeout}
	case <-ctx.Done():
		if e, ok := p.cancel(); ok {
			return e, nil
		}
		return zero, ctx.Err()
	}
}

// cancel stops the listener. If the event won the race it is returned.
func (p *Pending[E]) cancel() (E, bool) {
	fired := true
	p.once.Do(func() {
		fired = false
		p.release()
	})
	if fired {
		return <-p.ch, true
	}
	var zero E
	return zero, false
}

func (p *Pending[E]) release() {
	// The handle may already be gone if the bus was torn down.
	_ = p.bus.Off(p.handle)
}

// WaitFor waits for the next E on b.
func WaitFor[E any](ctx context.Context, b *Bus, opts ...WaitOption) (E, error) {
	return Await[E](b, opts...).Wait(ctx)
}
