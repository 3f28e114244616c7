// Package events is a type-keyed publish/subscribe bus. Listeners are
// registered per Go type, fan-out follows registration order and every
// listener receives its own shallow copy of the payload.
//
//	h := events.On(bus, func(ctx context.Context, e UserCreated) error {
//	    return nil
//	})
//	defer bus.Off(h)
//
//	n, err := events.Trigger(ctx, bus, UserCreated{ID: 1})
package events

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxioc/lib/logger"
)

// DefaultWaitTimeout bounds Await when no timeout option is given.
const DefaultWaitTimeout = 10 * time.Second

// Listener receives a payload whose dynamic type is the event type it was
// registered for.
type Listener func(ctx context.Context, payload any) error

// Handle identifies one registration. Ids grow monotonically and are never
// reused, even after Off.
type Handle struct {
	id  uint64
	typ reflect.Type
}

// ID returns the registration id.
func (h Handle) ID() uint64 { return h.id }

// Type returns the event type the listener was registered for.
func (h Handle) Type() reflect.Type { return h.typ }

type entry struct {
	id    uint64
	fn    Listener
	async bool
}

// Bus dispatches events to listeners.
type Bus struct {
	mu          sync.Mutex
	listeners   map[reflect.Type][]entry
	lastID      uint64
	waitTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithDefaultTimeout changes the timeout Await uses when none is given.
// Zero disables it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(b *Bus) {
		b.waitTimeout = d
	}
}

// WithLogger configures structured logging for the bus.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		listeners:   make(map[reflect.Type][]entry),
		waitTimeout: DefaultWaitTimeout,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnType registers fn for events of type typ. The listener runs on the
// triggering goroutine.
func (b *Bus) OnType(typ reflect.Type, fn Listener) Handle {
	return b.register(typ, fn, false)
}

// OnTypeAsync registers fn for events of type typ. The listener runs on its
// own goroutine; Trigger still waits for it.
func (b *Bus) OnTypeAsync(typ reflect.Type, fn Listener) Handle {
	return b.register(typ, fn, true)
}

// On registers a typed listener for E.
func On[E any](b *Bus, fn func(ctx context.Context, e E) error) Handle {
	return b.OnType(reflect.TypeFor[E](), typed(fn))
}

// OnAsync registers a typed listener for E that runs on its own goroutine.
func OnAsync[E any](b *Bus, fn func(ctx context.Context, e E) error) Handle {
	return b.OnTypeAsync(reflect.TypeFor[E](), typed(fn))
}

func typed[E any](fn func(context.Context, E) error) Listener {
	return func(ctx context.Context, payload any) error {
		e, _ := payload.(E)
		return fn(ctx, e)
	}
}

func (b *Bus) register(typ reflect.Type, fn Listener, async bool) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	b.listeners[typ] = append(b.listeners[typ], entry{id: b.lastID, fn: fn, async: async})
	return Handle{id: b.lastID, typ: typ}
}

// Off removes the listener behind h. Removing a handle twice, or a handle
// whose type has no listeners, returns ErrNotBound.
func (b *Bus) Off(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, ok := b.listeners[h.typ]
	if !ok || len(list) == 0 {
		return &OffError{Handle: h, Err: ErrNotBound}
	}
	i := slices.IndexFunc(list, func(e entry) bool { return e.id == h.id })
	if i < 0 {
		return &OffError{Handle: h, Err: ErrNotBound}
	}

	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(b.listeners, h.typ)
	} else {
		b.listeners[h.typ] = list
	}
	return nil
}

// Listeners returns how many listeners are registered for typ.
func (b *Bus) Listeners(typ reflect.Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[typ])
}

// Trigger dispatches e to every listener of E. See TriggerType.
func Trigger[E any](ctx context.Context, b *Bus, e E) (int, error) {
	return b.TriggerType(ctx, reflect.TypeFor[E](), e)
}

// TriggerType dispatches payload to the listeners registered for typ at the
// moment of the call. Synchronous listeners run in registration order;
// asynchronous ones are started in that same order. TriggerType returns
// once every listener has finished, with the number of listeners invoked
// and their errors joined.
//
// payload may be a value of typ, a pointer to one, or nil for the zero
// value. Each listener gets its own copy.
func (b *Bus) TriggerType(ctx context.Context, typ reflect.Type, payload any) (int, error) {
	b.mu.Lock()
	snapshot := slices.Clone(b.listeners[typ])
	b.mu.Unlock()

	if len(snapshot) == 0 {
		return 0, nil
	}

	source, err := normalize(typ, payload)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	errs := make([]error, len(snapshot))
	var g errgroup.Group
	for i, l := range snapshot {
		p := clone(typ, source)
		if l.async {
			g.Go(func() error {
				errs[i] = l.fn(ctx, p)
				return nil
			})
			continue
		}
		errs[i] = l.fn(ctx, p)
	}
	_ = g.Wait()

	err = errors.Join(errs...)
	b.logger.DebugContext(ctx, "event triggered",
		logger.Event(typ.String()),
		logger.Count(len(snapshot)),
		logger.Duration(time.Since(start)),
		logger.Error(err),
	)
	return len(snapshot), err
}

// normalize turns payload into a reflect.Value of typ's element type (for
// pointer event types) or of typ itself.
func normalize(typ reflect.Type, payload any) (reflect.Value, error) {
	base := typ
	if typ.Kind() == reflect.Pointer {
		base = typ.Elem()
	}
	if payload == nil {
		return reflect.Zero(base), nil
	}

	v := reflect.ValueOf(payload)
	switch {
	case v.Type() == base:
		return v, nil
	case v.Kind() == reflect.Pointer && v.Type().Elem() == base:
		if v.IsNil() {
			return reflect.Zero(base), nil
		}
		return v.Elem(), nil
	case v.Type().ConvertibleTo(base):
		return v.Convert(base), nil
	}
	return reflect.Value{}, &PayloadError{Event: typ, Got: v.Type()}
}

// clone returns a fresh shallow copy of src as an interface value of typ.
func clone(typ reflect.Type, src reflect.Value) any {
	if typ.Kind() == reflect.Pointer {
		p := reflect.New(typ.Elem())
		p.Elem().Set(src)
		return p.Interface()
	}
	c := reflect.New(typ).Elem()
	c.Set(src)
	return c.Interface()
}
