package decorator

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/events"
)

// ListenOptions configures a Listener.
type ListenOptions struct {
	Async bool
}

// Listener subscribes the decorated method to events of type E on the
// container's bus while the value is alive.
type Listener[E any] struct {
	Base[ListenOptions]

	bus    *events.Bus
	handle events.Handle
	bound  bool
}

// Listen declares that a method handles E. The method may take no
// arguments, E, a context, or a context and E, and may return an error.
func Listen[E any]() Decoration {
	return Create(newListener[E], ListenOptions{})
}

// ListenAsync is Listen with the method run on its own goroutine.
func ListenAsync[E any]() Decoration {
	return Create(newListener[E], ListenOptions{Async: true})
}

func newListener[E any](r container.Resolver) (*Listener[E], error) {
	bus, err := container.Get[*events.Bus](r)
	if err != nil {
		return nil, err
	}
	return &Listener[E]{bus: bus}, nil
}

func (l *Listener[E]) Created() error {
	d := l.Descriptor()
	if !d.IsMethod() {
		return fmt.Errorf("%w: %s", ErrNotMethod, l.PropertyName())
	}
	fn, err := adapt(d.Method, reflect.TypeFor[E]())
	if err != nil {
		return fmt.Errorf("%s: %w", l.PropertyName(), err)
	}

	typ := reflect.TypeFor[E]()
	if l.Options().Async {
		l.handle = l.bus.OnTypeAsync(typ, fn)
	} else {
		l.handle = l.bus.OnType(typ, fn)
	}
	l.bound = true
	return nil
}

func (l *Listener[E]) Destroyed() error {
	if !l.bound {
		return nil
	}
	l.bound = false
	return l.bus.Off(l.handle)
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// adapt wraps a bound method as an events.Listener.
func adapt(method reflect.Value, event reflect.Type) (events.Listener, error) {
	mt := method.Type()

	var returnsErr bool
	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0) != errorType {
			return nil, fmt.Errorf("%w: %s", ErrSignature, mt)
		}
		returnsErr = true
	default:
		return nil, fmt.Errorf("%w: %s", ErrSignature, mt)
	}

	var withCtx, withEvent bool
	switch mt.NumIn() {
	case 0:
	case 1:
		switch {
		case mt.In(0) == contextType:
			withCtx = true
		case event.AssignableTo(mt.In(0)):
			withEvent = true
		default:
			return nil, fmt.Errorf("%w: %s", ErrSignature, mt)
		}
	case 2:
		if mt.In(0) != contextType || !event.AssignableTo(mt.In(1)) {
			return nil, fmt.Errorf("%w: %s", ErrSignature, mt)
		}
		withCtx, withEvent = true, true
	default:
		return nil, fmt.Errorf("%w: %s", ErrSignature, mt)
	}

	return func(ctx context.Context, payload any) error {
		args := make([]reflect.Value, 0, 2)
		if withCtx {
			args = append(args, reflect.ValueOf(&ctx).Elem())
		}
		if withEvent {
			v := reflect.ValueOf(payload)
			if !v.IsValid() {
				v = reflect.Zero(event)
			}
			args = append(args, v)
		}
		out := method.Call(args)
		if returnsErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}, nil
}
