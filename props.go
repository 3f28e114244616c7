package hxioc

import (
	"fmt"
	"reflect"

	"github.com/pthm/hxioc/lib/state"
)

// PropsKey is the snapshot key props travel under, one entry per uid.
const PropsKey = "$props"

// PropsReceiver is implemented by components that take inputs from the code
// mounting them. SetProps runs before BeforeCreate.
type PropsReceiver[P any] interface {
	SetProps(P)
}

// WithProps hands props to the component before its hooks run. The
// component must implement PropsReceiver for the type of props. Props are
// captured with the state token, so a refreshed component gets them back.
func WithProps(props any) MountOption {
	return func(c *mountConfig) {
		c.props = props
		c.hasProps = true
	}
}

// applyProps converts raw to the props type of inst and hands it over. It
// returns the converted value.
func applyProps(inst any, raw any) (any, error) {
	m := reflect.ValueOf(inst).MethodByName("SetProps")
	if !m.IsValid() || m.Type().NumIn() != 1 || m.Type().NumOut() != 0 {
		return nil, fmt.Errorf("%w: %T", ErrNoProps, inst)
	}
	props := reflect.New(m.Type().In(0))
	if err := state.Assign(props.Interface(), raw); err != nil {
		return nil, fmt.Errorf("hxioc: props of %T: %w", inst, err)
	}
	m.Call([]reflect.Value{props.Elem()})
	return props.Elem().Interface(), nil
}
