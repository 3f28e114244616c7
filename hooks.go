package hxioc

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Hook names a lifecycle event. A component handles a hook by declaring a
// method named after the hook, for example Created for HookCreated.
type Hook string

// Lifecycle hooks.
const (
	HookBeforeCreate   Hook = "beforeCreate"
	HookCreated        Hook = "created"
	HookBeforeMount    Hook = "beforeMount"
	HookMounted        Hook = "mounted"
	HookBeforeUpdate   Hook = "beforeUpdate"
	HookUpdated        Hook = "updated"
	HookActivated      Hook = "activated"
	HookDeactivated    Hook = "deactivated"
	HookBeforeDestroy  Hook = "beforeDestroy"
	HookDestroyed      Hook = "destroyed"
	HookErrorCaptured  Hook = "errorCaptured"
	HookData           Hook = "data"
	HookRender         Hook = "render"
	HookRenderError    Hook = "renderError"
	HookFetch          Hook = "fetch"
	HookAsyncData      Hook = "asyncData"
	HookLayout         Hook = "layout"
	HookServerPrefetch Hook = "serverPrefetch"
)

// Hooks lists every known hook.
var Hooks = []Hook{
	HookBeforeCreate, HookCreated, HookBeforeMount, HookMounted, HookBeforeUpdate, HookUpdated,
	HookActivated, HookDeactivated, HookBeforeDestroy, HookDestroyed, HookErrorCaptured,
	HookData, HookRender, HookRenderError, HookFetch, HookAsyncData, HookLayout, HookServerPrefetch,
}

// Method returns the name of the method that handles h.
func (h Hook) Method() string {
	if h == "" {
		return ""
	}
	return strings.ToUpper(string(h[:1])) + string(h[1:])
}

func (h Hook) String() string { return string(h) }

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// HasHook reports whether inst declares a handler for h.
func HasHook(inst any, h Hook) bool {
	if inst == nil {
		return false
	}
	return reflect.ValueOf(inst).MethodByName(h.Method()).IsValid()
}

// CallHook invokes the handler of h on inst, with inst as receiver, and
// returns its results. A leading context.Context parameter receives ctx;
// args fill the remaining parameters. A trailing error result is returned
// as the error instead of among the results. Missing handlers are not an
// error: CallHook returns nil, nil.
func CallHook(ctx context.Context, inst any, h Hook, args ...any) ([]any, error) {
	if inst == nil {
		return nil, nil
	}
	method := reflect.ValueOf(inst).MethodByName(h.Method())
	if !method.IsValid() {
		return nil, nil
	}

	in, err := hookArgs(ctx, method.Type(), args)
	if err != nil {
		return nil, &HookError{Component: componentName(inst), Hook: h, Err: err}
	}

	out := method.Call(in)
	mt := method.Type()
	if n := mt.NumOut(); n > 0 && mt.Out(n-1) == errorType {
		last := out[n-1]
		out = out[:n-1]
		if !last.IsNil() {
			return values(out), &HookError{Component: componentName(inst), Hook: h, Err: last.Interface().(error)}
		}
	}
	return values(out), nil
}

func hookArgs(ctx context.Context, mt reflect.Type, args []any) ([]reflect.Value, error) {
	if mt.IsVariadic() {
		return nil, fmt.Errorf("variadic handlers are not supported")
	}
	in := make([]reflect.Value, 0, mt.NumIn())
	i := 0
	if mt.NumIn() > 0 && mt.In(0) == contextType {
		in = append(in, reflect.ValueOf(&ctx).Elem())
		i = 1
	}
	if mt.NumIn()-i != len(args) {
		return nil, fmt.Errorf("handler takes %d arguments, got %d", mt.NumIn()-i, len(args))
	}
	for _, arg := range args {
		want := mt.In(i)
		if arg == nil {
			in = append(in, reflect.Zero(want))
		} else {
			v := reflect.ValueOf(arg)
			if !v.Type().AssignableTo(want) {
				return nil, fmt.Errorf("argument %d: %s is not assignable to %s", i, v.Type(), want)
			}
			in = append(in, v)
		}
		i++
	}
	return in, nil
}

func values(vs []reflect.Value) []any {
	if len(vs) == 0 {
		return nil
	}
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Interface()
	}
	return out
}
