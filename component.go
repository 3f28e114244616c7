package hxioc

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

// Component is embedded by user components. It carries the render uid that
// identifies an instance across the round trip, which also keys the
// instance's fields in the state snapshot.
//
//	type Counter struct {
//	    hxioc.Component
//	    Count int
//	}
//
//	var CounterDef = hxioc.Define("counter", func(r container.Resolver) (*Counter, error) {
//	    return &Counter{}, nil
//	})
type Component struct {
	uid    string
	name   string
	sealed bool
	root   *Root
}

// UID returns the render uid.
func (c *Component) UID() string { return c.uid }

// Name returns the definition name the instance was mounted from.
func (c *Component) Name() string { return c.name }

// Root returns the root the instance was mounted under.
func (c *Component) Root() *Root { return c.root }

// Container returns the container the instance was resolved from.
func (c *Component) Container() *container.Container {
	if c.root == nil {
		return nil
	}
	return c.root.Container
}

func (c *Component) base() *Component { return c }

// Instance is implemented by every type embedding Component.
type Instance interface {
	UID() string
	base() *Component
}

// ActionFunc handles a named action on a mounted instance during a refresh.
type ActionFunc[T Instance] func(ctx context.Context, inst T, r *http.Request) error

// Definition describes how to build a component.
type Definition[T Instance] struct {
	name    string
	provide container.Provider[T]
	sealed  bool
	actions map[string]ActionFunc[T]
}

// Define declares a component named name, built by p through the request
// container.
func Define[T Instance](name string, p container.Provider[T]) *Definition[T] {
	if p == nil {
		panic(fmt.Sprintf("hxioc: component %q has no provider", name))
	}
	return &Definition[T]{
		name:    name,
		provide: p,
		actions: make(map[string]ActionFunc[T]),
	}
}

// Name returns the component name.
func (d *Definition[T]) Name() string { return d.name }

// Sealed encrypts the state token of this component instead of only
// signing it. Use it when state must stay opaque to the browser.
func (d *Definition[T]) Sealed() *Definition[T] {
	d.sealed = true
	return d
}

// IsSealed reports whether state tokens are encrypted.
func (d *Definition[T]) IsSealed() bool { return d.sealed }

// Action registers a named action run on refresh requests before rendering.
func (d *Definition[T]) Action(name string, fn ActionFunc[T]) *Definition[T] {
	if _, exists := d.actions[name]; exists {
		panic(fmt.Sprintf("hxioc: component %q already has action %q", d.name, name))
	}
	d.actions[name] = fn
	return d
}

type mountConfig struct {
	uid      string
	props    any
	hasProps bool
}

// MountOption configures Mount.
type MountOption func(*mountConfig)

// WithUID mounts the instance under an existing uid, so that state captured
// for it on an earlier render is found again.
func WithUID(uid string) MountOption {
	return func(c *mountConfig) {
		c.uid = uid
	}
}

// Mount builds an instance of d through the container of the root in ctx
// and registers it for state capture. Props given with WithProps are handed
// over first; on the client, props and state are restored from the incoming
// snapshot when none are given. The Created hook runs last.
func Mount[T Instance](ctx context.Context, d *Definition[T], opts ...MountOption) (T, error) {
	var zero T
	root, ok := RootFrom(ctx)
	if !ok {
		return zero, ErrNoRoot
	}
	cfg := mountConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	inst, err := container.Resolve(root.Container, d.provide)
	if err != nil {
		return zero, fmt.Errorf("hxioc: mount %s: %w", d.name, err)
	}
	if reflect.ValueOf(inst).Kind() != reflect.Pointer {
		return zero, fmt.Errorf("hxioc: mount %s: component must be a pointer", d.name)
	}

	cmp := inst.base()
	cmp.name = d.name
	cmp.sealed = d.sealed
	cmp.root = root
	cmp.uid = cfg.uid
	if cmp.uid == "" {
		cmp.uid = root.NextUID()
	}

	serializer, err := container.Get[*state.Serializer](root.Container)
	if err != nil {
		return zero, err
	}
	props, hasProps := cfg.props, cfg.hasProps
	if !hasProps && root.IsClient() {
		props, hasProps = serializer.SerializedState(ctx)[PropsKey][cmp.uid]
	}
	if hasProps {
		applied, err := applyProps(inst, props)
		if err != nil {
			return zero, fmt.Errorf("hxioc: mount %s: %w", d.name, err)
		}
		root.recordProps(cmp.uid, applied)
	}

	if _, err := CallHook(ctx, inst, HookBeforeCreate); err != nil {
		return zero, err
	}
	if err := decorator.Initialize(inst, root.Container); err != nil {
		return zero, fmt.Errorf("hxioc: mount %s: %w", d.name, err)
	}

	if root.IsClient() {
		if err := serializer.UnserializeService(inst, serializer.SerializedState(ctx)); err != nil {
			return zero, fmt.Errorf("hxioc: mount %s: %w", d.name, err)
		}
	}
	// Client roots capture state too: a refreshed component hands a new
	// token back to the browser.
	serializer.AddCustomSerializable(inst)

	if _, err := CallHook(ctx, inst, HookCreated); err != nil {
		return zero, err
	}
	root.Logger.DebugContext(ctx, "component mounted",
		logger.Component(d.name),
		logger.UID(cmp.uid),
		slog.String("mode", root.Mode.String()),
	)
	return inst, nil
}

// Unmount runs BeforeDestroy, tears down the decorators of inst and runs
// Destroyed.
func Unmount(ctx context.Context, inst Instance) error {
	cmp := inst.base()
	if cmp.root == nil {
		return ErrNoRoot
	}
	if _, err := CallHook(ctx, inst, HookBeforeDestroy); err != nil {
		return err
	}
	if err := decorator.Destroy(inst, cmp.root.Container); err != nil {
		return err
	}
	cmp.root.forgetProps(cmp.uid)
	_, err := CallHook(ctx, inst, HookDestroyed)
	return err
}

// RenderComponent renders inst inside a wrapper element carrying its uid.
// On the server ServerPrefetch runs first. A failing render is handed to the
// RenderError hook when the component has one.
func RenderComponent(inst Instance) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		cmp := inst.base()

		var buf bytes.Buffer
		err := renderBody(ctx, inst, &buf)
		if err != nil {
			fallback, ok, herr := renderErrorView(ctx, inst, err)
			if herr != nil || !ok {
				if cmp.root != nil {
					cmp.root.Logger.ErrorContext(ctx, "component render failed",
						logger.Component(cmp.name), logger.UID(cmp.uid), logger.Error(err))
				}
				return err
			}
			buf.Reset()
			if err := fallback.Render(ctx, &buf); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, `<div uid="%s" data-hxioc="%s">`,
			html.EscapeString(cmp.uid), html.EscapeString(cmp.name)); err != nil {
			return err
		}
		if _, err := buf.WriteTo(w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

func renderBody(ctx context.Context, inst Instance, w io.Writer) error {
	if root := inst.base().root; root == nil || root.IsServer() {
		if err := prefetch(ctx, inst); err != nil {
			return err
		}
	}

	if r, ok := inst.(Renderer); ok {
		view := r.Render(ctx)
		if view == nil {
			return &HookError{Component: inst.base().name, Hook: HookRender, Err: ErrNoRender}
		}
		return view.Render(ctx, w)
	}
	if !HasHook(inst, HookRender) {
		return ErrNoRender
	}
	out, err := CallHook(ctx, inst, HookRender)
	if err != nil {
		return err
	}
	view, ok := firstComponent(out)
	if !ok {
		return &HookError{Component: inst.base().name, Hook: HookRender, Err: ErrNoRender}
	}
	return view.Render(ctx, w)
}

func prefetch(ctx context.Context, inst Instance) error {
	if p, ok := inst.(Prefetcher); ok {
		if err := p.ServerPrefetch(ctx); err != nil {
			return &HookError{Component: inst.base().name, Hook: HookServerPrefetch, Err: err}
		}
		return nil
	}
	_, err := CallHook(ctx, inst, HookServerPrefetch)
	return err
}

func renderErrorView(ctx context.Context, inst Instance, cause error) (templ.Component, bool, error) {
	if er, ok := inst.(ErrorRenderer); ok {
		view := er.RenderError(ctx, cause)
		return view, view != nil, nil
	}
	if !HasHook(inst, HookRenderError) {
		return nil, false, nil
	}
	out, err := CallHook(ctx, inst, HookRenderError, cause)
	if err != nil {
		return nil, false, err
	}
	view, ok := firstComponent(out)
	return view, ok, nil
}

func firstComponent(out []any) (templ.Component, bool) {
	if len(out) == 0 {
		return nil, false
	}
	view, ok := out[0].(templ.Component)
	return view, ok && view != nil
}

func componentName(inst any) string {
	if i, ok := inst.(Instance); ok {
		if name := i.base().name; name != "" {
			return name
		}
	}
	return reflect.TypeOf(inst).String()
}
