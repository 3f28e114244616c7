// Package container provides the dependency injection container used by
// hxioc: singleton bindings keyed by type, explicit providers that declare
// their dependencies, cycle detection, construct hooks and a lock gate.
//
// Bindings are declared with the generic helpers:
//
//	c := container.New()
//	container.Bind(c, NewRepository)        // Provider[*Repository]
//	container.Bind(c, NewService)           // resolves *Repository inside
//	container.BindInstance(c, cfg)
//
//	svc, err := container.Get[*Service](c)
//
// A provider receives a Resolver and pulls its dependencies through it:
//
//	func NewService(r container.Resolver) (*Service, error) {
//	    repo, err := container.Get[*Repository](r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &Service{repo: repo}, nil
//	}
//
// Every binding is a singleton for the lifetime of the container. Resolve
// builds a fresh, uncached value with the same dependency wiring.
//
// A container is safe for concurrent use. A singleton is built at most once;
// concurrent lookups of a key that is being built wait for that build.
// Providers and construct handlers may call back into the container.
package container

import (
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Key identifies a bindable capability. Two keys are equal only when they
// were derived from the same Go type.
type Key struct {
	typ reflect.Type
}

// KeyOf returns the key for type T.
func KeyOf[T any]() Key {
	return Key{typ: reflect.TypeFor[T]()}
}

// Type returns the Go type behind the key.
func (k Key) Type() reflect.Type {
	return k.typ
}

func (k Key) String() string {
	if k.typ == nil {
		return "<nil>"
	}
	return k.typ.String()
}

// Provider builds a value of T. Dependencies are resolved through r.
type Provider[T any] func(r Resolver) (T, error)

// ConstructHandler observes every value built by a provider.
type ConstructHandler func(service any)

// Resolver is the read side of a container. It is implemented by *Container
// and by the in-flight resolution handed to providers.
type Resolver interface {
	get(k Key) (any, error)
	build(k Key, fn func(Resolver) (any, error)) (any, error)
	owner() *Container
}

type binding struct {
	key      Key
	provide  func(Resolver) (any, error)
	instance any
	resolved bool
	mock     bool
	building chan struct{}
}

// Container holds singleton bindings and builds them on demand.
type Container struct {
	mu           sync.Mutex
	bindings     map[Key]*binding
	keys         []Key
	locked       bool
	createLocked bool
	handlers     []ConstructHandler
	logger       *slog.Logger

	valuesMu sync.Mutex
	values   map[any]any
}

// Option configures a Container.
type Option func(*Container)

// CreateLocked creates the container locked: bindings may be declared but
// Get and Resolve fail until Unlock is called. Once unlocked, the binding
// table is frozen.
func CreateLocked() Option {
	return func(c *Container) {
		c.createLocked = true
		c.locked = true
	}
}

// WithLogger configures structured logging for the container.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		bindings: make(map[Key]*binding),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		values:   make(map[any]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind registers p as the singleton provider for T. A previous binding of T
// is dropped together with its constructed value.
func Bind[T any](c *Container, p Provider[T]) error {
	if p == nil {
		return &NilProviderError{Key: KeyOf[T]()}
	}
	return c.bind("Bind", &binding{
		key: KeyOf[T](),
		provide: func(r Resolver) (any, error) {
			return p(r)
		},
	})
}

// BindInstance registers an already built value for T. The container never
// constructs anything for this key, so construct handlers do not see it.
func BindInstance[T any](c *Container, v T) error {
	return c.bind("BindInstance", &binding{
		key:      KeyOf[T](),
		instance: v,
		resolved: true,
	})
}

// BindMock registers a test double for T. Doubles usually embed the interface
// they stand in for and override only the methods a test needs; no
// completeness check is made.
func BindMock[T any](c *Container, v T) error {
	return c.bind("BindMock", &binding{
		key:      KeyOf[T](),
		instance: v,
		resolved: true,
		mock:     true,
	})
}

// MustBind is like Bind but panics on error. Use it in wiring code.
func MustBind[T any](c *Container, p Provider[T]) {
	if err := Bind(c, p); err != nil {
		panic(err)
	}
}

// Get returns the singleton bound to T, building it on first access.
func Get[T any](r Resolver) (T, error) {
	var zero T
	k := KeyOf[T]()
	v, err := r.get(k)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: k.String(), Got: typeName(v)}
	}
	return typed, nil
}

// MustGet is like Get but panics on error.
func MustGet[T any](r Resolver) T {
	v, err := Get[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve builds a new, uncached value with p. T does not need to be bound.
func Resolve[T any](r Resolver, p Provider[T]) (T, error) {
	var zero T
	if p == nil {
		return zero, &NilProviderError{Key: KeyOf[T]()}
	}
	k := KeyOf[T]()
	v, err := r.build(k, func(r Resolver) (any, error) {
		return p(r)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: k.String(), Got: typeName(v)}
	}
	return typed, nil
}

// Owner returns the container behind a resolver. Lookups made through the
// owner start a new resolution, so cycle detection does not follow them.
func Owner(r Resolver) *Container {
	return r.owner()
}

// Use runs fn against the container. It groups related bindings into a
// reusable unit.
func (c *Container) Use(fn func(*Container) error) error {
	return fn(c)
}

// OnConstruct registers a handler that runs right after a provider builds a
// value, before the building call returns.
func (c *Container) OnConstruct(h ConstructHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Unlock opens a container created with CreateLocked. There is no way back.
func (c *Container) Unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
}

// Locked reports whether Get and Resolve are currently refused.
func (c *Container) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Keys returns the bound keys in registration order.
func (c *Container) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.keys)
}

// Has reports whether T is bound.
func Has[T any](c *Container) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bindings[KeyOf[T]()]
	return ok
}

// GetAllServices returns the value of every binding in registration order,
// building singletons that were not built yet.
func (c *Container) GetAllServices() ([]any, error) {
	c.mu.Lock()
	locked := c.locked
	keys := slices.Clone(c.keys)
	c.mu.Unlock()

	if locked {
		return nil, &LockedError{Op: "GetAllServices"}
	}

	res := &resolution{c: c}
	services := make([]any, 0, len(keys))
	for _, k := range keys {
		v, err := res.get(k)
		if err != nil {
			return nil, err
		}
		services = append(services, v)
	}
	return services, nil
}

func (c *Container) bind(op string, b *binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.createLocked && !c.locked {
		return &FrozenError{Op: op}
	}

	if _, ok := c.bindings[b.key]; ok {
		c.keys = slices.DeleteFunc(c.keys, func(k Key) bool { return k == b.key })
		c.logger.Debug("container binding replaced", slog.String("key", b.key.String()))
	}
	if b.mock {
		c.logger.Debug("container mock bound", slog.String("key", b.key.String()))
	}

	c.bindings[b.key] = b
	c.keys = append(c.keys, b.key)
	return nil
}

func (c *Container) get(k Key) (any, error) {
	if c.Locked() {
		return nil, &LockedError{Op: "Get"}
	}
	return (&resolution{c: c}).get(k)
}

func (c *Container) build(k Key, fn func(Resolver) (any, error)) (any, error) {
	if c.Locked() {
		return nil, &LockedError{Op: "Resolve"}
	}
	return (&resolution{c: c}).build(k, fn)
}

func (c *Container) owner() *Container {
	return c
}

// notify runs the construct handlers. The mutex is not held, so handlers
// may use the container.
func (c *Container) notify(v any) {
	c.mu.Lock()
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()
	for _, h := range handlers {
		h(v)
	}
}

// resolution is one top-level Get or Resolve in progress. Its path holds the
// keys being built, outermost first. The container mutex guards only the
// binding table; providers and construct handlers run without it.
type resolution struct {
	c    *Container
	path []Key
}

func (r *resolution) get(k Key) (any, error) {
	if slices.Contains(r.path, k) {
		return nil, &CircularDependencyError{Path: append(slices.Clone(r.path), k)}
	}

	c := r.c
	for {
		c.mu.Lock()
		b, ok := c.bindings[k]
		if !ok {
			c.mu.Unlock()
			return nil, &BindingNotFoundError{Key: k}
		}
		if b.resolved {
			v := b.instance
			c.mu.Unlock()
			return v, nil
		}
		if wait := b.building; wait != nil {
			// Another resolution is building this singleton.
			c.mu.Unlock()
			<-wait
			continue
		}
		b.building = make(chan struct{})
		c.mu.Unlock()

		v, err := r.constructSingleton(k, b)
		if err != nil {
			return nil, err
		}
		c.notify(v)
		return v, nil
	}
}

// constructSingleton builds b and stores the result. The in-flight mark is
// cleared even when the provider panics.
func (r *resolution) constructSingleton(k Key, b *binding) (any, error) {
	var (
		v        any
		err      error
		returned bool
	)
	defer func() {
		r.c.mu.Lock()
		done := b.building
		b.building = nil
		if returned && err == nil {
			b.instance = v
			b.resolved = true
		}
		r.c.mu.Unlock()
		close(done)
	}()
	v, err = r.construct(k, b.provide)
	returned = true
	return v, err
}

func (r *resolution) build(k Key, fn func(Resolver) (any, error)) (any, error) {
	if slices.Contains(r.path, k) {
		return nil, &CircularDependencyError{Path: append(slices.Clone(r.path), k)}
	}
	v, err := r.construct(k, fn)
	if err != nil {
		return nil, err
	}
	r.c.notify(v)
	return v, nil
}

func (r *resolution) construct(k Key, fn func(Resolver) (any, error)) (any, error) {
	next := &resolution{c: r.c, path: append(slices.Clone(r.path), k)}
	v, err := fn(next)
	if err != nil {
		if IsConfigurationError(err) {
			return nil, err
		}
		return nil, &ConstructionError{Key: k, Err: err}
	}
	return v, nil
}

func (r *resolution) owner() *Container {
	return r.c
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
