package hxioc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

// DefaultPrefix is where the registry serves component refreshes.
const DefaultPrefix = "/_hxioc/"

// Registrable is implemented by *Definition.
type Registrable interface {
	Name() string
	serve(ctx context.Context, reg *Registry, w http.ResponseWriter, r *http.Request) error
}

// Registry serves refresh requests for registered components. Each request
// gets its own client-mode container, restored from the state token the
// browser sends back.
type Registry struct {
	mu         sync.RWMutex
	mux        *http.ServeMux
	codec      *encoding.Codec
	factory    Factory
	system     []SystemOption
	prefix     string
	logger     *slog.Logger
	components map[string]Registrable

	// OnError is called when a refresh fails.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryPrefix changes the mount path. It must end with a slash.
func WithRegistryPrefix(prefix string) RegistryOption {
	return func(reg *Registry) {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		reg.prefix = prefix
	}
}

// WithRegistryLogger sets the logger for refresh requests.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(reg *Registry) {
		if l != nil {
			reg.logger = l
		}
	}
}

// WithSystemOptions passes options to the system services of every
// container the registry builds.
func WithSystemOptions(opts ...SystemOption) RegistryOption {
	return func(reg *Registry) {
		reg.system = append(reg.system, opts...)
	}
}

// NewRegistry creates a registry. key secures state tokens; factory adds
// the application bindings to each request container.
func NewRegistry(key []byte, factory Factory, opts ...RegistryOption) *Registry {
	codec, err := encoding.NewCodec(key)
	if err != nil {
		panic(fmt.Sprintf("hxioc: failed to create codec: %v", err))
	}

	reg := &Registry{
		mux:        http.NewServeMux(),
		codec:      codec,
		factory:    factory,
		prefix:     DefaultPrefix,
		logger:     logger.Discard(),
		components: make(map[string]Registrable),
	}
	for _, opt := range opts {
		opt(reg)
	}

	reg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsNotFound(err):
			http.Error(w, "Not found", http.StatusNotFound)
		case IsDecryptionError(err):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}
	return reg
}

// Codec returns the codec securing state tokens.
func (reg *Registry) Codec() *encoding.Codec { return reg.codec }

// Prefix returns the mount path.
func (reg *Registry) Prefix() string { return reg.prefix }

// Add registers component definitions. A duplicate name panics.
func (reg *Registry) Add(defs ...Registrable) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, def := range defs {
		name := def.Name()
		if _, exists := reg.components[name]; exists {
			panic(fmt.Sprintf("hxioc: component name collision for %q", name))
		}
		reg.components[name] = def
		reg.mux.HandleFunc(reg.prefix+name, func(w http.ResponseWriter, r *http.Request) {
			if err := def.serve(r.Context(), reg, w, r); err != nil {
				reg.logger.ErrorContext(r.Context(), "component refresh failed",
					logger.Component(name), logger.Error(err))
				reg.OnError(w, r, err)
			}
		})
	}
}

// Lookup returns the definition registered under name.
func (reg *Registry) Lookup(name string) (Registrable, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	def, ok := reg.components[name]
	return def, ok
}

// Handler returns the HTTP handler for refresh requests. Mount it at
// Prefix.
func (reg *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Mutating requests must come from HTMX; a cross-origin form cannot
		// set the header.
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !IsHTMX(r) {
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		reg.mux.ServeHTTP(w, r)
	})
}

// Middleware returns the request middleware for pages that mount
// components registered here.
func (reg *Registry) Middleware() func(http.Handler) http.Handler {
	return Middleware(reg.factory,
		WithMiddlewareCodec(reg.codec),
		WithMiddlewarePrefix(reg.prefix),
		WithMiddlewareLogger(reg.logger),
		WithMiddlewareSystem(reg.system...),
	)
}

// decodeState reads the state token of a refresh request.
func (reg *Registry) decodeState(r *http.Request, mode encoding.Mode) (state.Snapshot, error) {
	snap := state.Snapshot{}
	token := r.FormValue(ParamState)
	if token == "" {
		return snap, nil
	}
	if err := reg.codec.Decode(token, mode, &snap); err != nil {
		return nil, wrapEncodingError(err)
	}
	return snap, nil
}

func (d *Definition[T]) serve(ctx context.Context, reg *Registry, w http.ResponseWriter, r *http.Request) error {
	mode := encoding.Signed
	if d.sealed {
		mode = encoding.Sealed
	}
	snap, err := reg.decodeState(r, mode)
	if err != nil {
		return err
	}

	opts := append(append([]SystemOption{}, reg.system...), WithStateSource(state.StaticSource(snap)))
	c, err := NewContainer(reg.factory, opts...)
	if err != nil {
		return err
	}
	root := NewRoot(c, ClientMode,
		WithRequestID(requestID(r)),
		WithRootLogger(reg.logger),
		WithCodec(reg.codec),
		WithPrefix(reg.prefix),
	)
	ctx = WithRoot(ctx, root)
	defer func() {
		if err := decorator.DestroyContainer(c); err != nil {
			root.Logger.ErrorContext(ctx, "container teardown failed", logger.Error(err))
		}
	}()

	if err := Restore(ctx, c); err != nil {
		return err
	}
	inst, err := Mount(ctx, d, WithUID(r.FormValue(ParamUID)))
	if err != nil {
		return err
	}

	if name := r.FormValue(ParamAction); name != "" {
		action, ok := d.actions[name]
		if !ok {
			return fmt.Errorf("%w: action %q of %s", ErrNotFound, name, d.name)
		}
		if err := action(ctx, inst, r); err != nil {
			return err
		}
	}

	return Render(w, r.WithContext(ctx), RenderComponent(inst))
}
