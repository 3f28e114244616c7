// Package hxiocecho provides Echo framework integration for hxioc.
//
// Mount the refresh handler and the request middleware on an Echo instance:
//
//	e := echo.New()
//	reg := hxiocecho.Mount(e, app.Bindings, hxiocecho.WithKey(key))
//	reg.Add(components.CounterDef)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	reg := hxiocecho.MountGroup(g, "/app", app.Bindings)
package hxiocecho

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxioc"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	key      []byte
	path     string
	registry []hxioc.RegistryOption
}

// WithKey sets the key that secures state tokens.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithPath sets the path component refreshes are served under, relative to
// the Echo instance or group. Defaults to hxioc.DefaultPrefix.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithRegistryOptions passes options through to hxioc.NewRegistry.
func WithRegistryOptions(opts ...hxioc.RegistryOption) Option {
	return func(o *options) {
		o.registry = append(o.registry, opts...)
	}
}

// Mount creates a registry, serves its refreshes on e and installs the
// request middleware so pages rendered by e get a request container.
func Mount(e *echo.Echo, factory hxioc.Factory, opts ...Option) *hxioc.Registry {
	reg := newRegistry("", factory, opts)
	e.Use(Middleware(reg))
	e.Any(reg.Prefix()+"*", echo.WrapHandler(reg.Handler()))
	return reg
}

// MountGroup is Mount for a group. prefix is the group's path prefix; the
// registry needs it to build refresh URLs.
func MountGroup(g *echo.Group, prefix string, factory hxioc.Factory, opts ...Option) *hxioc.Registry {
	reg := newRegistry(prefix, factory, opts)
	g.Use(Middleware(reg))
	g.Any(reg.Prefix()[len(prefix):]+"*", echo.WrapHandler(reg.Handler()))
	return reg
}

func newRegistry(prefix string, factory hxioc.Factory, opts []Option) *hxioc.Registry {
	o := &options{path: hxioc.DefaultPrefix}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxiocecho: failed to generate random key: %v", err))
		}
	}

	regOpts := append([]hxioc.RegistryOption{hxioc.WithRegistryPrefix(prefix + o.path)}, o.registry...)
	return hxioc.NewRegistry(key, factory, regOpts...)
}

// Middleware adapts the registry's request middleware to Echo. Refresh
// requests are skipped since the registry builds their containers itself.
func Middleware(reg *hxioc.Registry) echo.MiddlewareFunc {
	mw := echo.WrapMiddleware(reg.Middleware())
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, reg.Prefix()) {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxiocecho.Render(c, hxioc.Page(views.Home(), hxioc.DefaultScriptID))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
