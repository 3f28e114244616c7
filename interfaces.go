package hxioc

import (
	"context"

	"github.com/a-h/templ"
)

// Renderer is implemented by components to produce their markup. Render
// reads the instance's state and should have no side effects.
//
//	func (c *Counter) Render(ctx context.Context) templ.Component {
//	    return counterView(c)
//	}
//
// Components may declare any handler shape CallHook accepts; Renderer is the
// shape RenderComponent calls without reflection.
type Renderer interface {
	Render(ctx context.Context) templ.Component
}

// Prefetcher is implemented by components that load data on the server
// before rendering. ServerPrefetch runs once per server render, before
// Render and before the page state is captured.
type Prefetcher interface {
	ServerPrefetch(ctx context.Context) error
}

// ErrorRenderer is implemented by components that render a fallback when
// Render fails.
type ErrorRenderer interface {
	RenderError(ctx context.Context, err error) templ.Component
}
