// Package hxioc wires a dependency injection container, a decorator runtime
// and a state serializer into server-rendered templ + HTMX pages.
//
// # Core Concepts
//
// Every request gets its own container (lib/container) holding the
// application services plus three system services: the container itself,
// an event bus (lib/events) and a state serializer (lib/state). The
// container lives in the request context through a Root.
//
// Components embed Component and are declared with Define:
//
//	type Counter struct {
//	    hxioc.Component
//	    Count int
//	    store *Store
//	}
//
//	var CounterDef = hxioc.Define("counter", func(r container.Resolver) (*Counter, error) {
//	    store, err := container.Get[*Store](r)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &Counter{store: store}, nil
//	})
//
// Mount resolves an instance, gives it a uid, initializes its decorators
// (lib/decorator) and registers it for state capture. Lifecycle hooks are
// plain methods named after the hook (Created, ServerPrefetch, Render,
// RenderError, BeforeDestroy, ...), called through CallHook.
//
// # State Round Trip
//
// Fields marked with state.Serializable are captured after the page is
// computed. Page renders the body, calls Prepare (which initializes the
// decorators of every service, triggers BeforeFrontRenderEvent and
// serializes) and embeds the snapshot as a JSON script:
//
//	hxioc.Render(w, r, hxioc.Page(body, hxioc.DefaultScriptID))
//
// A component refresh sends the state back as a signed (or, for Sealed
// definitions, encrypted) token. The Registry builds a client-mode
// container, restores the token into it with Restore, remounts the
// component under its uid and renders it:
//
//	reg := hxioc.NewRegistry(key, app.Bindings)
//	reg.Add(CounterDef)
//	mux.Handle(reg.Prefix(), reg.Handler())
//	mux.Handle("/", reg.Middleware()(pages))
//
// In templates, Refresh and Act produce the HTMX attributes for a refresh
// or an action on a mounted instance. Inside Page their tokens carry the
// snapshot Page captures, not the state at the time the attribute was
// written.
//
// Inputs from the mounting code go through WithProps; the component takes
// them in SetProps before any hook runs, and they come back on refresh.
//
// # Request Lifecycle
//
// Middleware builds the server-mode container per request, tags it with a
// request id and calls decorator.DestroyContainer when the request ends, so
// event subscriptions made by decorators never outlive the request.
package hxioc
