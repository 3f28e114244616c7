package main

import (
	"context"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc"
	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/state"
)

// TodoList shows the todos matching Filter and lets the user add and toggle
// them. Filter survives refreshes through the state token.
type TodoList struct {
	hxioc.Component
	Filter Status `json:"filter"`

	todos   *Todos
	summary *Summary
	items   []Todo
	err     error
}

var todoListDef = hxioc.Define("todolist", func(r container.Resolver) (*TodoList, error) {
	todos, err := container.Get[*Todos](r)
	if err != nil {
		return nil, err
	}
	summary, err := container.Get[*Summary](r)
	if err != nil {
		return nil, err
	}
	return &TodoList{todos: todos, summary: summary}, nil
}).
	Action("add", func(ctx context.Context, c *TodoList, r *http.Request) error {
		if _, err := c.todos.Add(ctx, r.FormValue("title")); err != nil {
			// Shown inline; the refresh itself succeeds.
			c.err = err
		}
		return nil
	}).
	Action("toggle", func(_ context.Context, c *TodoList, r *http.Request) error {
		if !c.todos.Toggle(r.FormValue("id")) {
			return hxioc.ErrNotFound
		}
		c.summary.Settle()
		return nil
	}).
	Action("filter", func(_ context.Context, c *TodoList, r *http.Request) error {
		switch s := Status(r.FormValue("status")); s {
		case "", StatusPending, StatusCompleted:
			c.Filter = s
			return nil
		}
		return hxioc.ErrNotFound
	})

func (c *TodoList) ServerPrefetch(context.Context) error {
	c.items = c.todos.List(c.Filter)
	// The view prints the counters, which otherwise settle after rendering.
	c.summary.Settle()
	return nil
}

func (c *TodoList) Render(ctx context.Context) templ.Component {
	// Refreshes skip ServerPrefetch and read the list after the action ran.
	if c.Root().IsClient() {
		c.items = c.todos.List(c.Filter)
	}
	return todoListView(ctx, c)
}

// Counter is a small standalone component: its count lives only in the
// state token.
type Counter struct {
	hxioc.Component
	Count int `json:"count"`
}

var counterDef = hxioc.Define("counter", func(container.Resolver) (*Counter, error) {
	return &Counter{}, nil
}).
	Action("inc", func(_ context.Context, c *Counter, _ *http.Request) error {
		c.Count++
		return nil
	})

func (c *Counter) Render(ctx context.Context) templ.Component {
	return counterView(ctx, c)
}

func init() {
	state.Serializable[TodoList]("todolist", "Filter")
	state.Serializable[Counter]("counter", "Count")
}
