package main

import (
	"context"
	"errors"

	"github.com/pthm/hxioc"
	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/events"
	"github.com/pthm/hxioc/lib/state"
)

// TodoAdded is triggered after a todo is stored.
type TodoAdded struct {
	ID    string
	Title string
}

var errEmptyTitle = errors.New("title is required")

// Todos is the per-request service components talk to.
type Todos struct {
	store *Store
	bus   *events.Bus
}

func newTodos(r container.Resolver) (*Todos, error) {
	store, err := container.Get[*Store](r)
	if err != nil {
		return nil, err
	}
	bus, err := container.Get[*events.Bus](r)
	if err != nil {
		return nil, err
	}
	return &Todos{store: store, bus: bus}, nil
}

// Add stores a todo and announces it.
func (t *Todos) Add(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", errEmptyTitle
	}
	id := t.store.Add(title)
	_, err := events.Trigger(ctx, t.bus, TodoAdded{ID: id, Title: title})
	return id, err
}

// Toggle flips a todo.
func (t *Todos) Toggle(id string) bool { return t.store.Toggle(id) }

// List returns the todos with status.
func (t *Todos) List(status Status) []Todo { return t.store.List(status) }

// Summary keeps the page-wide counters. It is settled right before the page
// state is captured and kept current as todos are added, so the counters
// travel with the page instead of being recounted on every refresh.
type Summary struct {
	Stats Stats  `json:"stats"`
	Last  string `json:"last"`

	store *Store
}

func newSummary(r container.Resolver) (*Summary, error) {
	store, err := container.Get[*Store](r)
	if err != nil {
		return nil, err
	}
	return &Summary{store: store}, nil
}

// Settle recounts the store.
func (s *Summary) Settle() {
	s.Stats = s.store.Stats()
}

// OnTodoAdded records the newest title.
func (s *Summary) OnTodoAdded(e TodoAdded) {
	s.Stats = s.store.Stats()
	s.Last = e.Title
}

func init() {
	state.Serializable[Summary]("summary", "Stats")
	state.Serializable[Summary]("summary", "Last")
	decorator.Apply[Summary]("Settle", decorator.Listen[hxioc.BeforeFrontRenderEvent]())
	decorator.Apply[Summary]("OnTodoAdded", decorator.Listen[TodoAdded]())
}

// bindings returns the factory for request containers. store is shared by
// every request.
func bindings(store *Store) hxioc.Factory {
	return func(c *container.Container) error {
		return c.Use(func(c *container.Container) error {
			if err := container.BindInstance(c, store); err != nil {
				return err
			}
			if err := container.Bind(c, newTodos); err != nil {
				return err
			}
			return container.Bind(c, newSummary)
		})
	}
}
