package hxioc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/events"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

// BeforeFrontRenderEvent is triggered by Prepare right before state is
// captured. Services listen to it to settle their state for the page.
type BeforeFrontRenderEvent struct{}

// Factory adds application bindings to a fresh request container. The
// container already holds the system services.
type Factory func(c *container.Container) error

type systemConfig struct {
	logger      *slog.Logger
	waitTimeout time.Duration
	production  bool
	source      state.Source
}

// SystemOption configures the system services.
type SystemOption func(*systemConfig)

// WithLogger sets the logger handed to the container, bus and serializer.
func WithLogger(l *slog.Logger) SystemOption {
	return func(c *systemConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWaitTimeout sets the bus's default Await timeout.
func WithWaitTimeout(d time.Duration) SystemOption {
	return func(c *systemConfig) {
		c.waitTimeout = d
	}
}

// WithProduction disables development diagnostics.
func WithProduction(production bool) SystemOption {
	return func(c *systemConfig) {
		c.production = production
	}
}

// WithStateSource sets where the serializer reads incoming state from.
func WithStateSource(src state.Source) SystemOption {
	return func(c *systemConfig) {
		c.source = src
	}
}

func newSystemConfig(opts []SystemOption) systemConfig {
	cfg := systemConfig{
		logger:      logger.Discard(),
		waitTimeout: events.DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// SystemServices binds the container itself, an event bus and a state
// serializer into c.
func SystemServices(c *container.Container, opts ...SystemOption) error {
	cfg := newSystemConfig(opts)

	if err := container.BindInstance(c, c); err != nil {
		return err
	}
	if err := container.Bind(c, func(container.Resolver) (*events.Bus, error) {
		return events.NewBus(
			events.WithLogger(cfg.logger),
			events.WithDefaultTimeout(cfg.waitTimeout),
		), nil
	}); err != nil {
		return err
	}
	return container.Bind(c, func(container.Resolver) (*state.Serializer, error) {
		return state.NewSerializer(
			state.WithLogger(cfg.logger),
			state.WithProduction(cfg.production),
			state.WithSource(cfg.source),
		), nil
	})
}

// NewContainer builds a container holding the system services and the
// bindings added by factory.
func NewContainer(factory Factory, opts ...SystemOption) (*container.Container, error) {
	cfg := newSystemConfig(opts)
	c := container.New(container.WithLogger(cfg.logger))
	if err := SystemServices(c, opts...); err != nil {
		return nil, err
	}
	if factory != nil {
		if err := factory(c); err != nil {
			return nil, fmt.Errorf("hxioc: container factory: %w", err)
		}
	}
	return c, nil
}

// Prepare runs on the server once the page is computed: it initializes the
// decorators of every service, triggers BeforeFrontRenderEvent and captures
// the state.
func Prepare(ctx context.Context, c *container.Container) (state.Snapshot, error) {
	if err := decorator.InitializeContainer(c); err != nil {
		return nil, err
	}
	bus, err := container.Get[*events.Bus](c)
	if err != nil {
		return nil, err
	}
	if _, err := events.Trigger(ctx, bus, BeforeFrontRenderEvent{}); err != nil {
		return nil, err
	}
	serializer, err := container.Get[*state.Serializer](c)
	if err != nil {
		return nil, err
	}
	return serializer.Serialize(c)
}

// Restore runs on the client before application code: it initializes the
// decorators of every service and writes the incoming state into them.
func Restore(ctx context.Context, c *container.Container) error {
	if err := decorator.InitializeContainer(c); err != nil {
		return err
	}
	serializer, err := container.Get[*state.Serializer](c)
	if err != nil {
		return err
	}
	return serializer.Unserialize(c, serializer.SerializedState(ctx))
}
