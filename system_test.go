package hxioc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/events"
	"github.com/pthm/hxioc/lib/state"
)

func TestNewContainer_SystemServices(t *testing.T) {
	c, err := NewContainer(appBindings)
	require.NoError(t, err)

	self, err := container.Get[*container.Container](c)
	require.NoError(t, err)
	assert.Same(t, c, self)

	assert.True(t, container.Has[*events.Bus](c))
	assert.True(t, container.Has[*state.Serializer](c))
	assert.True(t, container.Has[*pageTitle](c))
}

func TestNewContainer_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewContainer(func(*container.Container) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPrepare_TriggersFrontRenderAndCaptures(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(appBindings)
	require.NoError(t, err)
	defer decorator.DestroyContainer(c)

	snap, err := Prepare(ctx, c)
	require.NoError(t, err)

	title := container.MustGet[*pageTitle](c)
	assert.Equal(t, 1, title.rendered)
	assert.Equal(t, state.Snapshot{"page": {"title": "Home"}}, snap)
}

func TestRestore_WritesIncomingState(t *testing.T) {
	ctx := context.Background()
	snap := state.Snapshot{"page": {"title": "Restored"}}
	c, err := NewContainer(appBindings, WithStateSource(state.StaticSource(snap)))
	require.NoError(t, err)
	defer decorator.DestroyContainer(c)

	require.NoError(t, Restore(ctx, c))

	title := container.MustGet[*pageTitle](c)
	assert.Equal(t, "Restored", title.Title)
	assert.Zero(t, title.rendered)

	// Listeners are live after Restore.
	bus := container.MustGet[*events.Bus](c)
	_, err = events.Trigger(ctx, bus, BeforeFrontRenderEvent{})
	require.NoError(t, err)
	assert.Equal(t, 1, title.rendered)
	assert.Equal(t, "Restored", title.Title)
}

func TestRestore_WithoutState(t *testing.T) {
	c, err := NewContainer(appBindings)
	require.NoError(t, err)
	defer decorator.DestroyContainer(c)

	require.NoError(t, Restore(context.Background(), c))
	assert.Empty(t, container.MustGet[*pageTitle](c).Title)
}
