package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxioc/lib/encoding"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Load(ctx context.Context) (Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(Snapshot)
	return snap, args.Error(1)
}

func TestSetSource_ResetsCache(t *testing.T) {
	type requestKey struct{}
	ctx := context.WithValue(context.Background(), requestKey{}, "request")

	first := &mockSource{}
	first.On("Load", ctx).Return(Snapshot{"a": {"v": 1}}, nil).Once()
	second := &mockSource{}
	second.On("Load", ctx).Return(Snapshot{"b": {"v": 2}}, nil).Once()

	s := NewSerializer(WithSource(first))
	assert.Contains(t, s.SerializedState(ctx), "a")
	assert.Contains(t, s.SerializedState(ctx), "a")

	s.SetSource(second)
	assert.Contains(t, s.SerializedState(ctx), "b")

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestSerializedState_NoStateIsNotAnError(t *testing.T) {
	src := &mockSource{}
	src.On("Load", mock.Anything).Return(nil, ErrNoState).Once()

	s := NewSerializer(WithSource(src))
	assert.Equal(t, Snapshot{}, s.SerializedState(context.Background()))
	src.AssertNumberOfCalls(t, "Load", 1)
}

func TestJSONSource(t *testing.T) {
	snap, err := JSONSource([]byte(`{"svc":{"field":"x"}}`)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"svc": {"field": "x"}}, snap)

	_, err = JSONSource(nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	_, err = JSONSource([]byte(`[`)).Load(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoState))
}

func TestTokenSource(t *testing.T) {
	codec := encoding.MustCodec([]byte("token-source-key"))
	token, err := EncodeToken(codec, encoding.Sealed, Snapshot{"svc": {"field": "x"}})
	require.NoError(t, err)

	snap, err := TokenSource(codec, encoding.Sealed, token).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", snap["svc"]["field"])

	_, err = TokenSource(codec, encoding.Sealed, "").Load(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	_, err = TokenSource(codec, encoding.Signed, token).Load(context.Background())
	assert.ErrorIs(t, err, encoding.ErrInvalidFormat)
}
