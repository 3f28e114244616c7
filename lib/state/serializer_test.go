package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/encoding"
)

type exampleState struct {
	Value int    `json:"value"`
	Test  string `json:"test"`
}

type exampleClass struct {
	State exampleState `json:"state"`
}

type conflictingClass struct {
	State []any `json:"state"`
}

type hackyClass struct {
	State map[string]string `json:"state"`
}

type counter struct {
	uid   string
	Count int
	Label string
}

func (c *counter) UID() string { return c.uid }

type unmarked struct {
	Value int
}

func init() {
	Serializable[exampleClass]("ExampleClass.state", "State")
	Serializable[conflictingClass]("ExampleClass.state", "State")
	Serializable[hackyClass]("SomeHackyClass.state", "State")
	Serializable[counter]("Counter", "Count")
	Serializable[counter]("Counter", "Label")
}

var exampleMock = exampleState{Value: 10, Test: "works!"}

func newExampleContainer(t *testing.T) *container.Container {
	t.Helper()
	c := container.New()
	require.NoError(t, container.Bind(c, func(container.Resolver) (*exampleClass, error) {
		return &exampleClass{State: exampleMock}, nil
	}))
	return c
}

func TestSerializable_InvalidFieldPanics(t *testing.T) {
	assert.Panics(t, func() { Serializable[counter]("Counter", "uid") })
	assert.Panics(t, func() { Serializable[counter]("Counter", "Missing") })
	assert.Panics(t, func() { Serializable[int]("Int", "Value") })
}

func TestMarks(t *testing.T) {
	marks := Marks(typeOf[*counter]())
	require.Len(t, marks, 2)
	assert.Equal(t, "Count", marks[0].Property)
	assert.Equal(t, "Label", marks[1].Field)

	marks = Marks(typeOf[exampleClass]())
	require.Len(t, marks, 1)
	assert.Equal(t, "State", marks[0].Field)
	assert.Equal(t, "state", marks[0].Property)
}

func TestSerialize(t *testing.T) {
	c := newExampleContainer(t)
	s := NewSerializer()

	snap, err := s.Serialize(c)
	require.NoError(t, err)

	assert.Equal(t, Snapshot{
		"ExampleClass.state": {"state": exampleMock},
	}, snap)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ExampleClass.state":{"state":{"value":10,"test":"works!"}}}`, string(raw))
}

func TestUnserialize(t *testing.T) {
	c := newExampleContainer(t)
	s := NewSerializer()
	restored := exampleState{Value: 20, Test: "works even better!"}

	err := s.Unserialize(c, Snapshot{
		"ExampleClass.state": {"state": restored},
	})
	require.NoError(t, err)

	svc := container.MustGet[*exampleClass](c)
	assert.Equal(t, restored, svc.State)
}

func TestRoundTripThroughJSON(t *testing.T) {
	server := newExampleContainer(t)
	snap, err := NewSerializer().Serialize(server)
	require.NoError(t, err)
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	client := container.New()
	require.NoError(t, container.Bind(client, func(container.Resolver) (*exampleClass, error) {
		return &exampleClass{}, nil
	}))
	s := NewSerializer(WithSource(JSONSource(raw)))

	require.NoError(t, s.Unserialize(client, s.SerializedState(context.Background())))

	assert.Equal(t, exampleMock, container.MustGet[*exampleClass](client).State)
}

func TestRoundTripThroughToken(t *testing.T) {
	codec := encoding.MustCodec([]byte("state-test"))
	server := newExampleContainer(t)
	snap, err := NewSerializer().Serialize(server)
	require.NoError(t, err)

	for _, mode := range []encoding.Mode{encoding.Signed, encoding.Sealed} {
		t.Run(mode.String(), func(t *testing.T) {
			token, err := EncodeToken(codec, mode, snap)
			require.NoError(t, err)

			client := container.New()
			require.NoError(t, container.BindInstance(client, &exampleClass{}))
			s := NewSerializer(WithSource(TokenSource(codec, mode, token)))

			require.NoError(t, s.Unserialize(client, s.SerializedState(context.Background())))
			assert.Equal(t, exampleMock, container.MustGet[*exampleClass](client).State)
		})
	}
}

func TestSerialize_Collision(t *testing.T) {
	c := newExampleContainer(t)
	require.NoError(t, container.BindInstance(c, &conflictingClass{}))

	snap, err := NewSerializer().Serialize(c)

	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "ExampleClass.state", collision.Key)
	assert.Equal(t, "state", collision.Property)
	assert.True(t, IsCollision(err))
	assert.Nil(t, snap)
}

func TestSerialize_CollisionWithZeroValue(t *testing.T) {
	c := container.New()
	require.NoError(t, container.BindInstance(c, &exampleClass{}))
	require.NoError(t, container.BindInstance(c, &conflictingClass{}))

	_, err := NewSerializer().Serialize(c)
	assert.True(t, IsCollision(err))
}

func TestAddCustomSerializable(t *testing.T) {
	c := newExampleContainer(t)
	s := NewSerializer()
	hacky := &hackyClass{State: map[string]string{"someOtherValue": "Ok!"}}

	s.AddCustomSerializable(hacky)
	snap, err := s.Serialize(c)
	require.NoError(t, err)

	assert.Equal(t, Snapshot{
		"ExampleClass.state":   {"state": exampleMock},
		"SomeHackyClass.state": {"state": map[string]string{"someOtherValue": "Ok!"}},
	}, snap)
}

func TestSerialize_SameInstanceTwiceIsNotACollision(t *testing.T) {
	c := container.New()
	svc := &exampleClass{State: exampleMock}
	require.NoError(t, container.BindInstance(c, svc))

	s := NewSerializer()
	s.AddCustomSerializable(svc)

	_, err := s.Serialize(c)
	assert.NoError(t, err)
}

func TestSerialize_UIDDisambiguates(t *testing.T) {
	c := container.New()
	s := NewSerializer()
	s.AddCustomSerializable(&counter{uid: "1", Count: 3, Label: "a"})
	s.AddCustomSerializable(&counter{uid: "2", Count: 5, Label: "b"})
	s.AddCustomSerializable(&counter{Count: 7})

	snap, err := s.Serialize(c)
	require.NoError(t, err)

	assert.Equal(t, Snapshot{
		"Counter-1": {"Count": 3, "Label": "a"},
		"Counter-2": {"Count": 5, "Label": "b"},
		"Counter":   {"Count": 7, "Label": ""},
	}, snap)
}

func TestUnserializeService(t *testing.T) {
	s := NewSerializer()

	t.Run("converts decoded values", func(t *testing.T) {
		c := &counter{uid: "9"}
		err := s.UnserializeService(c, Snapshot{
			"Counter-9": {"Count": float64(4), "Label": "restored"},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, c.Count)
		assert.Equal(t, "restored", c.Label)
	})

	t.Run("converts nested maps", func(t *testing.T) {
		e := &exampleClass{}
		err := s.UnserializeService(e, Snapshot{
			"ExampleClass.state": {"state": map[string]any{"value": int8(10), "test": "works!"}},
		})
		require.NoError(t, err)
		assert.Equal(t, exampleMock, e.State)
	})

	t.Run("skips missing keys and properties", func(t *testing.T) {
		c := &counter{uid: "1", Count: 1, Label: "keep"}
		require.NoError(t, s.UnserializeService(c, Snapshot{"Counter-1": {"Count": 2}}))
		assert.Equal(t, 2, c.Count)
		assert.Equal(t, "keep", c.Label)

		require.NoError(t, s.UnserializeService(c, Snapshot{"Counter-2": {"Count": 99}}))
		assert.Equal(t, 2, c.Count)
	})

	t.Run("nil value zeroes the field", func(t *testing.T) {
		c := &counter{Label: "gone"}
		require.NoError(t, s.UnserializeService(c, Snapshot{"Counter": {"Label": nil}}))
		assert.Empty(t, c.Label)
	})

	t.Run("unconvertible value", func(t *testing.T) {
		c := &counter{}
		err := s.UnserializeService(c, Snapshot{"Counter": {"Count": "many"}})
		var convertErr *ConvertError
		require.ErrorAs(t, err, &convertErr)
		assert.Equal(t, "Count", convertErr.Property)
	})

	t.Run("requires pointer", func(t *testing.T) {
		err := s.UnserializeService(counter{}, Snapshot{"Counter": {"Count": 1}})
		assert.ErrorIs(t, err, ErrNotPointer)
	})

	t.Run("unmarked value is ignored", func(t *testing.T) {
		u := &unmarked{Value: 1}
		require.NoError(t, s.UnserializeService(u, Snapshot{"Value": {"Value": 2}}))
		assert.Equal(t, 1, u.Value)
	})
}

func TestHasSerializableKey(t *testing.T) {
	s := NewSerializer()
	assert.True(t, s.HasSerializableKey(&exampleClass{}, "ExampleClass.state"))
	assert.True(t, s.HasSerializableKey(exampleClass{}, "ExampleClass.state"))
	assert.False(t, s.HasSerializableKey(&exampleClass{}, "Other"))
	assert.False(t, s.HasSerializableKey(&unmarked{}, "Value"))
	assert.False(t, s.HasSerializableKey(nil, "Value"))
}

func TestSerializedState(t *testing.T) {
	t.Run("memoized", func(t *testing.T) {
		calls := 0
		s := NewSerializer(WithSource(SourceFunc(func(context.Context) (Snapshot, error) {
			calls++
			return Snapshot{"k": {"p": 1}}, nil
		})))

		first := s.SerializedState(context.Background())
		second := s.SerializedState(context.Background())
		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
	})

	t.Run("failure is logged and cached as empty", func(t *testing.T) {
		var buf bytes.Buffer
		calls := 0
		s := NewSerializer(
			WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
			WithSource(SourceFunc(func(context.Context) (Snapshot, error) {
				calls++
				return nil, errors.New("malformed")
			})),
		)

		assert.Empty(t, s.SerializedState(context.Background()))
		assert.Empty(t, s.SerializedState(context.Background()))
		assert.Equal(t, 1, calls)
		assert.Contains(t, buf.String(), "malformed")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		s := NewSerializer(WithSource(JSONSource([]byte("{not json"))))
		assert.Equal(t, Snapshot{}, s.SerializedState(context.Background()))
	})

	t.Run("no source", func(t *testing.T) {
		assert.Equal(t, Snapshot{}, NewSerializer().SerializedState(context.Background()))
	})

	t.Run("SetSource resets the cache", func(t *testing.T) {
		s := NewSerializer(WithSource(StaticSource(Snapshot{"a": {"p": 1}})))
		assert.Contains(t, s.SerializedState(context.Background()), "a")

		s.SetSource(StaticSource(Snapshot{"b": {"p": 2}}))
		snap := s.SerializedState(context.Background())
		assert.Contains(t, snap, "b")
		assert.NotContains(t, snap, "a")
	})

	t.Run("empty token", func(t *testing.T) {
		s := NewSerializer(WithSource(TokenSource(encoding.MustCodec([]byte("k")), encoding.Signed, "")))
		assert.Equal(t, Snapshot{}, s.SerializedState(context.Background()))
	})
}

func TestSerialize_LogsSizeOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newExampleContainer(t)

	_, err := NewSerializer(WithLogger(log)).Serialize(c)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "size=")

	buf.Reset()
	_, err = NewSerializer(WithLogger(log), WithProduction(true)).Serialize(c)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestSerialize_LockedContainer(t *testing.T) {
	c := container.New(container.CreateLocked())
	_, err := NewSerializer().Serialize(c)

	var locked *container.LockedError
	assert.ErrorAs(t, err, &locked)
}
