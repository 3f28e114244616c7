package hxioc

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/events"
)

func TestMiddleware_PerRequestContainer(t *testing.T) {
	var (
		roots []*Root
		bus   *events.Bus
	)
	handler := Middleware(appBindings)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root := MustRoot(r.Context())
		roots = append(roots, root)

		var err error
		bus, err = container.Get[*events.Bus](root.Container)
		require.NoError(t, err)

		err = Render(w, r, Page(text("<main></main>"), ""))
		require.NoError(t, err)
		assert.Equal(t, 1, bus.Listeners(reflect.TypeFor[BeforeFrontRenderEvent]()))
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"page":{"title":"Home"}`)
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	}

	require.Len(t, roots, 2)
	assert.NotSame(t, roots[0].Container, roots[1].Container)
	assert.NotEqual(t, roots[0].RequestID, roots[1].RequestID)
	assert.True(t, roots[0].IsServer())
	assert.Equal(t, 0, bus.Listeners(reflect.TypeFor[BeforeFrontRenderEvent]()))
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	var id string
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = MustRoot(r.Context()).RequestID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestMiddleware_FactoryError(t *testing.T) {
	called := false
	handler := Middleware(func(*container.Container) error {
		return assert.AnError
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestRegistry_Middleware(t *testing.T) {
	reg := newTestRegistry(t)
	var root *Root
	handler := reg.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root = MustRoot(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, root)
	assert.Same(t, reg.Codec(), root.Codec)
	assert.Equal(t, reg.Prefix(), root.Prefix)
}
