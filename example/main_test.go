package main

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxioc"
	"github.com/pthm/hxioc/lib/config"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

var testKey = []byte("example-key-must-be-32-bytes!!!!")

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.App{Env: "test", ScriptID: "__hxioc_state"}
	srv := httptest.NewServer(newApp(cfg, logger.Discard(), testKey, NewStore("first", "second")))
	t.Cleanup(srv.Close)
	return srv
}

var valsAttr = regexp.MustCompile(`hx-post="([^"]*)" hx-swap="[^"]*" hx-target="[^"]*" hx-vals="([^"]*)"`)

// actions returns the hx-vals of every action in body, keyed by component
// path and action name.
func actions(t *testing.T, body string) map[string]map[string]string {
	t.Helper()
	out := map[string]map[string]string{}
	for _, m := range valsAttr.FindAllStringSubmatch(body, -1) {
		var vals map[string]string
		require.NoError(t, json.Unmarshal([]byte(html.UnescapeString(m[2])), &vals))
		out[m[1]+"#"+vals["action"]] = vals
	}
	return out
}

func post(t *testing.T, srv *httptest.Server, path string, vals map[string]string, extra url.Values) string {
	t.Helper()
	form := url.Values{}
	for k, v := range vals {
		form.Set(k, v)
	}
	for k, v := range extra {
		form[k] = v
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b strings.Builder
	_, err = io.Copy(&b, resp.Body)
	require.NoError(t, err)
	return b.String()
}

func get(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b strings.Builder
	_, err = io.Copy(&b, resp.Body)
	require.NoError(t, err)
	return b.String()
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t)
	body := get(t, srv)

	assert.Contains(t, body, `<div uid="1" data-hxioc="todolist">`)
	assert.Contains(t, body, `<div uid="2" data-hxioc="counter">`)
	assert.Contains(t, body, "0 of 2 done")
	assert.Contains(t, body, `"summary":{"last":"","stats":{"total":2,"completed":0}}`)
	assert.Contains(t, body, `"counter-2":{"count":0}`)
	assert.Less(t, strings.Index(body, "__hxioc_state"), strings.Index(body, "</body>"))
}

func TestIndex_TokensMatchPageState(t *testing.T) {
	srv := newTestServer(t)
	acts := actions(t, get(t, srv))
	inc, ok := acts["/_hxioc/counter#inc"]
	require.True(t, ok)

	snap, err := state.TokenSource(encoding.MustCodec(testKey), encoding.Signed, inc[hxioc.ParamState]).
		Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap, "summary")
	assert.Contains(t, snap, "todolist-1")
	assert.Contains(t, snap, "counter-2")
}

func TestCounterRefresh(t *testing.T) {
	srv := newTestServer(t)
	acts := actions(t, get(t, srv))
	inc, ok := acts["/_hxioc/counter#inc"]
	require.True(t, ok)

	body := post(t, srv, "/_hxioc/counter", inc, nil)
	assert.Contains(t, body, `<div uid="2" data-hxioc="counter">`)
	assert.Contains(t, body, "Clicked 1 times")

	// The refreshed markup carries the new state.
	body = post(t, srv, "/_hxioc/counter", actions(t, body)["/_hxioc/counter#inc"], nil)
	assert.Contains(t, body, "Clicked 2 times")
}

func TestTodoListActions(t *testing.T) {
	srv := newTestServer(t)
	acts := actions(t, get(t, srv))

	body := post(t, srv, "/_hxioc/todolist", acts["/_hxioc/todolist#add"], url.Values{"title": {"third"}})
	assert.Contains(t, body, "0 of 3 done, last added: third")
	assert.Contains(t, body, ">third</button>")

	body = post(t, srv, "/_hxioc/todolist", actions(t, body)["/_hxioc/todolist#toggle"], url.Values{"id": {"todo-1"}})
	assert.Contains(t, body, "1 of 3 done")
	assert.Contains(t, body, `<li class="completed"><button name="id" value="todo-1"`)

	body = post(t, srv, "/_hxioc/todolist", actions(t, body)["/_hxioc/todolist#filter"], url.Values{"status": {"completed"}})
	assert.Contains(t, body, ">first</button>")
	assert.NotContains(t, body, ">second</button>")

	// The filter is part of the component state from now on.
	body = post(t, srv, "/_hxioc/todolist", actions(t, body)["/_hxioc/todolist#add"], url.Values{"title": {""}})
	assert.Contains(t, body, "title is required")
	assert.NotContains(t, body, ">second</button>")
}

func TestStore(t *testing.T) {
	s := NewStore("a", "b")
	require.True(t, s.Toggle("todo-2"))
	assert.False(t, s.Toggle("todo-9"))

	assert.Equal(t, Stats{Total: 2, Completed: 1}, s.Stats())
	pending := s.List(StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Title)
	assert.Len(t, s.List(""), 2)
}
