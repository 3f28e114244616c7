package hxioc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/state"
)

// TestResult holds the output of a test render or refresh.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header
}

// TestRender mounts d in a fresh server-mode container built by factory and
// renders it. setup runs on the instance between mount and render.
//
//	result, err := hxioc.TestRender(app.Bindings, CounterDef, func(c *Counter) {
//	    c.Count = 3
//	})
//	if !result.HTMLContains("3") {
//	    t.Fatal("missing count")
//	}
func TestRender[T Instance](factory Factory, d *Definition[T], setup ...func(T)) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), factory, d, setup...)
}

// TestRenderWithContext is TestRender with a caller-supplied context.
func TestRenderWithContext[T Instance](ctx context.Context, factory Factory, d *Definition[T], setup ...func(T)) (*TestResult, error) {
	c, err := NewContainer(factory)
	if err != nil {
		return nil, err
	}
	defer decorator.DestroyContainer(c)

	ctx = WithRoot(ctx, NewRoot(c, ServerMode))
	inst, err := Mount(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, fn := range setup {
		fn(inst)
	}

	var buf bytes.Buffer
	if err := RenderComponent(inst).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:       buf.String(),
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
	}, nil
}

// TestRoundTrip runs the full state round trip for d: it mounts an instance
// on the server with opts, applies mutate, captures the page state with Prepare,
// passes it through JSON, then builds a client container, restores it and
// remounts the instance under the same uid. The client instance is
// returned together with the snapshot.
func TestRoundTrip[T Instance](factory Factory, d *Definition[T], mutate func(T), opts ...MountOption) (T, state.Snapshot, error) {
	var zero T
	ctx := context.Background()

	server, err := NewContainer(factory)
	if err != nil {
		return zero, nil, err
	}
	defer decorator.DestroyContainer(server)

	serverRoot := NewRoot(server, ServerMode)
	serverCtx := WithRoot(ctx, serverRoot)
	inst, err := Mount(serverCtx, d, opts...)
	if err != nil {
		return zero, nil, err
	}
	if mutate != nil {
		mutate(inst)
	}
	snap, err := Prepare(serverCtx, server)
	if err != nil {
		return zero, nil, err
	}
	snap = serverRoot.withProps(snap)

	raw, err := json.Marshal(Payload{IOCState: snap})
	if err != nil {
		return zero, nil, err
	}
	var payload struct {
		IOCState json.RawMessage `json:"iocState"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return zero, nil, err
	}

	client, err := NewContainer(factory, WithStateSource(state.JSONSource(payload.IOCState)))
	if err != nil {
		return zero, nil, err
	}
	defer decorator.DestroyContainer(client)

	clientCtx := WithRoot(ctx, NewRoot(client, ClientMode))
	if err := Restore(clientCtx, client); err != nil {
		return zero, nil, err
	}
	restored, err := Mount(clientCtx, d, WithUID(inst.UID()))
	if err != nil {
		return zero, nil, err
	}
	return restored, snap, nil
}

// TestRefresh sends a refresh request for inst through reg, the way the
// browser would after a page render. An empty action re-renders only.
func TestRefresh(reg *Registry, inst Instance, action string) (*TestResult, error) {
	cmp := inst.base()
	token, err := StateToken(inst)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set(ParamUID, cmp.uid)
	if token != "" {
		form.Set(ParamState, token)
	}

	path := reg.Prefix() + cmp.name
	var req *http.Request
	if action == "" {
		req = httptest.NewRequest(http.MethodGet, path+"?"+form.Encode(), nil)
	} else {
		form.Set(ParamAction, action)
		req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	return &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}, nil
}

// TestContext returns a context carrying a server-mode root over a fresh
// container built by factory, for tests that mount components by hand.
func TestContext(factory Factory) (context.Context, *container.Container, error) {
	c, err := NewContainer(factory)
	if err != nil {
		return nil, nil, err
	}
	return WithRoot(context.Background(), NewRoot(c, ServerMode)), c, nil
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

var uidAttr = regexp.MustCompile(`\buid="([^"]*)"`)

// UIDs returns the uid attributes of every component wrapper in the HTML,
// in document order.
func (r *TestResult) UIDs() []string {
	var uids []string
	for _, m := range uidAttr.FindAllStringSubmatch(r.HTML, -1) {
		uids = append(uids, m[1])
	}
	return uids
}
