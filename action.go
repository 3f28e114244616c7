package hxioc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

// Request parameters of a refresh.
const (
	ParamUID    = "uid"
	ParamState  = "p"
	ParamAction = "action"
)

// targetSelector matches the wrapper element RenderComponent emits.
const targetSelector = "closest [data-hxioc]"

// RefreshAttrs builds the HTMX attributes that re-render a component: a GET
// to path carrying the uid and the state token in the query string.
//
// Attributes other than target and swap are left to the template.
func RefreshAttrs(path, uid, token string, swap SwapMode) templ.Attributes {
	q := url.Values{}
	q.Set(ParamUID, uid)
	if token != "" {
		q.Set(ParamState, token)
	}
	return templ.Attributes{
		"hx-get":    path + "?" + q.Encode(),
		"hx-target": targetSelector,
		"hx-swap":   swap.value(),
	}
}

// ActionAttrs builds the HTMX attributes that run action on a component and
// re-render it. The uid, token and action travel in hx-vals.
func ActionAttrs(path, action, uid, token string, swap SwapMode) templ.Attributes {
	vals := map[string]string{ParamUID: uid, ParamAction: action}
	if token != "" {
		vals[ParamState] = token
	}
	data, _ := json.Marshal(vals)
	return templ.Attributes{
		"hx-post":   path,
		"hx-vals":   string(data),
		"hx-target": targetSelector,
		"hx-swap":   swap.value(),
	}
}

// Refresh returns RefreshAttrs for inst with a token holding the current
// state of its container.
func Refresh(ctx context.Context, inst Instance, swap SwapMode) templ.Attributes {
	cmp := inst.base()
	return RefreshAttrs(componentPath(cmp), cmp.uid, stateToken(ctx, cmp), swap)
}

// Act returns ActionAttrs for inst with a token holding the current state
// of its container.
func Act(ctx context.Context, inst Instance, action string, swap SwapMode) templ.Attributes {
	cmp := inst.base()
	return ActionAttrs(componentPath(cmp), action, cmp.uid, stateToken(ctx, cmp), swap)
}

// Placeholders written for tokens while Page renders its body. They only
// use characters that pass unchanged through URLs, JSON and HTML attributes.
const (
	pendingSignedToken = "hxioc.pending.signed"
	pendingSealedToken = "hxioc.pending.sealed"
)

func pendingToken(mode encoding.Mode) string {
	if mode == encoding.Sealed {
		return pendingSealedToken
	}
	return pendingSignedToken
}

// StateToken captures the state of the container inst was mounted in,
// together with the props of its mounted components, and encodes it for a
// refresh request.
//
// Inside Page the token is a placeholder that Page replaces with the state
// captured after BeforeFrontRenderEvent.
func StateToken(inst Instance) (string, error) {
	cmp := inst.base()
	if cmp.root == nil {
		return "", ErrNoRoot
	}
	if cmp.root.Codec == nil {
		return "", nil
	}
	mode := encoding.Signed
	if cmp.sealed {
		mode = encoding.Sealed
	}
	if cmp.root.deferTokens.Load() {
		return pendingToken(mode), nil
	}
	serializer, err := container.Get[*state.Serializer](cmp.root.Container)
	if err != nil {
		return "", err
	}
	snap, err := serializer.Serialize(cmp.root.Container)
	if err != nil {
		return "", err
	}
	return state.EncodeToken(cmp.root.Codec, mode, cmp.root.withProps(snap))
}

// fillTokens replaces the token placeholders in out with snap encoded in
// the matching mode.
func fillTokens(out []byte, codec *encoding.Codec, snap state.Snapshot) ([]byte, error) {
	for _, mode := range []encoding.Mode{encoding.Signed, encoding.Sealed} {
		pending := []byte(pendingToken(mode))
		if !bytes.Contains(out, pending) {
			continue
		}
		token, err := state.EncodeToken(codec, mode, snap)
		if err != nil {
			return nil, err
		}
		out = bytes.ReplaceAll(out, pending, []byte(token))
	}
	return out, nil
}

// stateToken is StateToken for templates: failures are logged and the
// refresh goes out without state.
func stateToken(ctx context.Context, cmp *Component) string {
	token, err := StateToken(cmp)
	if err != nil && cmp.root != nil {
		cmp.root.Logger.WarnContext(ctx, "cannot encode component state",
			logger.Component(cmp.name), logger.UID(cmp.uid), logger.Error(err))
	}
	return token
}

func componentPath(cmp *Component) string {
	prefix := DefaultPrefix
	if cmp.root != nil && cmp.root.Prefix != "" {
		prefix = cmp.root.Prefix
	}
	return prefix + cmp.name
}
