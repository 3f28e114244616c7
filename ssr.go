package hxioc

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc/lib/state"
)

// DefaultScriptID is the id of the script element holding page state.
const DefaultScriptID = "__hxioc_state"

// Payload is the page-level state document.
type Payload struct {
	IOCState state.Snapshot `json:"iocState"`
}

// StateScript renders snap as a JSON script element with the given id.
func StateScript(id string, snap state.Snapshot) templ.Component {
	if id == "" {
		id = DefaultScriptID
	}
	if snap == nil {
		snap = state.Snapshot{}
	}
	return templ.JSONScript(id, Payload{IOCState: snap})
}

// Page renders body, then captures the request container's state with
// Prepare and appends it as a state script. body is rendered first so that
// ServerPrefetch hooks have run before state is captured.
//
// State tokens emitted while body renders are held back and filled in with
// the captured state, so a refresh restores exactly what the page script
// holds.
func Page(body templ.Component, scriptID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		root, ok := RootFrom(ctx)
		if !ok || root.Container == nil {
			return ErrNoRoot
		}

		var buf bytes.Buffer
		root.deferTokens.Store(true)
		err := body.Render(ctx, &buf)
		root.deferTokens.Store(false)
		if err != nil {
			return err
		}

		snap, err := Prepare(ctx, root.Container)
		if err != nil {
			return err
		}
		snap = root.withProps(snap)

		out := buf.Bytes()
		if root.Codec != nil {
			if out, err = fillTokens(out, root.Codec, snap); err != nil {
				return err
			}
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
		return StateScript(scriptID, snap).Render(ctx, w)
	})
}
