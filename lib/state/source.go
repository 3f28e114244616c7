package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pthm/hxioc/lib/encoding"
)

// ErrNoState means the source holds no snapshot at all.
var ErrNoState = errors.New("state: no serialized state")

// Source yields the snapshot a client-side container restores from.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

func (f SourceFunc) Load(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// StaticSource always yields snap.
func StaticSource(snap Snapshot) Source {
	return SourceFunc(func(context.Context) (Snapshot, error) {
		return snap, nil
	})
}

// JSONSource parses raw as a JSON snapshot.
func JSONSource(raw []byte) Source {
	return SourceFunc(func(context.Context) (Snapshot, error) {
		if len(raw) == 0 {
			return nil, ErrNoState
		}
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("state: parse snapshot: %w", err)
		}
		return snap, nil
	})
}

// TokenSource decodes a snapshot token produced by EncodeToken.
func TokenSource(codec *encoding.Codec, mode encoding.Mode, token string) Source {
	return SourceFunc(func(context.Context) (Snapshot, error) {
		if token == "" {
			return nil, ErrNoState
		}
		var snap Snapshot
		if err := codec.Decode(token, mode, &snap); err != nil {
			return nil, err
		}
		return snap, nil
	})
}

// EncodeToken turns snap into a token TokenSource can read.
func EncodeToken(codec *encoding.Codec, mode encoding.Mode, snap Snapshot) (string, error) {
	return codec.Encode(snap, mode)
}
