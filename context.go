package hxioc

import (
	"context"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/logger"
	"github.com/pthm/hxioc/lib/state"
)

// Mode tells which side of the render round trip a root belongs to.
type Mode int

const (
	// ServerMode renders pages and captures state.
	ServerMode Mode = iota
	// ClientMode restores state handed back by the browser.
	ClientMode
)

func (m Mode) String() string {
	if m == ClientMode {
		return "client"
	}
	return "server"
}

// Component uids start at these offsets so that components created while
// serving a refresh never reuse a uid handed out by the page render.
const (
	serverUIDStart = 0
	clientUIDStart = 0xf000000
)

// Root is the per-request root object. Components resolve through its
// container and take their uids from it.
type Root struct {
	Container *container.Container
	Mode      Mode
	RequestID string
	Logger    *slog.Logger
	// Codec encodes state tokens for refresh requests. Prefix is the path
	// the component registry is mounted at.
	Codec  *encoding.Codec
	Prefix string

	lastUID atomic.Uint64
	// deferTokens is set while Page renders its body. Tokens are then
	// written as placeholders and filled in once state is captured.
	deferTokens atomic.Bool

	propsMu sync.Mutex
	props   map[string]any
}

// RootOption configures a Root.
type RootOption func(*Root)

// WithRequestID tags the root with a request id.
func WithRequestID(id string) RootOption {
	return func(r *Root) {
		r.RequestID = id
	}
}

// WithRootLogger sets the logger components log through.
func WithRootLogger(l *slog.Logger) RootOption {
	return func(r *Root) {
		if l != nil {
			r.Logger = l
		}
	}
}

// WithCodec sets the codec used for state tokens.
func WithCodec(codec *encoding.Codec) RootOption {
	return func(r *Root) {
		r.Codec = codec
	}
}

// WithPrefix sets the path components are refreshed under.
func WithPrefix(prefix string) RootOption {
	return func(r *Root) {
		r.Prefix = prefix
	}
}

// NewRoot creates a root for c.
func NewRoot(c *container.Container, mode Mode, opts ...RootOption) *Root {
	r := &Root{
		Container: c,
		Mode:      mode,
		Logger:    logger.Discard(),
		Prefix:    DefaultPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if mode == ClientMode {
		r.lastUID.Store(clientUIDStart)
	} else {
		r.lastUID.Store(serverUIDStart)
	}
	if r.RequestID != "" {
		r.Logger = r.Logger.With(logger.RequestID(r.RequestID))
	}
	return r
}

// IsServer reports whether the root renders pages.
func (r *Root) IsServer() bool { return r.Mode == ServerMode }

// IsClient reports whether the root restores state.
func (r *Root) IsClient() bool { return r.Mode == ClientMode }

// NextUID returns a fresh component uid.
func (r *Root) NextUID() string {
	return strconv.FormatUint(r.lastUID.Add(1), 10)
}

func (r *Root) recordProps(uid string, props any) {
	r.propsMu.Lock()
	defer r.propsMu.Unlock()
	if r.props == nil {
		r.props = make(map[string]any)
	}
	r.props[uid] = props
}

func (r *Root) forgetProps(uid string) {
	r.propsMu.Lock()
	defer r.propsMu.Unlock()
	delete(r.props, uid)
}

// withProps adds the props of the mounted components to snap under PropsKey.
func (r *Root) withProps(snap state.Snapshot) state.Snapshot {
	r.propsMu.Lock()
	defer r.propsMu.Unlock()
	if len(r.props) == 0 {
		return snap
	}
	if snap == nil {
		snap = state.Snapshot{}
	}
	snap[PropsKey] = maps.Clone(r.props)
	return snap
}

type rootKey struct{}

// WithRoot returns a context carrying root.
func WithRoot(ctx context.Context, root *Root) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

// RootFrom returns the root carried by ctx.
func RootFrom(ctx context.Context) (*Root, bool) {
	root, ok := ctx.Value(rootKey{}).(*Root)
	return root, ok && root != nil
}

// ContainerFrom returns the container of the root carried by ctx.
func ContainerFrom(ctx context.Context) (*container.Container, bool) {
	root, ok := RootFrom(ctx)
	if !ok {
		return nil, false
	}
	return root.Container, root.Container != nil
}

// MustRoot is like RootFrom but panics when ctx has no root.
func MustRoot(ctx context.Context) *Root {
	root, ok := RootFrom(ctx)
	if !ok {
		panic(ErrNoRoot)
	}
	return root
}
