package hxioc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/logger"
)

// RequestIDHeader is read for an incoming request id and set on responses.
const RequestIDHeader = "X-Request-ID"

type middlewareConfig struct {
	codec  *encoding.Codec
	prefix string
	logger *slog.Logger
	system []SystemOption
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithMiddlewareCodec sets the codec components use for state tokens.
func WithMiddlewareCodec(codec *encoding.Codec) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.codec = codec
	}
}

// WithMiddlewarePrefix sets the path components are refreshed under.
func WithMiddlewarePrefix(prefix string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.prefix = prefix
	}
}

// WithMiddlewareLogger sets the request logger.
func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddlewareSystem passes options to the system services.
func WithMiddlewareSystem(opts ...SystemOption) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.system = append(c.system, opts...)
	}
}

// Middleware builds a server-mode container for every request, puts its
// root in the request context and tears the container's decorators down
// when the request ends, panics included.
func Middleware(factory Factory, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		prefix: DefaultPrefix,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	system := append([]SystemOption{WithLogger(cfg.logger)}, cfg.system...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)

			c, err := NewContainer(factory, system...)
			if err != nil {
				cfg.logger.ErrorContext(r.Context(), "cannot build request container",
					logger.RequestID(id), logger.Error(err))
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}

			root := NewRoot(c, ServerMode,
				WithRequestID(id),
				WithRootLogger(cfg.logger),
				WithCodec(cfg.codec),
				WithPrefix(cfg.prefix),
			)
			ctx := WithRoot(r.Context(), root)

			defer func() {
				if err := decorator.DestroyContainer(c); err != nil {
					root.Logger.ErrorContext(ctx, "container teardown failed", logger.Error(err))
				}
				root.Logger.DebugContext(ctx, "request container released", logger.Duration(time.Since(start)))
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestID returns the incoming request id or a new one.
func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}
