// Command example serves a small todo app built on hxioc: a shared store,
// per-request services wired through the container, and components whose
// state survives HTMX refreshes.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pthm/hxioc"
	"github.com/pthm/hxioc/lib/config"
	"github.com/pthm/hxioc/lib/logger"
)

func main() {
	var cfg config.App
	config.MustLoad(&cfg)
	log := logger.New(cfg.Log)

	key := []byte(cfg.Secret)
	if len(key) == 0 {
		if cfg.Production() {
			log.Error("HXIOC_SECRET_KEY is required in production")
			os.Exit(1)
		}
		log.Warn("HXIOC_SECRET_KEY not set, using a random key")
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	store := NewStore("Buy groceries", "Review PR", "Write documentation")
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newApp(cfg, log, key, store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logger.Error(err))
	}
}

// newApp wires the registry and page routes onto a chi router.
func newApp(cfg config.App, log *slog.Logger, key []byte, store *Store) http.Handler {
	if cfg.SealSnapshots {
		todoListDef.Sealed()
		counterDef.Sealed()
	}

	reg := hxioc.NewRegistry(key, bindings(store),
		hxioc.WithRegistryLogger(log),
		hxioc.WithSystemOptions(
			hxioc.WithWaitTimeout(cfg.WaitTimeout),
			hxioc.WithProduction(cfg.Production()),
		),
	)
	reg.Add(todoListDef, counterDef)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(reg.Prefix()+"*", reg.Handler())
	r.Group(func(r chi.Router) {
		r.Use(reg.Middleware())
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if err := hxioc.Render(w, r, layout(hxioc.Page(indexBody(), cfg.ScriptID))); err != nil {
				log.ErrorContext(r.Context(), "render failed", logger.Error(err))
			}
		})
	})
	return r
}

func indexBody() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		list, err := hxioc.Mount(ctx, todoListDef)
		if err != nil {
			return err
		}
		counter, err := hxioc.Mount(ctx, counterDef)
		if err != nil {
			return err
		}
		if err := hxioc.RenderComponent(list).Render(ctx, w); err != nil {
			return err
		}
		return hxioc.RenderComponent(counter).Render(ctx, w)
	})
}
