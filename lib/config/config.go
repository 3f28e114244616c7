// Package config loads typed configuration from the environment. Each struct
// type is parsed once and cached; a .env file in the working directory is
// read on first use.
//
//	var cfg config.App
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/pthm/hxioc/lib/logger"
)

// ErrNotPointer is returned when Load is given something other than a
// non-nil pointer to a struct.
var ErrNotPointer = errors.New("config: target must be a non-nil pointer to a struct")

var (
	dotenvOnce sync.Once
	cacheMu    sync.Mutex
	cache      = map[reflect.Type]any{}
)

// App is the configuration of an hxioc application.
type App struct {
	Env    string `env:"APP_ENV" envDefault:"development"`
	Log    logger.Config
	Addr   string `env:"HXIOC_ADDR" envDefault:":8080"`
	Secret string `env:"HXIOC_SECRET_KEY"`
	// SealSnapshots encrypts snapshot tokens instead of only signing them.
	SealSnapshots bool          `env:"HXIOC_SEAL_SNAPSHOTS" envDefault:"false"`
	WaitTimeout   time.Duration `env:"HXIOC_WAIT_TIMEOUT" envDefault:"10s"`
	ScriptID      string        `env:"HXIOC_SCRIPT_ID" envDefault:"__hxioc_state"`
}

// Production reports whether APP_ENV is "production".
func (a App) Production() bool {
	return a.Env == "production"
}

// Load fills cfg from the environment. Repeated loads of the same type copy
// the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNotPointer
	}
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return ErrNotPointer
	}

	dotenvOnce.Do(func() {
		// A missing .env file is normal outside development.
		_ = godotenv.Load()
	})

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	var loaded T
	if err := env.Parse(&loaded); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}
	cache[typ] = loaded
	*cfg = loaded
	return nil
}

// MustLoad is like Load but panics on error. Use it at startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops every cached configuration. Tests use it after changing the
// environment.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
