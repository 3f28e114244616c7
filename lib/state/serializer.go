package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"sync"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/logger"
)

// Serializer captures and restores marked fields.
type Serializer struct {
	mu         sync.Mutex
	custom     []any
	source     Source
	cached     Snapshot
	loaded     bool
	production bool
	logger     *slog.Logger
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithSource sets where SerializedState reads the incoming snapshot from.
func WithSource(src Source) Option {
	return func(s *Serializer) {
		s.source = src
	}
}

// WithLogger configures structured logging for the serializer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Serializer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProduction turns off development diagnostics such as the snapshot
// size log line.
func WithProduction(production bool) Option {
	return func(s *Serializer) {
		s.production = production
	}
}

// NewSerializer creates a serializer.
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSource replaces the snapshot source and forgets any snapshot already
// read from the previous one.
func (s *Serializer) SetSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	s.cached = nil
	s.loaded = false
}

// AddCustomSerializable includes v in every later Serialize even though it
// is not a container service. Components use this.
func (s *Serializer) AddCustomSerializable(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, v)
}

// HasSerializableKey reports whether svc has a field marked with serviceKey.
func (s *Serializer) HasSerializableKey(svc any, serviceKey string) bool {
	if svc == nil {
		return false
	}
	for _, m := range Marks(reflect.TypeOf(svc)) {
		if m.ServiceKey == serviceKey {
			return true
		}
	}
	return false
}

// Serialize captures every service of c, in registration order, followed by
// the custom serializables. A collision aborts with no snapshot.
func (s *Serializer) Serialize(c *container.Container) (Snapshot, error) {
	services, err := c.GetAllServices()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	all := append(services, s.custom...)
	s.mu.Unlock()

	result := Snapshot{}
	seen := make(map[any]struct{}, len(all))
	for _, svc := range all {
		if isPointer(svc) {
			if _, dup := seen[svc]; dup {
				continue
			}
			seen[svc] = struct{}{}
		}
		if err := s.SerializeService(svc, result); err != nil {
			return nil, err
		}
	}

	if !s.production {
		s.logSize(result)
	}
	return result, nil
}

func (s *Serializer) logSize(snap Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("snapshot is not JSON encodable", logger.Error(err))
		return
	}
	s.logger.Debug("serialized initial state", logger.Size(len(raw)), logger.Count(len(snap)))
}

// SerializeService writes the marked fields of svc into into.
func (s *Serializer) SerializeService(svc any, into Snapshot) error {
	v := reflect.ValueOf(svc)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	for _, m := range Marks(v.Type()) {
		key := KeyFor(svc, m.ServiceKey)
		props, ok := into[key]
		if !ok {
			props = map[string]any{}
			into[key] = props
		}
		if _, taken := props[m.Property]; taken {
			return &CollisionError{Key: key, Property: m.Property}
		}
		props[m.Property] = v.FieldByIndex(m.index).Interface()
	}
	return nil
}

// Unserialize restores snap into every service of c.
func (s *Serializer) Unserialize(c *container.Container, snap Snapshot) error {
	services, err := c.GetAllServices()
	if err != nil {
		return err
	}
	var errs []error
	for _, svc := range services {
		if len(Marks(reflect.TypeOf(svc))) == 0 {
			continue
		}
		if err := s.UnserializeService(svc, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnserializeService restores the marked fields of svc from snap. Keys and
// properties missing from snap leave the field untouched.
func (s *Serializer) UnserializeService(svc any, snap Snapshot) error {
	marks := Marks(reflect.TypeOf(svc))
	if len(marks) == 0 || len(snap) == 0 {
		return nil
	}
	v := reflect.ValueOf(svc)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrNotPointer
	}
	v = v.Elem()

	for _, m := range marks {
		key := KeyFor(svc, m.ServiceKey)
		props, ok := snap[key]
		if !ok {
			continue
		}
		raw, ok := props[m.Property]
		if !ok {
			continue
		}
		field := v.FieldByIndex(m.index)
		if err := assign(field, raw); err != nil {
			return &ConvertError{Key: key, Property: m.Property, Type: field.Type(), Err: err}
		}
	}
	return nil
}

// SerializedState returns the snapshot of the configured source, reading it
// once. A missing or broken snapshot is logged and remembered as empty.
func (s *Serializer) SerializedState(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cached
	}
	s.loaded = true
	s.cached = Snapshot{}

	if s.source == nil {
		return s.cached
	}
	snap, err := s.source.Load(ctx)
	switch {
	case errors.Is(err, ErrNoState):
		s.logger.DebugContext(ctx, "no serialized state")
	case err != nil:
		s.logger.ErrorContext(ctx, "cannot read serialized state", logger.Error(err))
	case snap != nil:
		s.cached = snap
	}
	return s.cached
}

// Assign stores raw, a value as found in a decoded snapshot, into the value
// dst points to.
func Assign(dst, raw any) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrNotPointer
	}
	return assign(v.Elem(), raw)
}

// assign stores raw into field. Values that are not directly assignable,
// such as decoded maps and numbers, go through JSON.
func assign(field reflect.Value, raw any) error {
	if raw == nil {
		field.SetZero()
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	target := reflect.New(field.Type())
	if err := json.Unmarshal(b, target.Interface()); err != nil {
		return err
	}
	field.Set(target.Elem())
	return nil
}

func isPointer(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Pointer
}
