package decorator

import (
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/pthm/hxioc/lib/container"
)

type bucketKey struct{}

// bucket records the live behaviors of one container, per decorated value.
type bucket struct {
	mu        sync.Mutex
	instances map[any][]Behavior
	order     []any
}

func bucketOf(c *container.Container) *bucket {
	return c.LoadOrStore(bucketKey{}, func() any {
		return &bucket{instances: make(map[any][]Behavior)}
	}).(*bucket)
}

func existingBucket(c *container.Container) (*bucket, bool) {
	v, ok := c.Load(bucketKey{})
	if !ok {
		return nil, false
	}
	return v.(*bucket), true
}

// Initialize builds a behavior for every decoration declared on target's
// type, binds it and calls Created in declaration order. If one Created
// fails, the behaviors already created in this call are destroyed in
// reverse order and nothing is recorded.
//
// target must be a pointer when its type has declarations.
func Initialize(target any, c *container.Container) error {
	if target == nil {
		return nil
	}
	typ := reflect.TypeOf(target)
	entries := Entries(typ)
	if len(entries) == 0 {
		return nil
	}
	if typ.Kind() != reflect.Pointer || reflect.ValueOf(target).IsNil() {
		return &InitError{Type: typ, Err: ErrNotPointer}
	}

	created := make([]Behavior, 0, len(entries))
	for _, e := range entries {
		b, err := e.decoration.build(c)
		if err == nil {
			b.bind(Binding{
				Options:      e.Options,
				Instance:     target,
				Prototype:    e.Prototype,
				PropertyName: e.Member,
				Descriptor:   describe(target, e.Member),
			})
			err = b.Created()
		}
		if err != nil {
			return &InitError{
				Type:     typ,
				Member:   e.Member,
				Behavior: e.decoration.name,
				Err:      err,
				Rollback: rollback(created),
			}
		}
		created = append(created, b)
	}

	bk := bucketOf(c)
	bk.mu.Lock()
	defer bk.mu.Unlock()
	if _, ok := bk.instances[target]; !ok {
		bk.order = append(bk.order, target)
	}
	bk.instances[target] = append(bk.instances[target], created...)
	return nil
}

func rollback(created []Behavior) error {
	var errs []error
	for _, b := range slices.Backward(created) {
		if err := b.Destroyed(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func describe(target any, member string) Descriptor {
	v := reflect.ValueOf(target)
	if m := v.MethodByName(member); m.IsValid() {
		return Descriptor{Method: m}
	}
	return Descriptor{Field: v.Elem().FieldByName(member)}
}

// InitializeContainer initializes every service of c, in registration order.
func InitializeContainer(c *container.Container) error {
	services, err := c.GetAllServices()
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := Initialize(svc, c); err != nil {
			return err
		}
	}
	return nil
}

// Destroy calls Destroyed on target's behaviors in creation order. The
// first error stops the remaining calls. The record is dropped either way,
// so a second Destroy is a no-op.
func Destroy(target any, c *container.Container) error {
	bk, ok := existingBucket(c)
	if !ok {
		return nil
	}

	bk.mu.Lock()
	behaviors, ok := bk.instances[target]
	if ok {
		delete(bk.instances, target)
		bk.order = slices.DeleteFunc(bk.order, func(v any) bool { return v == target })
	}
	bk.mu.Unlock()

	return destroyAll(target, behaviors)
}

func destroyAll(target any, behaviors []Behavior) error {
	for _, b := range behaviors {
		if err := b.Destroyed(); err != nil {
			return &DestroyError{Type: reflect.TypeOf(target), Err: err}
		}
	}
	return nil
}

// DestroyContainer destroys every value initialized against c, including
// values that are not container services, then forgets c's records.
func DestroyContainer(c *container.Container) error {
	bk, ok := existingBucket(c)
	if !ok {
		return nil
	}
	c.Delete(bucketKey{})

	bk.mu.Lock()
	order := bk.order
	instances := bk.instances
	bk.order = nil
	bk.instances = make(map[any][]Behavior)
	bk.mu.Unlock()

	var errs []error
	for _, target := range order {
		if err := destroyAll(target, instances[target]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Instances returns the live behaviors of target in c.
func Instances(target any, c *container.Container) []Behavior {
	bk, ok := existingBucket(c)
	if !ok {
		return nil
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()
	return slices.Clone(bk.instances[target])
}
