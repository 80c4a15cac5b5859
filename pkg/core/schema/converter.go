package schema

import (
	"fmt"
	"reflect"
	"sync"
)

// ConvertFunc turns a field value into something the backend can write.
type ConvertFunc func(v any) (any, error)

// Converters maps value types to conversion functions.
// It is consulted for every staged value before the dialect builds the parameter.
type Converters struct {
	byType sync.Map // reflect.Type -> ConvertFunc
}

// NewConverters creates an empty registry.
func NewConverters() *Converters {
	return &Converters{}
}

// RegisterConverter installs fn for values of type V, replacing any previous one.
func RegisterConverter[V any](c *Converters, fn func(V) (any, error)) {
	c.byType.Store(reflect.TypeFor[V](), ConvertFunc(func(v any) (any, error) {
		typed, ok := v.(V)
		if !ok {
			return nil, fmt.Errorf("converter for %s received %T", reflect.TypeFor[V](), v)
		}
		return fn(typed)
	}))
}

// Unregister removes the converter for values of type t.
func (c *Converters) Unregister(t reflect.Type) {
	c.byType.Delete(t)
}

// Convert applies the converter registered for v's dynamic type.
// Values without a converter are returned unchanged.
func (c *Converters) Convert(v any) (any, error) {
	if c == nil || v == nil {
		return v, nil
	}
	fn, ok := c.byType.Load(reflect.TypeOf(v))
	if !ok {
		return v, nil
	}
	out, err := fn.(ConvertFunc)(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %T: %w", v, err)
	}
	return out, nil
}
