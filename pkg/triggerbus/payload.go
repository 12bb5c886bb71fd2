package triggerbus

import (
	"fmt"
	"reflect"
)

// Payload is the ordered tuple threaded through a dispatch.
// Its arity and element types are a contract between an event's
// publisher and its subscribers; the bus does not enforce them.
type Payload []any

// Len returns the number of elements.
func (p Payload) Len() int {
	return len(p)
}

// At returns element i, or nil when i is out of range.
func (p Payload) At(i int) any {
	if i < 0 || i >= len(p) {
		return nil
	}
	return p[i]
}

// Clone returns a shallow copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

// Arg returns element i of p as a T.
//
// A nil element converts to the zero value when T is nilable (pointer,
// map, slice, func, chan or interface). Anything else that is not a T,
// including a missing element, yields a *PayloadTypeError.
//
// Example:
//
//	qty, err := triggerbus.Arg[int](p, 1)
func Arg[T any](p Payload, i int) (T, error) {
	var zero T
	want := reflect.TypeFor[T]()

	if i < 0 || i >= len(p) {
		return zero, &PayloadTypeError{Index: i, Want: want.String(), Got: "missing"}
	}

	v := p[i]
	if v == nil {
		if nilable(want) {
			return zero, nil
		}
		return zero, &PayloadTypeError{Index: i, Want: want.String(), Got: "nil"}
	}

	t, ok := v.(T)
	if !ok {
		return zero, &PayloadTypeError{Index: i, Want: want.String(), Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return true
	}
	return false
}
