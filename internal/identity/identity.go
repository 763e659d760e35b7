// Package identity derives stable identity keys for arbitrary values so they
// can be tracked in side tables without writing to the values themselves.
package identity

import "reflect"

// Key identifies a reference-typed value. Two values have equal keys exactly
// when they refer to the same object.
type Key struct {
	typ reflect.Type
	ptr uintptr
}

// Of returns the identity key for v. Only pointers, maps, funcs, chans and
// unsafe pointers carry identity; everything else reports false.
func Of(v any) (Key, bool) {
	if v == nil {
		return Key{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return Key{}, false
		}
		return Key{typ: rv.Type(), ptr: rv.Pointer()}, true
	}
	return Key{}, false
}

// Eligible reports whether v carries an identity.
func Eligible(v any) bool {
	_, ok := Of(v)
	return ok
}

// Same reports whether a and b are the same value. Reference kinds compare by
// identity, comparable values with ==, and anything else is never the same.
func Same(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ka, okA := Of(a)
	kb, okB := Of(b)
	if okA || okB {
		return okA && okB && ka == kb
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	// Structs holding interfaces can still panic on ==.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
