package domain

import "reflect"

// Same reports whether a and b are the same reference.
//
// Maps, pointers, channels and funcs are compared by address, slices by
// address and length. Other comparable values are compared with ==, and
// values that cannot be compared are never the same.
func Same(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	// Comparable structs and arrays may still hold uncomparable interface values.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
