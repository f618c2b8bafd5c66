package detour

import (
	"fmt"
	"reflect"
)

// argsMatch compares the live arguments of an intercepted call against the
// values a behavior expects. An invalid expected value is the nil
// placeholder and matches any nil-able argument that is nil. On the first
// mismatch it reports which argument differed and how; argument numbering
// is zero-based.
func argsMatch(actual, expected []reflect.Value) (bool, string) {
	if len(actual) != len(expected) {
		return false, fmt.Sprintf("argument count %d differs from expected %d", len(actual), len(expected))
	}
	for i, exp := range expected {
		act := actual[i]
		if !exp.IsValid() {
			if !nilable(act) || !act.IsNil() {
				return false, fmt.Sprintf("argument %d is '%v' while nil is expected", i, act)
			}
			continue
		}
		res, msg := equal(act, exp)
		if !res {
			if msg == "" {
				msg = fmt.Sprintf("actual value '%v' differs from expected '%v'", act, exp)
			}
			return false, fmt.Sprintf("argument %d: %s", i, msg)
		}
	}
	return true, ""
}

// equal compares two values and explains the first difference it finds.
// reflect.Value.Equal is not enough here: it compares pointers as bare
// addresses, refuses maps and slices, reports nothing useful and panics,
// so this follows reflect's shape but walks composites itself.
// Functions and channels can only be equal to themselves; pointers are
// followed; floats compare by value.
func equal(a, e reflect.Value) (bool, string) {
	if a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	if e.Kind() == reflect.Interface {
		e = e.Elem()
	}

	if !a.IsValid() || !e.IsValid() {
		return a.IsValid() == e.IsValid(), "cannot compare invalid value with valid one"
	}

	if a.Kind() != e.Kind() || a.Type() != e.Type() {
		return false, fmt.Sprintf("actual type '%s' differs from expected '%s'", a.Type(), e.Type())
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == e.Bool(), ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == e.Int(), ""
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == e.Uint(), ""
	case reflect.Float32, reflect.Float64:
		return a.Float() == e.Float(), ""
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == e.Complex(), ""
	case reflect.String:
		return a.String() == e.String(), ""
	case reflect.Chan, reflect.Func:
		return a.Pointer() == e.Pointer(), ""
	case reflect.Pointer, reflect.UnsafePointer:
		if a.Pointer() == e.Pointer() {
			return true, ""
		}
		res, msg := equal(reflect.Indirect(a), reflect.Indirect(e))
		if !res && msg == "" {
			msg = fmt.Sprintf("actual value '%v' differs from expected '%v'",
				reflect.Indirect(a), reflect.Indirect(e))
		}
		return res, msg
	case reflect.Array:
		return equalSeq(a, e, "array elem")
	case reflect.Slice:
		if a.Pointer() == e.Pointer() && a.Len() == e.Len() {
			return true, ""
		}
		if a.Len() != e.Len() {
			return false, "slice lengths differ"
		}
		return equalSeq(a, e, "slice elem")
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			res, msg := equal(a.Field(i), e.Field(i))
			if !res {
				if msg == "" {
					msg = fmt.Sprintf("actual value '%v' differs from expected '%v'",
						a.Field(i), e.Field(i))
				}
				return false, fmt.Sprintf("struct field '%s': %s", a.Type().Field(i).Name, msg)
			}
		}
		return true, ""
	case reflect.Map:
		if a.Pointer() == e.Pointer() {
			return true, ""
		}
		keys := a.MapKeys()
		if len(keys) != len(e.MapKeys()) {
			return false, "map lengths differ"
		}
		for _, k := range keys {
			res, msg := equal(a.MapIndex(k), e.MapIndex(k))
			if !res {
				if msg == "" {
					msg = fmt.Sprintf("actual value '%v' differs from expected '%v'",
						a.MapIndex(k), e.MapIndex(k))
				}
				return false, fmt.Sprintf("map value for key '%v': %s", k, msg)
			}
		}
		return true, ""
	}
	return false, "invalid variable Kind" // should never happen
}

// equalSeq compares arrays and equal-length slices element by element.
func equalSeq(a, e reflect.Value, what string) (bool, string) {
	for i := 0; i < a.Len(); i++ {
		res, msg := equal(a.Index(i), e.Index(i))
		if !res {
			if msg == "" {
				msg = fmt.Sprintf("actual value '%v' differs from expected '%v'",
					a.Index(i), e.Index(i))
			}
			return false, fmt.Sprintf("%s %d: %s", what, i, msg)
		}
	}
	return true, ""
}

func nilable(val reflect.Value) bool {
	switch val.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer,
		reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return true
	default:
		return false
	}
}
