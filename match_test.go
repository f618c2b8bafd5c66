package detour

import (
	"reflect"
	"strings"
	"testing"
)

type matchCase struct {
	name     string
	actual   reflect.Value
	expected reflect.Value
	equal    bool
}

func TestBasicTypes(t *testing.T) {
	cases := []matchCase{
		{"equal bool", reflect.ValueOf(true), reflect.ValueOf(true), true},
		{"non-equal bool", reflect.ValueOf(true), reflect.ValueOf(false), false},
		{"equal int", reflect.ValueOf(int(1)), reflect.ValueOf(int(1)), true},
		{"non-equal int", reflect.ValueOf(int(1)), reflect.ValueOf(int(2)), false},
		{"equal int8", reflect.ValueOf(int8(1)), reflect.ValueOf(int8(1)), true},
		{"non-equal int16", reflect.ValueOf(int16(1)), reflect.ValueOf(int16(2)), false},
		// rune is an alias for int32 so no need to test it separately
		{"equal int32", reflect.ValueOf(int32(1)), reflect.ValueOf(int32(1)), true},
		{"non-equal int64", reflect.ValueOf(int64(1)), reflect.ValueOf(int64(2)), false},
		{"equal uint", reflect.ValueOf(uint(1)), reflect.ValueOf(uint(1)), true},
		{"non-equal uint8", reflect.ValueOf(uint8(1)), reflect.ValueOf(uint8(2)), false},
		{"equal uint16", reflect.ValueOf(uint16(1)), reflect.ValueOf(uint16(1)), true},
		{"non-equal uint32", reflect.ValueOf(uint32(1)), reflect.ValueOf(uint32(2)), false},
		{"equal uint64", reflect.ValueOf(uint64(1)), reflect.ValueOf(uint64(1)), true},
		{"equal uintptr", reflect.ValueOf(uintptr(1)), reflect.ValueOf(uintptr(1)), true},
		{"equal float32", reflect.ValueOf(float32(1.5)), reflect.ValueOf(float32(1.5)), true},
		{"non-equal float32", reflect.ValueOf(float32(1.5)), reflect.ValueOf(float32(2.5)), false},
		{"equal float64", reflect.ValueOf(float64(1.5)), reflect.ValueOf(float64(1.5)), true},
		{"non-equal float64", reflect.ValueOf(float64(1.5)), reflect.ValueOf(float64(2.5)), false},
		{"equal complex64", reflect.ValueOf(complex64(1 + 2i)), reflect.ValueOf(complex64(1 + 2i)), true},
		{"non-equal complex64", reflect.ValueOf(complex64(1 + 2i)), reflect.ValueOf(complex64(1 + 4i)), false},
		{"equal complex128", reflect.ValueOf(complex(1, 2)), reflect.ValueOf(complex(1, 2)), true},
		{"non-equal complex128", reflect.ValueOf(complex(1, 2)), reflect.ValueOf(complex(1, 4)), false},
		{"equal string", reflect.ValueOf("foo"), reflect.ValueOf("foo"), true},
		{"non-equal string", reflect.ValueOf("foo"), reflect.ValueOf("bar"), false},
		{"different types", reflect.ValueOf(1), reflect.ValueOf("bar"), false},
		{"different int widths", reflect.ValueOf(int32(1)), reflect.ValueOf(int64(1)), false},
	}

	for _, c := range cases {
		res, _ := equal(c.actual, c.expected)
		if res != c.equal {
			t.Errorf("Case '%s' result mismatched", c.name)
		}
	}
}

func TestCompositeTypes(t *testing.T) {
	chan1 := make(chan int)
	chan2 := make(chan int)
	ptr1 := new(int)
	ptr2 := new(int)
	ptr3 := new(int)
	*ptr1 = 1
	*ptr2 = 1
	*ptr3 = 3
	arr1 := [...]int{1, 2}
	arr2 := [...]int{1, 2}
	arr3 := [...]int{1, 2, 3}
	arr4 := [...]int{1, 3}
	str1 := struct {
		a int
		b string
	}{5, "foo"}
	str2 := struct {
		a int
		b string
	}{5, "foo"}
	str3 := struct {
		a int
		b string
	}{5, "bar"}
	str4 := struct {
		a int
		b string
		c bool
	}{5, "foo", true}
	map1 := map[int]string{1: "foo", 2: "bar"}
	map2 := map[int]string{1: "foo", 2: "bar"}
	map3 := map[int]string{1: "foo", 3: "bar"}
	map4 := map[int]string{1: "foo", 2: "baz"}
	map5 := map[int]string{1: "foo", 2: "bar", 3: "baz"}
	map6 := map[int]int{1: 42}
	sl1 := []int{1, 2}
	sl2 := []int{1, 2}
	sl3 := []int{1, 2, 3}
	sl4 := []int{2, 1}
	sl5 := []float32{1, 2}
	cases := []matchCase{
		// channel can only match to itself
		{"same channel", reflect.ValueOf(chan1), reflect.ValueOf(chan1), true},
		{"different channel", reflect.ValueOf(chan1), reflect.ValueOf(chan2), false},
		{"same pointer", reflect.ValueOf(ptr1), reflect.ValueOf(ptr1), true},
		{"pointer with the same value", reflect.ValueOf(ptr1), reflect.ValueOf(ptr2), true},
		{"pointer with the different value", reflect.ValueOf(ptr1), reflect.ValueOf(ptr3), false},
		{"same array", reflect.ValueOf(arr1), reflect.ValueOf(arr1), true},
		{"matching array", reflect.ValueOf(arr1), reflect.ValueOf(arr2), true},
		{"array of diff length", reflect.ValueOf(arr1), reflect.ValueOf(arr3), false},
		{"non-matching array", reflect.ValueOf(arr1), reflect.ValueOf(arr4), false},
		{"same struct", reflect.ValueOf(str1), reflect.ValueOf(str1), true},
		{"matching struct", reflect.ValueOf(str1), reflect.ValueOf(str2), true},
		{"struct of diff type", reflect.ValueOf(str1), reflect.ValueOf(str4), false},
		{"struct with different fields", reflect.ValueOf(str1), reflect.ValueOf(str3), false},
		{"same map", reflect.ValueOf(map1), reflect.ValueOf(map1), true},
		{"matching map", reflect.ValueOf(map1), reflect.ValueOf(map2), true},
		{"map with different keys", reflect.ValueOf(map1), reflect.ValueOf(map3), false},
		{"map with different values", reflect.ValueOf(map1), reflect.ValueOf(map4), false},
		{"map with extra keys", reflect.ValueOf(map1), reflect.ValueOf(map5), false},
		{"map of different type", reflect.ValueOf(map1), reflect.ValueOf(map6), false},
		// functions can only match to themselves
		{"func", reflect.ValueOf(func() {}), reflect.ValueOf(func() {}), false},
		{"same slice", reflect.ValueOf(sl1), reflect.ValueOf(sl1), true},
		{"matching slice", reflect.ValueOf(sl1), reflect.ValueOf(sl2), true},
		{"longer slice", reflect.ValueOf(sl1), reflect.ValueOf(sl3), false},
		{"slice with different order of elements", reflect.ValueOf(sl1), reflect.ValueOf(sl4), false},
		{"slice of different base type", reflect.ValueOf(sl1), reflect.ValueOf(sl5), false},
	}

	for _, c := range cases {
		res, _ := equal(c.actual, c.expected)
		if res != c.equal {
			t.Errorf("Case '%s' result mismatched", c.name)
		}
	}
}

func TestMismatchMessages(t *testing.T) {
	cases := []struct {
		name     string
		actual   reflect.Value
		expected reflect.Value
		message  string
	}{
		{
			"type mismatch",
			reflect.ValueOf(1), reflect.ValueOf("bar"),
			"actual type 'int' differs from expected 'string'",
		},
		{
			"struct field",
			reflect.ValueOf(struct{ A int }{1}), reflect.ValueOf(struct{ A int }{2}),
			"struct field 'A'",
		},
		{
			"slice elem",
			reflect.ValueOf([]int{1, 2}), reflect.ValueOf([]int{1, 3}),
			"slice elem 1",
		},
		{
			"slice length",
			reflect.ValueOf([]int{1}), reflect.ValueOf([]int{1, 2}),
			"slice lengths differ",
		},
		{
			"array elem",
			reflect.ValueOf([2]int{1, 2}), reflect.ValueOf([2]int{1, 3}),
			"array elem 1",
		},
		{
			"map value",
			reflect.ValueOf(map[int]string{1: "foo"}), reflect.ValueOf(map[int]string{1: "bar"}),
			"map value for key '1'",
		},
	}

	for _, c := range cases {
		res, msg := equal(c.actual, c.expected)
		if res {
			t.Errorf("Case '%s' unexpectedly matched", c.name)
			continue
		}
		if !strings.Contains(msg, c.message) {
			t.Errorf("Case '%s' message %q lacks %q", c.name, msg, c.message)
		}
	}
}

func TestArgsMatch(t *testing.T) {
	nilErr := reflect.Zero(reflect.TypeOf((*error)(nil)).Elem())
	somePtr := reflect.ValueOf(new(int))

	res, _ := argsMatch(
		[]reflect.Value{reflect.ValueOf(1), reflect.ValueOf("x")},
		[]reflect.Value{reflect.ValueOf(1), reflect.ValueOf("x")})
	if !res {
		t.Errorf("Equal args mismatched")
	}

	res, msg := argsMatch(
		[]reflect.Value{reflect.ValueOf(1)},
		[]reflect.Value{reflect.ValueOf(1), reflect.ValueOf(2)})
	if res || !strings.Contains(msg, "argument count 1 differs from expected 2") {
		t.Errorf("Unexpected count result %v %q", res, msg)
	}

	// an invalid expected value is the nil placeholder
	res, _ = argsMatch([]reflect.Value{nilErr}, []reflect.Value{{}})
	if !res {
		t.Errorf("Nil error did not match nil placeholder")
	}

	res, msg = argsMatch([]reflect.Value{somePtr}, []reflect.Value{{}})
	if res || !strings.Contains(msg, "while nil is expected") {
		t.Errorf("Unexpected placeholder result %v %q", res, msg)
	}

	res, msg = argsMatch([]reflect.Value{reflect.ValueOf(5)}, []reflect.Value{{}})
	if res || !strings.Contains(msg, "argument 0 is '5' while nil is expected") {
		t.Errorf("Unexpected non-nilable result %v %q", res, msg)
	}

	// argument numbering is zero-based
	res, msg = argsMatch(
		[]reflect.Value{reflect.ValueOf("a"), reflect.ValueOf(2)},
		[]reflect.Value{reflect.ValueOf("a"), reflect.ValueOf(3)})
	if res || !strings.HasPrefix(msg, "argument 1: ") {
		t.Errorf("Unexpected mismatch result %v %q", res, msg)
	}
}

func TestNilable(t *testing.T) {
	if nilable(reflect.ValueOf(5)) {
		t.Errorf("int reported nil-able")
	}
	if !nilable(reflect.ValueOf(new(int))) {
		t.Errorf("pointer not reported nil-able")
	}
	if !nilable(reflect.ValueOf([]int{})) {
		t.Errorf("slice not reported nil-able")
	}
}
