// This file is part of Detour project, available at https://github.com/detour-go/detour
// Copyright (c) 2025 the Detour authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at https://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package detour

import (
	"fmt"
	"reflect"
)

/*
Fake configures what one intercepted target does. It is created with
[WhenCalled] and mutated by chaining; every method returns the same Fake, so
a typical setup reads as one statement:

	detour.WhenCalled(inj, accBalance).
	    WhenArgs("1024").
	    Return(1000.0).
	    Times(1)

Each WhenCalled for the same target adds one more behavior to it; at call
time behaviors are tried in registration order and the first whose condition
accepts the live arguments runs. A Fake without When/WhenArgs accepts every
call, and a Fake without Return/Assign/ReplaceWith yields zero values for
all results.
*/
type Fake[T any] struct {
	rec *record
	b   *behavior
}

/*
WhenCalled resolves target and redirects its future calls to the behavior
this Fake describes. The first WhenCalled for a target patches it; later
ones for the same target append alternative behaviors without touching the
binary again.

The target may be an ordinary function, a method expression like
(*os.File).Read, or a generic instantiation like describe[string] - the
instantiation named is the one intercepted, other instantiations keep their
original behavior. A bound method value (x.M) intercepts only calls made
through method values, not direct x.M() calls.

WhenCalled panics with an error wrapping [ErrUnresolvable] when target is
not a function value, and with one wrapping [ErrCannotPatch] when the
function body cannot be patched (too small, or memory protection denied).
*/
func WhenCalled[T any](inj *Injector, target T) *Fake[T] {
	if inj == nil {
		panic("WhenCalled needs the Injector returned by New")
	}
	t := resolveTarget(target)
	rec := patches.register(inj, t)
	return &Fake[T]{rec: rec, b: patches.appendBehavior(rec)}
}

/*
When gates the behavior on a condition evaluated against the live
arguments. The condition must take exactly the target's parameters and
return bool; it sees the original argument values, including pointers,
so it must not mutate them.

	detour.WhenCalled(inj, describe).
	    When(func(a string, b bool, c int32) bool { return a == "abc" && b && c == 123 }).
	    Return("Fake value")
*/
func (f *Fake[T]) When(cond any) *Fake[T] {
	setCond(f.rec, f.b, cond)
	return f
}

/*
WhenArgs gates the behavior on argument equality: the call matches when
every live argument equals the corresponding expected value. One value per
parameter; for a variadic target the last value is the slice collecting the
variadic part. nil stands for a nil argument. Comparison follows [Fake.When]
closure semantics but is driven by the engine, so mismatches are reported
argument by argument when no behavior matches a call.
*/
func (f *Fake[T]) WhenArgs(vals ...any) *Fake[T] {
	setArgs(f.rec, f.b, vals)
	return f
}

/*
Return sets the values the intercepted call yields. One value per result,
in order; trailing results may be omitted and nil stands for a zero value,
so Return(nil) on a func() error target reports success. Values must be
assignable to the result types (numeric values are converted).
*/
func (f *Fake[T]) Return(vals ...any) *Fake[T] {
	if f.b.replace.IsValid() || f.b.hasResolve {
		panic("Return cannot be combined with ReplaceWith or Resolve")
	}
	tt := f.rec.fn.Type()
	if len(vals) > tt.NumOut() {
		panic(fmt.Sprintf("Return got %d value(s), %s has %d result(s)",
			len(vals), f.rec.name, tt.NumOut()))
	}
	out := make([]reflect.Value, tt.NumOut())
	for i := range out {
		if i >= len(vals) {
			out[i] = reflect.Zero(tt.Out(i))
			continue
		}
		rv, err := coerce(vals[i], tt.Out(i))
		if err != nil {
			panic(fmt.Sprintf("Return value %d for %s: %v", i, f.rec.name, err))
		}
		out[i] = rv
	}
	f.b.results = out
	f.b.hasResults = true
	return f
}

/*
Assign runs a mutator before the results are yielded, so the behavior can
write through the target's pointer parameters the way the original would
have. The mutator takes exactly the target's parameters and returns
nothing:

	detour.WhenCalled(inj, (*Probe).Read).
	    Assign(func(p *Probe, count *int, ok *bool) { *count = 6; *ok = true }).
	    Return(true)
*/
func (f *Fake[T]) Assign(mutator any) *Fake[T] {
	if f.b.replace.IsValid() {
		panic("Assign cannot be combined with ReplaceWith")
	}
	v := reflect.ValueOf(mutator)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic("Assign mutator must be a function")
	}
	tt := f.rec.fn.Type()
	if !sameIns(v.Type(), tt) || v.Type().NumOut() != 0 {
		panic(fmt.Sprintf("Assign mutator for %s must be %s",
			f.rec.name, mutatorType(tt)))
	}
	f.b.mutate = v
	return f
}

/*
ReplaceWith substitutes the whole call: fn runs with the live arguments and
its results are returned unchanged. fn shares the compile-time type of the
target, so the signatures cannot drift; capturing closures are fully
supported.
*/
func (f *Fake[T]) ReplaceWith(fn T) *Fake[T] {
	if f.b.hasResults || f.b.mutate.IsValid() || f.b.hasResolve {
		panic("ReplaceWith cannot be combined with Return, Assign or Resolve")
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic("ReplaceWith needs a non-nil function")
	}
	f.b.replace = v
	return f
}

/*
Times declares how many calls this behavior must receive. The count is
verified when the Injector closes; a call beyond the count panics
immediately with an error wrapping [ErrTooManyCalls].
*/
func (f *Fake[T]) Times(n int) *Fake[T] {
	setTimes(f.rec, f.b, n)
	return f
}

// Calls reports how many intercepted calls this behavior has handled so
// far. Useful for diagnostics in test assertions.
func (f *Fake[T]) Calls() int {
	return int(f.b.calls.Load())
}

func setCond(rec *record, b *behavior, cond any) {
	if b.hasArgs || b.pred.IsValid() {
		panic("behavior already has a condition")
	}
	v := reflect.ValueOf(cond)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic("When condition must be a function")
	}
	tt := rec.fn.Type()
	pt := v.Type()
	if !sameIns(pt, tt) || pt.NumOut() != 1 || pt.Out(0).Kind() != reflect.Bool {
		panic(fmt.Sprintf("When condition for %s must be %s", rec.name, condType(tt)))
	}
	b.pred = v
}

func setArgs(rec *record, b *behavior, vals []any) {
	if b.hasArgs || b.pred.IsValid() {
		panic("behavior already has a condition")
	}
	tt := rec.fn.Type()
	if len(vals) != tt.NumIn() {
		panic(fmt.Sprintf("WhenArgs got %d value(s), %s takes %d argument(s)",
			len(vals), rec.name, tt.NumIn()))
	}
	expect := make([]reflect.Value, len(vals))
	for i, val := range vals {
		if val == nil {
			if !nilableType(tt.In(i)) {
				panic(fmt.Sprintf("WhenArgs value %d for %s: %s cannot be nil",
					i, rec.name, tt.In(i)))
			}
			continue // invalid value is the nil placeholder
		}
		rv, err := coerce(val, tt.In(i))
		if err != nil {
			panic(fmt.Sprintf("WhenArgs value %d for %s: %v", i, rec.name, err))
		}
		expect[i] = rv
	}
	b.expectArgs = expect
	b.hasArgs = true
}

func setTimes(rec *record, b *behavior, n int) {
	if n < 0 {
		panic("Times needs a non-negative count")
	}
	b.expected = n
}

// coerce adapts a plain value to type t: nil becomes the zero value,
// assignable values keep their identity (stored as exactly t, so later
// comparisons see identical types), and numeric values are converted.
func coerce(val any, t reflect.Type) (reflect.Value, error) {
	if val == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(val)
	if rv.Type() == t {
		return rv, nil
	}
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if numeric(rv.Kind()) && numeric(t.Kind()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", rv.Type(), t)
}

func numeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Complex128
}

// sameIns reports whether fn takes exactly the parameters of target,
// variadic shape included.
func sameIns(fn, target reflect.Type) bool {
	if fn.NumIn() != target.NumIn() || fn.IsVariadic() != target.IsVariadic() {
		return false
	}
	for i := 0; i < fn.NumIn(); i++ {
		if fn.In(i) != target.In(i) {
			return false
		}
	}
	return true
}

func condType(target reflect.Type) reflect.Type {
	return reflect.FuncOf(inTypes(target), []reflect.Type{reflect.TypeOf(true)}, target.IsVariadic())
}

func mutatorType(target reflect.Type) reflect.Type {
	return reflect.FuncOf(inTypes(target), nil, target.IsVariadic())
}

func inTypes(target reflect.Type) []reflect.Type {
	in := make([]reflect.Type, target.NumIn())
	for i := range in {
		in[i] = target.In(i)
	}
	return in
}

func nilableType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer,
		reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return true
	default:
		return false
	}
}
