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
AsyncFake configures interception of a target whose result is delivered
later, through a channel, rather than computed at the call boundary. The
call itself is intercepted like any other, but instead of handing back a
plain value the dispatcher fabricates an already-completed channel carrying
the resolved value, so the caller's first receive yields immediately and
the original body - including whatever goroutine it would have started -
never runs.
*/
type AsyncFake[T any] struct {
	rec *record
	b   *behavior
}

/*
WhenCalledAsync resolves a target whose first result is a channel and
redirects its calls like [WhenCalled] does. Method targets are named by
method expression, so the receiver type pins which deliveries are faked:

	inj := detour.New(t)
	detour.WhenCalledAsync(inj, fetch).Resolve(uint32(123))
	detour.WhenCalledAsync(inj, (*Client[string]).Get).Resolve("cached")

No live receiver instance is needed; the instantiation named in the
expression is the one intercepted. Only the single-receive shape is
supported - a deferred result that is not a channel cannot be pre-completed
this way and is rejected at setup.
*/
func WhenCalledAsync[T any](inj *Injector, target T) *AsyncFake[T] {
	if inj == nil {
		panic("WhenCalledAsync needs the Injector returned by New")
	}
	t := resolveTarget(target)
	if t.rtype.NumOut() == 0 || t.rtype.Out(0).Kind() != reflect.Chan {
		panic(fmt.Sprintf("%s does not return a channel, use WhenCalled for synchronous targets", t.name))
	}
	if t.rtype.Out(0).ChanDir() == reflect.SendDir {
		panic(fmt.Sprintf("%s returns a send-only channel, its result cannot be received", t.name))
	}
	rec := patches.register(inj, t)
	return &AsyncFake[T]{rec: rec, b: patches.appendBehavior(rec)}
}

/*
Resolve sets the value the faked deferred computation completes with. The
value must be assignable to the channel's element type. The fabricated
channel is buffered, pre-loaded and closed, so the first receive returns v
without blocking and later receives observe a closed channel.
*/
func (f *AsyncFake[T]) Resolve(v any) *AsyncFake[T] {
	if f.b.hasResults || f.b.replace.IsValid() {
		panic("Resolve cannot be combined with Return or ReplaceWith")
	}
	elem := f.rec.fn.Type().Out(0).Elem()
	rv, err := coerce(v, elem)
	if err != nil {
		panic(fmt.Sprintf("Resolve value for %s: %v", f.rec.name, err))
	}
	f.b.resolve = rv
	f.b.hasResolve = true
	return f
}

// When gates the behavior on a condition over the live arguments, exactly
// as [Fake.When] does.
func (f *AsyncFake[T]) When(cond any) *AsyncFake[T] {
	setCond(f.rec, f.b, cond)
	return f
}

// WhenArgs gates the behavior on argument equality, exactly as
// [Fake.WhenArgs] does.
func (f *AsyncFake[T]) WhenArgs(vals ...any) *AsyncFake[T] {
	setArgs(f.rec, f.b, vals)
	return f
}

// Times declares the expected call count, verified when the Injector
// closes.
func (f *AsyncFake[T]) Times(n int) *AsyncFake[T] {
	setTimes(f.rec, f.b, n)
	return f
}

// Calls reports how many intercepted calls this behavior has handled.
func (f *AsyncFake[T]) Calls() int {
	return int(f.b.calls.Load())
}

// completedResults fabricates the faked deferred completion: a fresh
// buffered channel of the target's element type, pre-loaded with the
// resolved value and closed, converted to the declared result type.
// Remaining results are zero values.
func completedResults(typ reflect.Type, v reflect.Value) []reflect.Value {
	elem := typ.Out(0).Elem()
	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, elem), 1)
	ch.Send(v)
	ch.Close()

	out := make([]reflect.Value, typ.NumOut())
	out[0] = ch.Convert(typ.Out(0))
	for i := 1; i < typ.NumOut(); i++ {
		out[i] = reflect.Zero(typ.Out(i))
	}
	return out
}
