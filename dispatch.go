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
	"strings"
)

/*
makeDispatcher builds the routine the patched prologue jumps to.

It is a [reflect.MakeFunc] value of the target's exact type, so it receives
the live arguments under the target's calling convention and returns to the
caller exactly as the target would have. The record pointer is captured in
the closure, so no table lookup is needed at call time - each installed
target gets its own dispatcher bound to its own record.

On each intercepted call the dispatcher walks the record's behaviors in
registration order and runs the first one that accepts the arguments. A
behavior without a condition accepts everything. No match means the test
asked for interception but covered no case for this call, which is a hard
failure: the dispatcher panics with an error wrapping [ErrUnhandledCall]
that names the target, the live arguments and why each behavior declined.
*/
func makeDispatcher(rec *record) reflect.Value {
	typ := rec.fn.Type()
	return reflect.MakeFunc(typ, func(args []reflect.Value) []reflect.Value {
		// Snapshot under the table lock; behaviors are append-only, so the
		// snapshot stays valid after the lock is dropped and conditions can
		// safely call other intercepted functions.
		patches.mu.Lock()
		behaviors := rec.behaviors
		patches.mu.Unlock()

		var selected *behavior
		for _, b := range behaviors {
			if b.accepts(args) {
				selected = b
				break
			}
		}
		if selected == nil {
			panic(unhandledCall(rec, behaviors, args))
		}

		prev := selected.calls.Add(1) - 1
		if selected.expected >= 0 && prev >= int64(selected.expected) {
			panic(fmt.Errorf("%w: %s expected %d call(s)",
				ErrTooManyCalls, rec.name, selected.expected))
		}

		return selected.run(typ, args)
	})
}

// accepts reports whether the behavior's condition holds for the live
// arguments. Arguments are handed to conditions as the original
// reflect.Value views, never copied.
func (b *behavior) accepts(args []reflect.Value) bool {
	switch {
	case b.hasArgs:
		ok, _ := argsMatch(args, b.expectArgs)
		return ok
	case b.pred.IsValid():
		return callValues(b.pred, args)[0].Bool()
	default:
		return true
	}
}

// run executes the behavior's action and yields the values the intercepted
// caller receives.
func (b *behavior) run(typ reflect.Type, args []reflect.Value) []reflect.Value {
	if b.mutate.IsValid() {
		callValues(b.mutate, args)
	}

	switch {
	case b.replace.IsValid():
		return callValues(b.replace, args)
	case b.hasResolve:
		return completedResults(typ, b.resolve)
	case b.hasResults:
		return b.results
	default:
		return zeroResults(typ)
	}
}

// callValues invokes fn with the dispatcher's argument views, spreading the
// trailing slice when fn is variadic.
func callValues(fn reflect.Value, args []reflect.Value) []reflect.Value {
	if fn.Type().IsVariadic() {
		return fn.CallSlice(args)
	}
	return fn.Call(args)
}

func zeroResults(typ reflect.Type) []reflect.Value {
	out := make([]reflect.Value, typ.NumOut())
	for i := range out {
		out[i] = reflect.Zero(typ.Out(i))
	}
	return out
}

func unhandledCall(rec *record, behaviors []*behavior, args []reflect.Value) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s called with (%s)", rec.name, formatArgs(args))
	if len(behaviors) == 0 {
		sb.WriteString(", no behaviors registered")
	}
	for i, b := range behaviors {
		fmt.Fprintf(&sb, "\n  behavior %d: %s", i, b.whyRejected(args))
	}
	return fmt.Errorf("%w: %s", ErrUnhandledCall, sb.String())
}

func (b *behavior) whyRejected(args []reflect.Value) string {
	if b.hasArgs {
		_, msg := argsMatch(args, b.expectArgs)
		return msg
	}
	return "condition returned false"
}

func formatArgs(args []reflect.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return strings.Join(parts, ", ")
}
