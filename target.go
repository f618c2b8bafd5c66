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
	"runtime"
	"unsafe"
)

/*
targetKey identifies one compiled function body. The entry address alone is
not enough: two instantiations of a generic function are distinct targets
even though they come from the same source, so the key also carries a
fingerprint derived from the concrete signature. Conversely, the fingerprint
alone is not enough either, because gc-shape stenciling can give two
same-shaped instantiations a single shared body - that case is detected by
comparing entries (see [registry.register]).
*/
type targetKey struct {
	entry       uintptr
	fingerprint string
}

// target is the resolver's output: everything the patcher and the dispatcher
// need to know about one function chosen for interception.
type target struct {
	key   targetKey
	fn    reflect.Value // keeps the funcval (and any generic dictionary) alive
	rtype reflect.Type
	name  string
}

/*
resolveTarget reduces a function value to a patchable target.

Ordinary functions and method expressions resolve to the function body, so
every call is intercepted. A generic instantiation such as describe[string]
resolves to the body the compiler materialized for that instantiation;
direct calls reach the same body, so they are intercepted too. A bound
method value (x.M) resolves to the shared method-value trampoline, which
intercepts calls made through method values but not direct x.M() calls.

It panics with an error wrapping [ErrUnresolvable] when fn is not a callable
function value. This is a setup-time contract: a target that cannot be
reduced to an address is reported before anything is patched.
*/
func resolveTarget(fn any) target {
	if fn == nil {
		panic(fmt.Errorf("%w: target is nil", ErrUnresolvable))
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Errorf("%w: target is %s, not a function", ErrUnresolvable, v.Kind()))
	}
	if v.IsNil() {
		panic(fmt.Errorf("%w: target is a nil function", ErrUnresolvable))
	}

	entry := uintptr(v.UnsafePointer())
	t := target{
		key: targetKey{
			entry:       entry,
			fingerprint: v.Type().String(),
		},
		fn:    v,
		rtype: v.Type(),
		name:  runtime.FuncForPC(entry).Name(),
	}
	if t.name == "" {
		t.name = fmt.Sprintf("func@%#x", entry)
	}
	return t
}

// funcval mirrors the head of reflect.Value to reach its unexported pointer
// word. For a func-kinded Value that word points at the runtime funcval,
// whose own first word is the code address.
type funcval struct {
	_ uintptr
	p unsafe.Pointer
}

// funcvalPtr returns the address of the funcval behind a func-kinded
// reflect.Value. For a [reflect.MakeFunc] value this is the address the
// calling convention expects in the closure context register, so it is what
// the patched prologue loads before jumping to the dispatcher code.
// The reflect.Value must be kept reachable for as long as the returned
// address is in use.
func funcvalPtr(v reflect.Value) uintptr {
	return uintptr((*funcval)(unsafe.Pointer(&v)).p)
}
