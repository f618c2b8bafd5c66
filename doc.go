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

/*
Package detour intercepts calls to compiled functions at runtime: it patches
the function's machine code so every future call runs a programmer-supplied
behavior instead, and puts the original bytes back when the test ends.
It should be used only for unit testing and never in production!

# Platforms supported

This package modifies the running test binary, therefore is OS- and CPU
arch-specific.

Supported OSes:

  - Linux
  - Windows
  - FreeBSD (other BSD flavours should also be ok)

Supported CPU archs:

  - x86-64
  - ARM64 aka Aarch64

# The concept

A test opens an [Injector], the scope-bound owner of every patch it makes.
[WhenCalled] picks a target function and describes what intercepted calls
should do: return canned values ([Fake.Return]), write through pointer
parameters ([Fake.Assign]), or run a full substitute ([Fake.ReplaceWith]).
Conditions ([Fake.When], [Fake.WhenArgs]) gate a behavior on the live
arguments; registering the same target again adds an alternative behavior,
and at call time the first behavior whose condition accepts the arguments
runs. A call no behavior covers is a hard test failure - interception was
requested, so every call must be accounted for.

[Fake.Times] declares how many calls a behavior must receive. Counts are
verified when the Injector closes, which happens automatically in the
test's cleanup: all patched functions are restored to their original bytes
whether or not verification passed, so one failing test cannot leak fakes
into the next.

Generic functions are intercepted per instantiation: describe[string] and
describe[int] are separate targets, and patching one leaves the other
running original code. Instantiations whose type arguments share a gc shape
share one compiled body and cannot be intercepted separately; pick
shape-distinct type arguments in tests. Methods are intercepted through
method expressions ((*T).M or T.M), which cover all calls; a bound method
value (x.M) covers only calls made through method values. Interface methods
cannot be intercepted - intercept the concrete method instead; trying to
patch an interface method expression is an error and may result in panic.

Functions that deliver their result through a channel are intercepted with
[WhenCalledAsync]: the dispatcher hands the caller an already-completed
channel carrying the resolved value, so the first receive yields
immediately and the original body never runs.

# Command line options

The compiler must not inline or optimize away the functions being patched,
so switch optimisations off when running tests:

	go test -gcflags="all=-N -l" [<path>]

Typical use:

	// you want to test function transfer() which in turn calls function
	// accBalance(), so you intercept accBalance() to return a predefined
	// balance without touching the real ledger

	func transfer(from, to string, amount float64) error {
	    ...
	    if amount > accBalance(from) {
	        return ErrNotEnoughFunds
	    }
	    ...
	}

	func TestTransfer(t *testing.T) {
	    inj := detour.New(t)

	    detour.WhenCalled(inj, accBalance).
	        WhenArgs("1024").
	        Return(1000.0).
	        Times(1)

	    err := transfer("1024", "2048", 200)
	    if err != nil {
	        t.Errorf("unexpected %v", err)
	    }
	} // cleanup restores accBalance and verifies it was called once

It is also possible to intercept functions and methods from other packages,
including the standard library. The method receiver is the first argument
of conditions and substitutes:

	func TestRead(t *testing.T) {
	    inj := detour.New(t)

	    detour.WhenCalled(inj, (*os.File).Read).
	        ReplaceWith(func(f *os.File, b []byte) (int, error) {
	            copy(b, "foo")
	            return 3, nil
	        })

	    f, _ := os.Open("test.file")
	    defer f.Close()
	    buf := make([]byte, 3)
	    n, _ := f.Read(buf)
	    if n != 3 || string(buf) != "foo" {
	        t.Errorf("unexpected file content %s", string(buf))
	    }
	}

# Concurrency

Behaviors may be invoked from any goroutine; call counters never lose
increments and behavior selection is serialized with registration. The one
thing that is not supported is calling a target from another goroutine at
the exact moment it is being patched or restored - install and uninstall
rewrite live code, and a concurrent call into the half-written prologue is
a precondition violation with undefined behavior, not a handled case. Keep
registration and Close on the test goroutine and do not leave goroutines
calling a target behind when the test ends.
*/
package detour
