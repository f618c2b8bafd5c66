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
	"errors"
	"fmt"
	"testing"
)

// ErrUnresolvable is wrapped by setup-time panics when a target cannot be
// reduced to a patchable function address.
var ErrUnresolvable = errors.New("target cannot be resolved to a function address")

// ErrCannotPatch is wrapped by setup-time panics when a resolved target
// cannot be patched: the function body is too small to hold the patch, or
// the memory protection change was denied.
var ErrCannotPatch = errors.New("cannot patch function")

// ErrUnhandledCall is wrapped by the call-time panic raised when an
// intercepted call matches no registered behavior. It means the test's fake
// coverage is incomplete, so it is fatal rather than recoverable.
var ErrUnhandledCall = errors.New("intercepted call matched no behavior")

// ErrTooManyCalls is wrapped by the call-time panic raised when a behavior
// with a declared count receives one call too many.
var ErrTooManyCalls = errors.New("function called more times than expected")

// ErrExpectationsNotMet is joined into the error [Injector.Close] returns
// when declared call counts were not reached.
var ErrExpectationsNotMet = errors.New("expectations were not met")

/*
Injector owns every patch installed through it and undoes all of them when
it closes. [New] binds closing to the test's cleanup phase, so the usual
test does not close explicitly:

	func TestTransfer(t *testing.T) {
	    inj := detour.New(t)

	    detour.WhenCalled(inj, accBalance).Return(1000.0).Times(1)

	    // exercise production code; accBalance is faked until the test ends
	}

At most one Injector is active at a time: the process has a single set of
function bodies, and two owners patching them independently could not be
restored reliably. New panics while another Injector is open.
*/
type Injector struct {
	t       *testing.T
	records []*record
	closed  bool
}

/*
New begins interception and returns the handle that owns all patches
registered against it. Restoration and call-count verification are bound to
t's cleanup, so patches never outlive the test that created them; a
verification failure is reported through t.Error. Call [Injector.Close]
directly to restore earlier, e.g. before exercising the genuine functions
in the same test.
*/
func New(t *testing.T) *Injector {
	if t == nil {
		panic("New needs a *testing.T to report verification failures")
	}

	patches.mu.Lock()
	defer patches.mu.Unlock()
	if patches.owner != nil {
		panic("another Injector is active, cannot have two at once")
	}

	inj := &Injector{t: t}
	patches.owner = inj
	t.Cleanup(func() {
		if err := inj.Close(); err != nil {
			t.Error(err)
		}
	})
	return inj
}

/*
Close restores every function this Injector patched to its original bytes
and verifies the declared call counts. Restoration is unconditional: a
count mismatch on one target never prevents any other target from being
restored, so a failing test cannot leak patches into unrelated tests. All
mismatches are collected and returned as a single error joined with
[ErrExpectationsNotMet]; closing an already-closed Injector returns nil.
*/
func (inj *Injector) Close() error {
	patches.mu.Lock()
	if inj.closed {
		patches.mu.Unlock()
		return nil
	}
	inj.closed = true
	if patches.owner == inj {
		patches.owner = nil
	}
	records := inj.records
	inj.records = nil
	patches.mu.Unlock()

	var err error
	for _, rec := range records {
		for _, b := range rec.behaviors {
			if b.expected < 0 {
				continue
			}
			if got := int(b.calls.Load()); got != b.expected {
				if got == 0 {
					err = errors.Join(err, fmt.Errorf("function %s was not called", rec.name))
				} else {
					err = errors.Join(err, fmt.Errorf("function %s was called %d time(s) instead of %d",
						rec.name, got, b.expected))
				}
			}
		}
		patches.deregister(rec)
	}
	if err != nil {
		err = errors.Join(ErrExpectationsNotMet, err)
	}
	return err
}

// Testing returns the [testing.T] the Injector reports to.
func (inj *Injector) Testing() *testing.T {
	return inj.t
}
