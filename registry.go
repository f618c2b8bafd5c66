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
	"sync"
	"sync/atomic"
)

/*
registry is the process-wide dispatch table: the single source of truth for
which functions are currently intercepted and with what behaviors. One mutex
guards the table, record registration, install/uninstall and the
single-active-injector rule; dispatch takes the same mutex only long enough
to select a behavior, so calls to different installed targets proceed
concurrently once past selection.
*/
type registry struct {
	mu      sync.Mutex
	records map[targetKey]*record
	owner   *Injector
}

var patches = registry{records: map[targetKey]*record{}}

// record holds everything attached to one installed target: the saved
// prologue bytes, the dispatcher the patch jumps to, and the behavior list
// the dispatcher walks. Records are created and removed only under the
// registry mutex and owned by exactly one Injector.
type record struct {
	key        targetKey
	fn         reflect.Value // original function value, keeps the entry alive
	name       string
	dispatcher reflect.Value // MakeFunc value the patched prologue enters
	saved      [maxPatchLen]byte
	savedLen   int
	stub       []byte // executable trampoline slot, nil when patched inline
	behaviors  []*behavior
	installed  bool
}

// behavior is one predicate/action pair on a record. Fields are written
// during registration (under the registry mutex) and only read afterwards,
// except calls, which is atomic so concurrent intercepted calls never lose
// an increment.
type behavior struct {
	rec        *record
	expectArgs []reflect.Value // WhenArgs equality gate, nil entry matches nil
	hasArgs    bool
	pred       reflect.Value // When closure gate
	mutate     reflect.Value // Assign closure, runs before results are returned
	results    []reflect.Value
	hasResults bool
	replace    reflect.Value // ReplaceWith substitute
	resolve    reflect.Value // Resolve value for channel-returning targets
	hasResolve bool
	expected   int // verified at close when >= 0
	calls      atomic.Int64
}

// register returns the record for t, creating and installing it on first
// use. The caller must be the active injector. A second injector, or a
// same-shape generic collision (two fingerprints over one compiled body),
// is a registration error and panics.
func (r *registry) register(inj *Injector, t target) *record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner == nil {
		panic("no active Injector, call New first")
	}
	if r.owner != inj {
		panic("Injector is already closed")
	}

	if rec, ok := r.records[t.key]; ok {
		return rec
	}
	for k, rec := range r.records {
		if k.entry == t.key.entry {
			panic(fmt.Sprintf(
				"%s and %s share one compiled body (same gc shape), cannot intercept both; pick shape-distinct type arguments",
				t.key.fingerprint, rec.key.fingerprint))
		}
	}

	rec := &record{key: t.key, fn: t.fn, name: t.name}
	rec.dispatcher = makeDispatcher(rec)
	if err := install(rec); err != nil {
		panic(err)
	}
	r.records[t.key] = rec
	inj.records = append(inj.records, rec)
	return rec
}

// deregister uninstalls rec and drops it from the table. Only the restorer
// calls it; uninstalling an already-removed record is a no-op.
func (r *registry) deregister(rec *record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uninstall(rec)
	delete(r.records, rec.key)
}

// appendBehavior attaches a fresh behavior to rec. The record stays
// installed; only its behavior list grows.
func (r *registry) appendBehavior(rec *record) *behavior {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &behavior{rec: rec, expected: -1}
	rec.behaviors = append(rec.behaviors, b)
	return b
}
