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
	"unsafe"

	"github.com/detour-go/detour/internal/funcinfo"
)

/*
install redirects rec's target to its dispatcher, reversibly.

The replacement sequence loads the dispatcher funcval into the closure
context register and jumps through its code word (see enterCode), leaving
the argument registers untouched, so the dispatcher observes the original
call exactly as the target would have. The sequence is preferably written
to a stub slot in the executable arena and the prologue overwritten with a
single short branch to it; when no stub can be placed within branch range
the full sequence is written inline at the prologue instead.

The overwritten bytes are saved in rec before the write, the containing
pages are made writable (and stay that way, so uninstall needs no second
protection change), and the instruction cache is flushed where the
architecture requires it.

Callers hold the registry mutex. Concurrent calls into the target itself
from other goroutines during install are a precondition violation, not a
handled case.
*/
func install(rec *record) error {
	enter := enterCode(funcvalPtr(rec.dispatcher))

	patch := enter
	if slot, err := stubAlloc(enter); err == nil {
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(slot)))
		if branch := branchCode(rec.key.entry, addr); branch != nil {
			patch = branch
			rec.stub = slot
		} else {
			// arena out of branch range, write the entry sequence inline
			stubFree(slot)
		}
	}

	if n := funcinfo.BodyLen(rec.key.entry); n > 0 && n < len(patch) {
		stubFree(rec.stub)
		rec.stub = nil
		return fmt.Errorf("%w: %s is %d byte(s), %d needed for the patch",
			ErrCannotPatch, rec.name, n, len(patch))
	}

	ptr := unsafe.Pointer(rec.key.entry)
	if err := makeMemRX(ptr, len(patch)); err != nil {
		stubFree(rec.stub)
		rec.stub = nil
		return fmt.Errorf("%w: cannot change memory protection for %s: %v",
			ErrCannotPatch, rec.name, err)
	}

	prologue := unsafe.Slice((*uint8)(ptr), len(patch))
	copy(rec.saved[:], prologue)
	rec.savedLen = len(patch)

	copy(prologue, patch)
	cacheflush(prologue)
	rec.installed = true

	traceInstall(rec, prologue)
	return nil
}

// uninstall writes the saved prologue back, bit-identical, and releases the
// stub slot. The pages were left writable by install. Uninstalling a record
// that was never installed, or was already uninstalled, is a no-op.
func uninstall(rec *record) {
	if !rec.installed {
		return
	}

	prologue := unsafe.Slice((*uint8)(unsafe.Pointer(rec.key.entry)), rec.savedLen)
	copy(prologue, rec.saved[:rec.savedLen])
	cacheflush(prologue)

	stubFree(rec.stub)
	rec.stub = nil
	rec.installed = false

	traceRestore(rec, prologue)
}
