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
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Dispatcher entry stubs are carved out of pages committed with
// PAGE_EXECUTE_READWRITE. All slots have the same size, so a plain free
// list is enough to recycle them.
type stubPool struct {
	mu   sync.Mutex
	free [][]byte
	page []byte
	off  int
}

var stubs = &stubPool{}

// stubAlloc copies code into a fresh executable slot and returns it.
func stubAlloc(code []byte) ([]byte, error) {
	stubs.mu.Lock()
	defer stubs.mu.Unlock()

	var buf []byte
	if n := len(stubs.free); n > 0 {
		buf = stubs.free[n-1]
		stubs.free = stubs.free[:n-1]
	} else {
		if stubs.page == nil || stubs.off+len(code) > len(stubs.page) {
			size := os.Getpagesize()
			addr, err := windows.VirtualAlloc(0, uintptr(size),
				windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
			if err != nil {
				return nil, err
			}
			stubs.page = unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
			stubs.off = 0
		}
		buf = stubs.page[stubs.off : stubs.off+len(code) : stubs.off+len(code)]
		stubs.off += len(code)
	}
	copy(buf, code)
	cacheflush(buf)
	return buf, nil
}

// stubFree returns a slot to the free list. nil is accepted and ignored.
func stubFree(buf []byte) {
	if buf == nil {
		return
	}
	stubs.mu.Lock()
	defer stubs.mu.Unlock()
	stubs.free = append(stubs.free, buf)
}
