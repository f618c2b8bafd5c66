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

//go:build linux || dragonfly || freebsd || netbsd || openbsd

package detour

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/malloc"
	"golang.org/x/sys/unix"
)

// Dispatcher entry stubs live in a dedicated executable arena. stubMapFlags
// asks the kernel for pages close enough to the text segment for a short
// branch; when the arena still lands out of range the patcher falls back to
// the inline entry sequence.
type stubArena struct {
	*malloc.Arena
	protect  func(int) error
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
	writable bool
}

var stubs = &stubArena{}

const stubArenaSize = 16 * 1024

func (a *stubArena) init() error {
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(unix.PROT_READ|unix.PROT_EXEC, stubMapFlags)
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.protect = protBE.Protect
		} else {
			a.protect = func(int) error {
				return nil
			}
		}

		a.Arena = malloc.NewArena(stubArenaSize, malloc.Backend(be))
		if a.Arena == nil {
			a.initErr = errors.New("unable to initialize stub arena")
			return
		}
		a.writable = true
	})
	return a.initErr
}

func (a *stubArena) beginMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.protect == nil || a.writable {
		return nil
	}

	err := a.protect(unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC)
	if err == nil {
		a.writable = true
	}
	return err
}

func (a *stubArena) endMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.protect == nil || !a.writable {
		return nil
	}

	err := a.protect(unix.PROT_READ | unix.PROT_EXEC)
	if err == nil {
		a.writable = false
	}
	return err
}

// stubAlloc copies code into a fresh executable slot and returns it.
func stubAlloc(code []byte) ([]byte, error) {
	if err := stubs.init(); err != nil {
		return nil, err
	}
	if err := stubs.beginMutate(); err != nil {
		return nil, err
	}
	defer stubs.endMutate()

	buf, err := malloc.MallocSlice[byte](stubs.Arena, len(code))
	if err != nil {
		return nil, fmt.Errorf("stub allocation failed: %w", err)
	}
	copy(buf, code)
	cacheflush(buf)
	return buf, nil
}

// stubFree returns a slot to the arena. nil is accepted and ignored.
func stubFree(buf []byte) {
	if buf == nil {
		return
	}
	stubs.beginMutate()
	defer stubs.endMutate()
	malloc.FreeSlice(stubs.Arena, buf)
}
