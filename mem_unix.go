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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// makeMemRX lifts the write protection from the pages holding [ptr, ptr+size).
// The pages stay writable afterwards so the original prologue can be put back
// without another protection round-trip.
func makeMemRX(ptr unsafe.Pointer, size int) error {
	start, sz := calcBoundaries(ptr, size)

	page := unsafe.Slice((*uint8)(start), sz)
	return unix.Mprotect(page, unix.PROT_WRITE|unix.PROT_READ|unix.PROT_EXEC)
}

func calcBoundaries(ptr unsafe.Pointer, size int) (unsafe.Pointer, uintptr) {
	pageSize := uintptr(os.Getpagesize())
	areaStart := unsafe.Pointer(uintptr(ptr) &^ (pageSize - 1))
	areaSize := (uintptr(ptr) + uintptr(size)) - uintptr(areaStart)

	return areaStart, areaSize
}
