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

// Package funcinfo answers size questions about compiled Go functions using
// the runtime's own function table. The runtime knows where every function
// begins; the gap to the next entry bounds how many prologue bytes can be
// overwritten without corrupting a neighbour.
package funcinfo

import _ "unsafe"

// BodyLen reports the number of code bytes available at the function
// containing pc, from pc to the start of the next function in the module.
// It returns 0 when pc does not belong to any Go function known to the
// runtime (assembly thunks from other modules, bogus addresses).
func BodyLen(pc uintptr) int {
	info := findfunc(pc)
	if info._func == nil || info.datap == nil {
		return 0
	}

	// ftab is not guaranteed to be in a convenient order, so scan it for
	// the entry that follows pc most closely.
	funcOffset := uint32(pc - info.datap.text)
	length := uint32(info.datap.etext - pc)
	for _, ft := range info.datap.ftab {
		if ft.entryoff <= funcOffset {
			continue
		}
		if d := ft.entryoff - funcOffset; d < length {
			length = d
		}
	}
	return int(length)
}

type funcInfo struct {
	*_func
	datap *moduledata
}

// _func mirrors runtime._func. The layout is dictated by the runtime and
// must not be rearranged.
type _func struct {
	entryOff uint32 // start pc, as offset from moduledata.text/pcHeader.textStart
	nameOff  int32  // function name, as index into moduledata.funcnametab.

	args        int32  // in/out args size
	deferreturn uint32 // offset of start of a deferreturn call instruction from entry, if any.

	pcsp      uint32
	pcfile    uint32
	pcln      uint32
	npcdata   uint32
	cuOffset  uint32 // runtime.cutab offset of this function's CU
	startLine int32  // line number of start of function (func keyword/TEXT directive)
	funcID    uint8  // set for certain special runtime functions
	flag      uint8
	_         [1]byte // pad
	nfuncdata uint8   // must be last, must end on a uint32-aligned boundary
}

// moduledata mirrors the prefix of runtime.moduledata that the length scan
// touches. It is written by the linker; any field before the last one used
// here has to stay byte-compatible with the runtime's definition.
type moduledata struct {
	pcHeader     *pcHeader
	funcnametab  []byte
	cutab        []uint32
	filetab      []byte
	pctab        []byte
	pclntable    []byte
	ftab         []functab
	findfunctab  uintptr
	minpc, maxpc uintptr

	text, etext           uintptr
	noptrdata, enoptrdata uintptr
	data, edata           uintptr
	bss, ebss             uintptr
	noptrbss, enoptrbss   uintptr
	covctrs, ecovctrs     uintptr
	end, gcdata, gcbss    uintptr
	types, etypes         uintptr
	rodata                uintptr
	gofunc                uintptr // go.func.*

	// Struct continues, omitting unused fields.
}

// pcHeader holds data used by the pclntab lookups.
type pcHeader struct {
	magic          uint32  // 0xFFFFFFF1
	pad1, pad2     uint8   // 0,0
	minLC          uint8   // min instruction size
	ptrSize        uint8   // size of a ptr in bytes
	nfunc          int     // number of functions in the module
	nfiles         uint    // number of entries in the file tab
	textStart      uintptr // base for function entry PC offsets in this module, equal to moduledata.text
	funcnameOffset uintptr // offset to the funcnametab variable from pcHeader
	cuOffset       uintptr // offset to the cutab variable from pcHeader
	filetabOffset  uintptr // offset to the filetab variable from pcHeader
	pctabOffset    uintptr // offset to the pctab variable from pcHeader
	pclnOffset     uintptr // offset to the pclntab variable from pcHeader
}

type functab struct {
	entryoff uint32 // relative to runtime.text
	funcoff  uint32
}

//go:linkname findfunc runtime.findfunc
func findfunc(pc uintptr) funcInfo
