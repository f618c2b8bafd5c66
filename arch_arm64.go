// Copyright (c) 2025 the Detour authors. All rights reserved.
//
// This work is licensed under the terms of the Apache License, Version 2.0
// For a copy, see <https://opensource.org/license/apache-2-0>.

package detour

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"unsafe"

	"golang.org/x/arch/arm64/arm64asm"
)

const branchLen = 4    // B imm26
const enterLen = 24    // MOVZ/MOVK X26 x4 + LDR X17, [X26] + BR X17
const maxPatchLen = enterLen

const ctxReg = 26     // closure context register of the internal ABI
const scratchReg = 17 // IP1, reserved for linker veneers, safe to clobber

// enterCode returns the sequence that transfers control into the dispatcher:
// it materializes the dispatcher funcval address in X26, the closure context
// register, loads the code pointer from the funcval's first word and branches
// to it. X0-X15 carry the original arguments and are left untouched.
func enterCode(fv uintptr) []byte {
	instrs := movImm64(ctxReg, uint64(fv))
	instrs = append(instrs, 0xF9400000|ctxReg<<5|scratchReg) // LDR X17, [X26]
	instrs = append(instrs, 0xD61F0000|scratchReg<<5)        // BR X17

	code := make([]byte, 0, enterLen)
	for _, instr := range instrs {
		code = binary.LittleEndian.AppendUint32(code, instr)
	}
	return code
}

// movImm64 yields MOVZ plus three MOVKs loading a 64-bit immediate 16 bits
// at a time.
func movImm64(reg uint32, v uint64) []uint32 {
	instrs := make([]uint32, 0, 4)
	instrs = append(instrs, 0xD2800000|uint32(v&0xFFFF)<<5|reg) // MOVZ
	for hw := uint32(1); hw < 4; hw++ {
		chunk := uint32(v >> (16 * hw) & 0xFFFF)
		instrs = append(instrs, 0xF2800000|hw<<21|chunk<<5|reg) // MOVK, LSL 16*hw
	}
	return instrs
}

// branchCode returns a B instruction from 'from' to 'to', or nil when the
// offset is outside the +/-128MiB range of imm26.
func branchCode(from, to uintptr) []byte {
	diff := int64(to) - int64(from)
	if diff >= 1<<27 || diff < -(1<<27) {
		return nil
	}
	code := make([]byte, 0, branchLen)
	return binary.LittleEndian.AppendUint32(code, 0x14000000|uint32(diff>>2)&0x03FFFFFF)
}

func disassemble(code []byte) (string, error) {
	var buf bytes.Buffer

	baseAddr := uintptr(unsafe.Pointer(unsafe.SliceData(code)))

	for i := 0; i < len(code)&^3; i += 4 {
		var asm string
		instruction, err := arm64asm.Decode(code[i:])
		if err == nil {
			asm = instruction.String()
		} else {
			asm = "?"
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", baseAddr+uintptr(i), hex.EncodeToString(code[i:i+4]), asm)
	}

	return buf.String(), nil
}
