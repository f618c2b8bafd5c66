package detour

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

const branchLen = 5    // JMP rel32
const enterLen = 12    // MOVQ imm64, DX + JMP [DX]
const maxPatchLen = enterLen

// enterCode returns the sequence that transfers control into the dispatcher:
// it loads the dispatcher funcval into DX, the closure context register of
// the internal ABI, and jumps through the funcval's code word. Argument
// registers are left untouched, so the dispatcher sees the original call.
func enterCode(fv uintptr) []byte {
	code := make([]byte, 0, enterLen)
	code = append(code, 0x48, 0xBA) // MOVQ imm64, DX
	code = binary.LittleEndian.AppendUint64(code, uint64(fv))
	code = append(code, 0xFF, 0x22) // JMP [DX]
	return code
}

// branchCode returns a near jump from 'from' to 'to', or nil when the
// distance does not fit into rel32.
func branchCode(from, to uintptr) []byte {
	diff := int64(to) - int64(from) - branchLen
	if diff < math.MinInt32 || diff > math.MaxInt32 {
		return nil
	}
	code := make([]byte, 0, branchLen)
	code = append(code, 0xE9) // JMP rel32
	code = binary.LittleEndian.AppendUint32(code, uint32(int32(diff)))
	return code
}

func disassemble(code []byte) (string, error) {
	var buf bytes.Buffer

	baseAddr := uintptr(unsafe.Pointer(unsafe.SliceData(code)))

	for i := 0; i < len(code); {
		instruction, err := x86asm.Decode(code[i:], 64)
		if err != nil {
			return "", fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", baseAddr+uintptr(i), hex.EncodeToString(code[i:i+instruction.Len]), instruction.String())

		i += instruction.Len
	}

	return buf.String(), nil
}
