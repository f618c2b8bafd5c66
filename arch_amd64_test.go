package detour

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestEnterCode(t *testing.T) {
	const fv = uintptr(0x1122334455667788)
	code := enterCode(fv)
	require.Len(t, code, enterLen)

	assert.Equal(t, []byte{0x48, 0xBA}, code[:2], "MOVQ imm64, DX opcode")
	assert.Equal(t, uint64(fv), binary.LittleEndian.Uint64(code[2:10]))
	assert.Equal(t, []byte{0xFF, 0x22}, code[10:], "JMP [DX] opcode")

	mov, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	assert.Equal(t, x86asm.MOV, mov.Op)

	jmp, err := x86asm.Decode(code[mov.Len:], 64)
	require.NoError(t, err)
	assert.Equal(t, x86asm.JMP, jmp.Op)
	assert.Equal(t, enterLen, mov.Len+jmp.Len)
}

func TestBranchCode(t *testing.T) {
	code := branchCode(0x1000, 0x2000)
	require.Len(t, code, branchLen)
	assert.Equal(t, byte(0xE9), code[0])

	rel := int32(binary.LittleEndian.Uint32(code[1:]))
	assert.Equal(t, uintptr(0x2000), uintptr(0x1000)+branchLen+uintptr(rel))

	back := branchCode(0x2000, 0x1000)
	require.Len(t, back, branchLen)
	rel = int32(binary.LittleEndian.Uint32(back[1:]))
	assert.Equal(t, int64(0x1000), 0x2000+branchLen+int64(rel))
}

func TestBranchOutOfRange(t *testing.T) {
	assert.Nil(t, branchCode(0, uintptr(1)<<40))
	assert.NotNil(t, branchCode(0, 1<<30))
}

func TestDisassemble(t *testing.T) {
	listing, err := disassemble(enterCode(0xCAFE))
	require.NoError(t, err)
	assert.Contains(t, listing, "MOV")
	assert.Contains(t, listing, "JMP")

	_, err = disassemble([]byte{0x48}) // bare REX prefix is not an instruction
	assert.Error(t, err)
}
