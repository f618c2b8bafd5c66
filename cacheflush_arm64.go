//go:build arm64

package detour

import "unsafe"

/*
static void cacheflush(char *start, char *end) {
	__builtin___clear_cache(start, end);
}
*/
import "C"

// ARM64 has separate instruction and data caches, so every patched range has
// to be flushed before it is executed.
func cacheflush(buf []byte) {
	start := unsafe.Pointer(unsafe.SliceData(buf))
	end := unsafe.Pointer(uintptr(len(buf)) + uintptr(start))
	C.cacheflush((*C.char)(start), (*C.char)(end))
}
