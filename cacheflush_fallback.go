//go:build !arm64

package detour

// Not needed on amd64, where the instruction cache snoops data writes.
func cacheflush(buf []byte) {}
