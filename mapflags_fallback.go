//go:build (linux && !amd64) || dragonfly || freebsd || netbsd || openbsd

package detour

// No portable way to bias mappings toward the text segment on these
// targets. If the kernel places the arena out of branch range the patcher
// writes the inline entry sequence instead.
const stubMapFlags = 0
