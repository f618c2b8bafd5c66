package detour

import "golang.org/x/sys/unix"

// MAP_32BIT keeps the stub arena in the low 2GiB, within rel32 reach of the
// default (non-PIE) text segment.
const stubMapFlags = unix.MAP_32BIT
