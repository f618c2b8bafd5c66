// Copyright (c) 2025 the Detour authors. All rights reserved.
//
// This work is licensed under the terms of the Apache License, Version 2.0
// For a copy, see <https://opensource.org/license/apache-2-0>.

package detour

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

var tracer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

/*
SetTrace directs a log of installs and restores, with a disassembly of the
patched range, to w. Tracing is off by default; SetTrace(nil) turns it off
again. When w is a terminal the output is colored, unless NO_COLOR is set
(https://no-color.org/).

	detour.SetTrace(os.Stderr)
*/
func SetTrace(w io.Writer) {
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	tracer.w = w
	tracer.color = false
	if f, ok := w.(*os.File); ok {
		if _, noColor := os.LookupEnv("NO_COLOR"); !noColor {
			tracer.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
}

func traceInstall(rec *record, prologue []byte) {
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	if tracer.w == nil {
		return
	}
	where := "inline"
	if rec.stub != nil {
		where = "via stub"
	}
	fmt.Fprintf(tracer.w, "%s %s at %#x (%d bytes, %s)\n",
		paint("32", "install"), rec.name, rec.key.entry, len(prologue), where)
	dumpCode(prologue)
	if rec.stub != nil {
		dumpCode(rec.stub)
	}
}

func traceRestore(rec *record, prologue []byte) {
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	if tracer.w == nil {
		return
	}
	fmt.Fprintf(tracer.w, "%s %s at %#x (%d bytes)\n",
		paint("33", "restore"), rec.name, rec.key.entry, len(prologue))
	dumpCode(prologue)
}

// dumpCode prints the disassembly of a patched range, or the raw bytes when
// the decoder rejects them.
func dumpCode(code []byte) {
	listing, err := disassemble(code)
	if err != nil {
		fmt.Fprintf(tracer.w, "\t% x\n", code)
		return
	}
	fmt.Fprint(tracer.w, listing)
}

func paint(ansi, s string) string {
	if !tracer.color {
		return s
	}
	return "\x1b[" + ansi + "m" + s + "\x1b[0m"
}
