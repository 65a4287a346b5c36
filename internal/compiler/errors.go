package compiler

import "github.com/pkg/errors"

// errCompile is returned by Compile when one or more diagnostics were
// reported during the pass; the diagnostics themselves have already
// been written to stderr by errorAt, so the caller only needs to know
// compilation failed (spec §6.5's exit code 65).
var errCompile = errors.New("compile error")
