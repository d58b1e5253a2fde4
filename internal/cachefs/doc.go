// Package cachefs implements the server's FileHandler: a sandboxed,
// single-writer view over the cache directory spec.md §6 names, plus the
// streaming sink a PTFI upload writes into before the following GHDL can
// see it.
//
// Every path accepted from the wire is a bare filename (no subdirectories,
// per spec.md), so the sandbox uses os.Root the same way the teacher's
// securefs package does rather than hand-rolling ".." rejection.
package cachefs
