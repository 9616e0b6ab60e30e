// Package project groups absolute file paths by the project root that
// contains them.
//
// Roots is the registry used by the breakpoint list to show each breakpoint
// under its project with a root-relative path. Nested roots resolve to the
// innermost one. Paths outside every root are reported as such so callers can
// fall back to absolute display.
package project
