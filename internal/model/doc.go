// Package model holds the immutable package records the resolver works on,
// the version constraints between them and the error taxonomy shared by the
// resolution, planning and execution stages.
//
// A Package is produced by a source-specific loader (installed state, a
// binary repository sync database or the remote source repository) but is
// always exposed through the same record shape. Nothing downstream branches
// on Source except for ordering and tie-break preference.
package model
