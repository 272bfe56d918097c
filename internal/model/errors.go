package model

import (
	"errors"
	"fmt"
)

// Error kinds. Resolution-stage kinds are fatal and reported before any batch
// runs; execution-stage kinds are local to one batch.
var (
	ErrPackageNotFound       = errors.New("package not found")
	ErrVersionConflict       = errors.New("version conflict")
	ErrUnsatisfiedDependency = errors.New("unsatisfied dependency")
	ErrPackageConflict       = errors.New("package conflict")
	ErrUnresolvableCycle     = errors.New("unresolvable dependency cycle")
	ErrFetchFailure          = errors.New("fetch failed")
	ErrBuildFailure          = errors.New("build failed")
	ErrInstallFailure        = errors.New("install failed")
	ErrUserAbort             = errors.New("aborted by user")
)

// Error is a kind-tagged failure about one package or package base.
type Error struct {
	Kind    error
	Package string
	Msg     string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Package != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Package)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Errorf builds an *Error of the given kind about pkg.
func Errorf(kind error, pkg string, format string, args ...any) error {
	return &Error{Kind: kind, Package: pkg, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags cause with kind for pkg. A nil cause yields nil.
func Wrap(kind error, pkg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Package: pkg, Cause: cause}
}

// ConflictError reports two packages that cannot be installed together.
type ConflictError struct {
	A, B   string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s and %s", ErrPackageConflict, e.A, e.B)
	}
	return fmt.Sprintf("%s: %s and %s (%s)", ErrPackageConflict, e.A, e.B, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrPackageConflict }

// ErrorKind is the stable name of an error kind, used in run results.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindPackageNotFound       ErrorKind = "PackageNotFound"
	KindVersionConflict       ErrorKind = "VersionConflict"
	KindUnsatisfiedDependency ErrorKind = "UnsatisfiedDependency"
	KindPackageConflict       ErrorKind = "PackageConflict"
	KindUnresolvableCycle     ErrorKind = "UnresolvableCycle"
	KindFetchFailure          ErrorKind = "FetchFailure"
	KindBuildFailure          ErrorKind = "BuildFailure"
	KindInstallFailure        ErrorKind = "InstallFailure"
	KindUserAbort             ErrorKind = "UserAbort"
	KindUnknown               ErrorKind = "Unknown"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrPackageNotFound, KindPackageNotFound},
	{ErrVersionConflict, KindVersionConflict},
	{ErrUnsatisfiedDependency, KindUnsatisfiedDependency},
	{ErrPackageConflict, KindPackageConflict},
	{ErrUnresolvableCycle, KindUnresolvableCycle},
	{ErrFetchFailure, KindFetchFailure},
	{ErrBuildFailure, KindBuildFailure},
	{ErrInstallFailure, KindInstallFailure},
	{ErrUserAbort, KindUserAbort},
}

// KindOf maps err to the first matching ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}
