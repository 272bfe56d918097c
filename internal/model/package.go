package model

import (
	"fmt"
	"strings"
)

// Source identifies where a candidate Package record came from.
type Source int

const (
	// Installed packages are already present in the local package database.
	Installed Source = iota
	// BinaryRepo packages are pre-built and installed by the host package manager.
	BinaryRepo
	// RemoteSource packages are build recipes that must be fetched and built.
	RemoteSource
)

func (s Source) String() string {
	switch s {
	case Installed:
		return "installed"
	case BinaryRepo:
		return "repo"
	case RemoteSource:
		return "remote"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// InstallReason records why an installed package is present.
type InstallReason int

const (
	ReasonExplicit InstallReason = iota
	ReasonDependency
)

// Package is an immutable snapshot of one candidate package record.
//
// Base groups split packages: several names built from one recipe share it.
// For binary repo and installed records without a known base the name is
// used. Repo is the sync database name for BinaryRepo records.
type Package struct {
	Name    string
	Base    string
	Version string
	Source  Source
	Repo    string

	RuntimeDeps  []Constraint
	BuildDeps    []Constraint
	CheckDeps    []Constraint
	OptionalDeps []Constraint

	Provides  []Constraint
	Conflicts []Constraint
	Replaces  []Constraint

	// InstallReason is only meaningful for Installed records.
	InstallReason InstallReason
}

// BaseName returns the package base, falling back to the package name.
func (p *Package) BaseName() string {
	if p.Base != "" {
		return p.Base
	}
	return p.Name
}

// ID returns "name-version" for logs and error messages.
func (p *Package) ID() string {
	return p.Name + "-" + p.Version
}

// String renders the package as "source/name version".
func (p *Package) String() string {
	origin := p.Source.String()
	if p.Source == BinaryRepo && p.Repo != "" {
		origin = p.Repo
	}
	return fmt.Sprintf("%s/%s %s", origin, p.Name, p.Version)
}

// Identity returns the package's capability set: its own name at its own
// version plus every provides entry.
func (p *Package) Identity() []Constraint {
	ids := make([]Constraint, 0, len(p.Provides)+1)
	ids = append(ids, Constraint{Name: p.Name, Op: OpEQ, Version: p.Version})
	return append(ids, p.Provides...)
}

// Deps returns the dependency list for the given edge kind.
func (p *Package) Deps(kind DepKind) []Constraint {
	switch kind {
	case RuntimeDep:
		return p.RuntimeDeps
	case BuildDep:
		return p.BuildDeps
	case CheckDep:
		return p.CheckDeps
	case OptionalDep:
		return p.OptionalDeps
	default:
		return nil
	}
}

// IsVCS reports whether the package builds from a version-control checkout
// and therefore may have upstream changes without a version bump.
func (p *Package) IsVCS() bool {
	for _, suffix := range vcsSuffixes {
		if strings.HasSuffix(p.Name, suffix) {
			return true
		}
	}
	return false
}

var vcsSuffixes = []string{"-git", "-svn", "-hg", "-bzr", "-darcs", "-cvs", "-fossil"}

// DepKind classifies a dependency edge.
type DepKind int

const (
	RuntimeDep DepKind = iota
	BuildDep
	CheckDep
	OptionalDep
)

func (k DepKind) String() string {
	switch k {
	case RuntimeDep:
		return "runtime"
	case BuildDep:
		return "build"
	case CheckDep:
		return "check"
	case OptionalDep:
		return "optional"
	default:
		return fmt.Sprintf("depkind(%d)", int(k))
	}
}
