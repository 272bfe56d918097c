package model

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/pacforge/internal/version"
)

// Op is a version comparison operator. OpAny means presence alone satisfies.
type Op int

const (
	OpAny Op = iota
	OpEQ
	OpLT
	OpLE
	OpGT
	OpGE
)

func (o Op) String() string {
	switch o {
	case OpEQ:
		return "="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	default:
		return ""
	}
}

// Constraint is a dependency, provides, conflicts or replaces entry such as
// "foo", "foo>=2.0" or "libbar.so=3-64".
type Constraint struct {
	Name    string
	Op      Op
	Version string
}

// operators is ordered so two-character operators are matched first.
var operators = []struct {
	text string
	op   Op
}{
	{">=", OpGE},
	{"<=", OpLE},
	{">", OpGT},
	{"<", OpLT},
	{"=", OpEQ},
}

// ParseConstraint parses "name[op version]". Optional-dependency descriptions
// ("name: reason") are stripped.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if colon := strings.Index(s, ": "); colon >= 0 {
		s = s[:colon]
	}
	if s == "" {
		return Constraint{}, fmt.Errorf("empty constraint")
	}

	for _, candidate := range operators {
		idx := strings.Index(s, candidate.text)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(s[:idx])
		ver := strings.TrimSpace(s[idx+len(candidate.text):])
		if name == "" {
			return Constraint{}, fmt.Errorf("constraint %q has no package name", s)
		}
		if ver == "" {
			return Constraint{}, fmt.Errorf("constraint %q has an operator but no version", s)
		}
		return Constraint{Name: name, Op: candidate.op, Version: ver}, nil
	}
	return Constraint{Name: s}, nil
}

// MustParseConstraint is ParseConstraint for literals known to be valid.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseConstraints parses every entry, reporting the first malformed one.
func ParseConstraints(list []string) ([]Constraint, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]Constraint, 0, len(list))
	for _, s := range list {
		c, err := ParseConstraint(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (c Constraint) String() string {
	if c.Op == OpAny {
		return c.Name
	}
	return c.Name + c.Op.String() + c.Version
}

// HasVersion reports whether the constraint restricts the version.
func (c Constraint) HasVersion() bool {
	return c.Op != OpAny
}

// SatisfiedBy reports whether a capability named name at version ver meets
// the constraint. An unversioned capability (ver == "") only satisfies an
// unversioned constraint.
func (c Constraint) SatisfiedBy(name, ver string) bool {
	if name != c.Name {
		return false
	}
	if c.Op == OpAny {
		return true
	}
	if ver == "" {
		return false
	}

	r := version.Compare(ver, c.Version)
	switch c.Op {
	case OpEQ:
		return r == 0
	case OpLT:
		return r < 0
	case OpLE:
		return r <= 0
	case OpGT:
		return r > 0
	case OpGE:
		return r >= 0
	default:
		return false
	}
}

// SatisfiedByPackage reports whether the package's own name or any of its
// provides entries meets the constraint.
func (c Constraint) SatisfiedByPackage(p *Package) bool {
	if c.SatisfiedBy(p.Name, p.Version) {
		return true
	}
	for _, prov := range p.Provides {
		ver := ""
		if prov.Op == OpEQ {
			ver = prov.Version
		}
		if c.SatisfiedBy(prov.Name, ver) {
			return true
		}
	}
	return false
}

// ExactName reports whether the package satisfies c by its own name rather
// than through a provides entry.
func (c Constraint) ExactName(p *Package) bool {
	return c.SatisfiedBy(p.Name, p.Version)
}
