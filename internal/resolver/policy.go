package resolver

import "fmt"

// Mode restricts which sources explicit targets may be resolved from.
type Mode string

const (
	ModeAny    Mode = "any"
	ModeRepo   Mode = "repo"
	ModeRemote Mode = "remote"
)

// ParseMode validates a mode name. The empty string means ModeAny.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAny:
		return ModeAny, nil
	case ModeRepo, ModeRemote:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of any, repo, remote", s)
	}
}

// Policy is the per-run boolean policy set.
type Policy struct {
	// AsDeps installs explicit targets with the dependency install reason.
	AsDeps bool
	// SkipSatisfied skips targets already satisfied by installed state.
	SkipSatisfied bool
	// Rebuild re-resolves targets even when they are satisfied.
	Rebuild bool
	// BuildTests expands check dependencies of source packages.
	BuildTests bool
	// RemoveBuildOnly uninstalls build-only dependencies after the run.
	RemoveBuildOnly bool
	Mode            Mode
	// Ignore lists package names whose upgrades are reported but not applied.
	Ignore []string
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{SkipSatisfied: true, Mode: ModeAny}
}

// Ignored reports whether name is on the ignore list.
func (p Policy) Ignored(name string) bool {
	for _, n := range p.Ignore {
		if n == name {
			return true
		}
	}
	return false
}
