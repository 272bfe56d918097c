// Package upgrade finds installed packages with newer versions available
// and applies the user's exclusions.
package upgrade

import (
	"context"
	"errors"
	"sort"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/resolver"
	"github.com/specialistvlad/pacforge/internal/version"
)

// Repository labels for remote and devel entries in the menu.
const (
	RemoteRepo = "aur"
	DevelRepo  = "devel"
)

// Index is the package data upgrade discovery reads.
type Index interface {
	InstalledPackages() []*model.Package
	SyncPackage(name string) *model.Package
	RepoPriority(repo string) int
	Lookup(ctx context.Context, name string) ([]*model.Package, error)
	Prefetch(ctx context.Context, names []string) error
}

// DevelChecker reports which version-control packages have upstream
// changes the installed build does not contain.
type DevelChecker interface {
	Outdated(ctx context.Context, pkgs []*model.Package) ([]string, error)
}

// Upgrade is one available upgrade.
type Upgrade struct {
	Name string
	// Repo is the sync database name, RemoteRepo or DevelRepo.
	Repo string
	Old  string
	New  string
}

// Set is the result of discovery.
type Set struct {
	Repo   []Upgrade
	Remote []Upgrade
	Devel  []Upgrade
	// Ignored lists upgrades suppressed by the ignore list.
	Ignored []Upgrade
}

// Empty reports whether nothing can be upgraded.
func (s *Set) Empty() bool {
	return len(s.Repo) == 0 && len(s.Remote) == 0 && len(s.Devel) == 0
}

// Options configures discovery. Only Policy.Mode and Policy.Ignore are read.
type Options struct {
	Policy  resolver.Policy
	Devel   bool
	Checker DevelChecker
}

// Discover computes the available upgrades. Repo-only mode skips remote
// and devel checks; remote-only mode skips repo upgrades.
func Discover(ctx context.Context, idx Index, opts Options) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	set := &Set{}

	if opts.Policy.Mode != resolver.ModeRemote {
		set.Repo, set.Ignored = repoUpgrades(idx, opts)
	}

	if opts.Policy.Mode != resolver.ModeRepo {
		remote, ignored, err := remoteUpgrades(ctx, idx, opts)
		if err != nil {
			return nil, err
		}
		set.Remote = remote
		set.Ignored = append(set.Ignored, ignored...)

		if opts.Devel {
			devel, err := develUpgrades(ctx, idx, opts)
			if err != nil {
				return nil, err
			}
			set.Devel = devel
			inDevel := make(map[string]bool, len(devel))
			for _, u := range devel {
				inDevel[u.Name] = true
			}
			kept := set.Remote[:0]
			for _, u := range set.Remote {
				if !inDevel[u.Name] {
					kept = append(kept, u)
				}
			}
			set.Remote = kept
		}
	}

	for _, u := range set.Ignored {
		logger.Warn("Ignoring package upgrade.", "package", u.Name, "old", u.Old, "new", u.New)
	}
	logger.Info("Upgrade discovery complete.", "repo", len(set.Repo), "remote", len(set.Remote), "devel", len(set.Devel))
	return set, nil
}

// repoUpgrades lists installed packages with a newer sync version, sorted
// by repository priority then name.
func repoUpgrades(idx Index, opts Options) (ups, ignored []Upgrade) {
	for _, p := range idx.InstalledPackages() {
		s := idx.SyncPackage(p.Name)
		if s == nil || version.Compare(s.Version, p.Version) <= 0 {
			continue
		}
		u := Upgrade{Name: p.Name, Repo: s.Repo, Old: p.Version, New: s.Version}
		if opts.Policy.Ignored(p.Name) {
			ignored = append(ignored, u)
			continue
		}
		ups = append(ups, u)
	}
	sort.SliceStable(ups, func(i, j int) bool {
		pi, pj := idx.RepoPriority(ups[i].Repo), idx.RepoPriority(ups[j].Repo)
		if pi != pj {
			return pi < pj
		}
		return ups[i].Name < ups[j].Name
	})
	return ups, ignored
}

// foreign lists installed packages no sync database carries.
func foreign(idx Index) []*model.Package {
	var out []*model.Package
	for _, p := range idx.InstalledPackages() {
		if idx.SyncPackage(p.Name) == nil {
			out = append(out, p)
		}
	}
	return out
}

func remoteUpgrades(ctx context.Context, idx Index, opts Options) (ups, ignored []Upgrade, err error) {
	pkgs := foreign(idx)
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	if err := idx.Prefetch(ctx, names); err != nil {
		return nil, nil, err
	}

	for _, p := range pkgs {
		cands, err := idx.Lookup(ctx, p.Name)
		if err != nil {
			if errors.Is(err, model.ErrPackageNotFound) {
				continue
			}
			return nil, nil, err
		}
		var newest *model.Package
		for _, c := range cands {
			if c.Source == model.RemoteSource && c.Name == p.Name {
				newest = c
				break
			}
		}
		if newest == nil || version.Compare(newest.Version, p.Version) <= 0 {
			continue
		}
		u := Upgrade{Name: p.Name, Repo: RemoteRepo, Old: p.Version, New: newest.Version}
		if opts.Policy.Ignored(p.Name) {
			ignored = append(ignored, u)
			continue
		}
		ups = append(ups, u)
	}
	return ups, ignored, nil
}

func develUpgrades(ctx context.Context, idx Index, opts Options) ([]Upgrade, error) {
	if opts.Checker == nil {
		return nil, nil
	}
	byName := make(map[string]*model.Package)
	var vcs []*model.Package
	for _, p := range foreign(idx) {
		if p.IsVCS() && !opts.Policy.Ignored(p.Name) {
			vcs = append(vcs, p)
			byName[p.Name] = p
		}
	}
	if len(vcs) == 0 {
		return nil, nil
	}

	names, err := opts.Checker.Outdated(ctx, vcs)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []Upgrade
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		p, ok := byName[name]
		if !ok {
			continue
		}
		out = append(out, Upgrade{Name: name, Repo: DevelRepo, Old: p.Version, New: "latest-commit"})
	}
	return out, nil
}
