// Package snapshot loads package databases from YAML files.
//
// A snapshot holds installed state, any number of sync databases in priority
// order and the remote repository's metadata. It backs offline planning and
// the fixtures of the tests.
package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/pacforge/internal/index"
	"github.com/specialistvlad/pacforge/internal/model"
	"gopkg.in/yaml.v3"
)

// PackageRecord is the on-disk form of a package.
type PackageRecord struct {
	Name         string   `yaml:"name"`
	Base         string   `yaml:"base,omitempty"`
	Version      string   `yaml:"version"`
	Reason       string   `yaml:"reason,omitempty"`
	Depends      []string `yaml:"depends,omitempty"`
	MakeDepends  []string `yaml:"makedepends,omitempty"`
	CheckDepends []string `yaml:"checkdepends,omitempty"`
	OptDepends   []string `yaml:"optdepends,omitempty"`
	Provides     []string `yaml:"provides,omitempty"`
	Conflicts    []string `yaml:"conflicts,omitempty"`
	Replaces     []string `yaml:"replaces,omitempty"`
}

// RepoRecord is one sync database.
type RepoRecord struct {
	Name     string          `yaml:"name"`
	Packages []PackageRecord `yaml:"packages"`
}

// File is the document layout.
type File struct {
	Installed []PackageRecord `yaml:"installed"`
	Repos     []RepoRecord    `yaml:"repos"`
	Remote    []PackageRecord `yaml:"remote"`
}

// Snapshot is a decoded, validated file.
type Snapshot struct {
	installed []*model.Package
	repos     []*repoDB
	remote    []*model.Package
}

type repoDB struct {
	name string
	pkgs []*model.Package
}

func (r *repoDB) Name() string               { return r.name }
func (r *repoDB) Packages() []*model.Package { return r.pkgs }

// Load reads and decodes a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return FromFile(&f)
}

// FromFile converts decoded records into packages.
func FromFile(f *File) (*Snapshot, error) {
	s := &Snapshot{}
	for _, rec := range f.Installed {
		p, err := rec.toPackage(model.Installed, "")
		if err != nil {
			return nil, fmt.Errorf("installed: %w", err)
		}
		s.installed = append(s.installed, p)
	}

	seen := make(map[string]bool)
	for _, repo := range f.Repos {
		if repo.Name == "" {
			return nil, fmt.Errorf("repos: repository without a name")
		}
		if seen[repo.Name] {
			return nil, fmt.Errorf("repos: duplicate repository %q", repo.Name)
		}
		seen[repo.Name] = true
		db := &repoDB{name: repo.Name}
		for _, rec := range repo.Packages {
			p, err := rec.toPackage(model.BinaryRepo, repo.Name)
			if err != nil {
				return nil, fmt.Errorf("repo %s: %w", repo.Name, err)
			}
			db.pkgs = append(db.pkgs, p)
		}
		s.repos = append(s.repos, db)
	}

	for _, rec := range f.Remote {
		p, err := rec.toPackage(model.RemoteSource, "")
		if err != nil {
			return nil, fmt.Errorf("remote: %w", err)
		}
		s.remote = append(s.remote, p)
	}
	return s, nil
}

func (rec PackageRecord) toPackage(src model.Source, repo string) (*model.Package, error) {
	if rec.Name == "" {
		return nil, fmt.Errorf("package without a name")
	}
	if rec.Version == "" {
		return nil, fmt.Errorf("package %s: missing version", rec.Name)
	}
	p := &model.Package{Name: rec.Name, Base: rec.Base, Version: rec.Version, Source: src, Repo: repo}

	switch rec.Reason {
	case "", "explicit":
		p.InstallReason = model.ReasonExplicit
	case "dependency", "dep":
		p.InstallReason = model.ReasonDependency
	default:
		return nil, fmt.Errorf("package %s: unknown install reason %q", rec.Name, rec.Reason)
	}

	lists := []struct {
		field string
		in    []string
		out   *[]model.Constraint
	}{
		{"depends", rec.Depends, &p.RuntimeDeps},
		{"makedepends", rec.MakeDepends, &p.BuildDeps},
		{"checkdepends", rec.CheckDepends, &p.CheckDeps},
		{"optdepends", rec.OptDepends, &p.OptionalDeps},
		{"provides", rec.Provides, &p.Provides},
		{"conflicts", rec.Conflicts, &p.Conflicts},
		{"replaces", rec.Replaces, &p.Replaces},
	}
	for _, l := range lists {
		cs, err := model.ParseConstraints(l.in)
		if err != nil {
			return nil, fmt.Errorf("package %s: %s: %w", rec.Name, l.field, err)
		}
		*l.out = cs
	}
	return p, nil
}

// Packages returns the installed packages, implementing index.LocalDB.
func (s *Snapshot) Packages() []*model.Package {
	return s.installed
}

// Syncs returns the sync databases in priority order.
func (s *Snapshot) Syncs() []index.SyncDB {
	out := make([]index.SyncDB, len(s.repos))
	for i, r := range s.repos {
		out[i] = r
	}
	return out
}

// Lookup answers remote queries, implementing index.RemoteSource.
func (s *Snapshot) Lookup(ctx context.Context, name string) ([]*model.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*model.Package
	for _, p := range s.remote {
		if p.Name == name {
			out = append(out, p)
			continue
		}
		for _, prov := range p.Provides {
			if prov.Name == name {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// Index builds a package index over the snapshot.
func (s *Snapshot) Index(opts index.Options) *index.Index {
	return index.New(s, s.Syncs(), s, opts)
}
