// Package index unifies package lookups across installed state, binary
// repository sync databases and the remote source repository.
//
// An Index is a snapshot: local and sync data are copied when the index is
// built, and remote answers are cached for the lifetime of the index, so one
// resolution run sees consistent data even if the backing stores change.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/version"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LocalDB is a read-only view of the installed package database.
type LocalDB interface {
	Packages() []*model.Package
}

// SyncDB is a read-only view of one binary repository sync database.
type SyncDB interface {
	Name() string
	Packages() []*model.Package
}

// RemoteSource answers metadata queries against the remote source
// repository. Lookup returns every record whose name or provides entry
// equals name.
type RemoteSource interface {
	Lookup(ctx context.Context, name string) ([]*model.Package, error)
}

// Options tunes an Index.
type Options struct {
	// RemoteTimeout bounds every remote lookup. Zero means no timeout.
	RemoteTimeout time.Duration
	// PrefetchConcurrency bounds concurrent remote lookups in Prefetch.
	PrefetchConcurrency int
}

type syncRepo struct {
	name     string
	packages []*model.Package
}

// Index is the PackageIndex of a single resolution run.
type Index struct {
	opts Options

	installed   []*model.Package
	installedBy map[string]*model.Package
	repos       []syncRepo
	// capabilities maps every provided name (own name and provides) to the
	// installed and sync packages that declare it.
	capabilities map[string][]*model.Package

	remote      RemoteSource
	remoteMu    sync.RWMutex
	remoteCache map[string][]*model.Package
	flight      singleflight.Group
}

// New snapshots the local and sync databases. remote may be nil when the
// run is restricted to binary repositories.
func New(local LocalDB, syncs []SyncDB, remote RemoteSource, opts Options) *Index {
	if opts.PrefetchConcurrency <= 0 {
		opts.PrefetchConcurrency = 8
	}
	idx := &Index{
		opts:         opts,
		installedBy:  make(map[string]*model.Package),
		capabilities: make(map[string][]*model.Package),
		remote:       remote,
		remoteCache:  make(map[string][]*model.Package),
	}

	if local != nil {
		idx.installed = append([]*model.Package(nil), local.Packages()...)
		for _, p := range idx.installed {
			idx.installedBy[p.Name] = p
			idx.addCapabilities(p)
		}
	}
	for _, db := range syncs {
		repo := syncRepo{name: db.Name(), packages: append([]*model.Package(nil), db.Packages()...)}
		for _, p := range repo.packages {
			idx.addCapabilities(p)
		}
		idx.repos = append(idx.repos, repo)
	}
	return idx
}

func (idx *Index) addCapabilities(p *model.Package) {
	idx.capabilities[p.Name] = append(idx.capabilities[p.Name], p)
	for _, prov := range p.Provides {
		if prov.Name == p.Name {
			continue
		}
		idx.capabilities[prov.Name] = append(idx.capabilities[prov.Name], p)
	}
}

// Lookup returns every candidate record named exactly name, ordered
// Installed, then BinaryRepo, then RemoteSource, each by descending version.
// It fails with model.ErrPackageNotFound when no source knows the name.
func (idx *Index) Lookup(ctx context.Context, name string) ([]*model.Package, error) {
	var out []*model.Package
	if p, ok := idx.installedBy[name]; ok {
		out = append(out, p)
	}

	var repo []*model.Package
	for _, r := range idx.repos {
		for _, p := range r.packages {
			if p.Name == name {
				repo = append(repo, p)
			}
		}
	}
	out = append(out, sortByVersion(repo)...)

	remote, err := idx.remoteLookup(ctx, name)
	if err != nil {
		return nil, err
	}
	var exact []*model.Package
	for _, p := range remote {
		if p.Name == name {
			exact = append(exact, p)
		}
	}
	out = append(out, sortByVersion(exact)...)

	if len(out) == 0 {
		return nil, model.Errorf(model.ErrPackageNotFound, name, "no installed, repo or remote candidate")
	}
	return out, nil
}

// Satisfiers returns the candidates whose own name or provides entries meet
// c, in the same source-then-version order as Lookup. An empty result is not
// an error; callers decide whether the requirement was optional.
func (idx *Index) Satisfiers(ctx context.Context, c model.Constraint) ([]*model.Package, error) {
	var installed, repo []*model.Package
	for _, p := range idx.capabilities[c.Name] {
		if !c.SatisfiedByPackage(p) {
			continue
		}
		if p.Source == model.Installed {
			installed = append(installed, p)
		} else {
			repo = append(repo, p)
		}
	}

	remote, err := idx.remoteLookup(ctx, c.Name)
	if err != nil {
		return nil, err
	}
	var matching []*model.Package
	for _, p := range remote {
		if c.SatisfiedByPackage(p) {
			matching = append(matching, p)
		}
	}

	out := make([]*model.Package, 0, len(installed)+len(repo)+len(matching))
	out = append(out, sortByVersion(installed)...)
	out = append(out, sortByVersion(repo)...)
	out = append(out, sortByVersion(matching)...)
	return out, nil
}

// Installed returns the installed record named name, or nil.
func (idx *Index) Installed(name string) *model.Package {
	return idx.installedBy[name]
}

// InstalledPackages returns every installed record in database order.
func (idx *Index) InstalledPackages() []*model.Package {
	return idx.installed
}

// InstalledSatisfier returns the first installed package meeting c, or nil.
// An installed package with the exact name wins over a provider.
func (idx *Index) InstalledSatisfier(c model.Constraint) *model.Package {
	if p, ok := idx.installedBy[c.Name]; ok && c.SatisfiedByPackage(p) {
		return p
	}
	for _, p := range idx.capabilities[c.Name] {
		if p.Source == model.Installed && c.SatisfiedByPackage(p) {
			return p
		}
	}
	return nil
}

// SyncPackage returns the record named name from the highest-priority sync
// database that carries it, or nil.
func (idx *Index) SyncPackage(name string) *model.Package {
	for _, r := range idx.repos {
		for _, p := range r.packages {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// RepoPriority returns the position of the named sync database, or -1.
func (idx *Index) RepoPriority(repo string) int {
	for i, r := range idx.repos {
		if r.name == repo {
			return i
		}
	}
	return -1
}

// HasRemote reports whether the index can query the remote repository.
func (idx *Index) HasRemote() bool {
	return idx.remote != nil
}

// Prefetch warms the remote cache for names concurrently. Lookups already in
// flight or cached are shared.
func (idx *Index) Prefetch(ctx context.Context, names []string) error {
	if idx.remote == nil || len(names) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.PrefetchConcurrency)
	for _, name := range names {
		g.Go(func() error {
			_, err := idx.remoteLookup(gctx, name)
			return err
		})
	}
	return g.Wait()
}

// remoteLookup queries the remote source once per name for the lifetime of
// the index. Failures are not cached.
func (idx *Index) remoteLookup(ctx context.Context, name string) ([]*model.Package, error) {
	if idx.remote == nil {
		return nil, nil
	}

	idx.remoteMu.RLock()
	cached, ok := idx.remoteCache[name]
	idx.remoteMu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := idx.flight.Do(name, func() (any, error) {
		idx.remoteMu.RLock()
		cached, ok := idx.remoteCache[name]
		idx.remoteMu.RUnlock()
		if ok {
			return cached, nil
		}

		lookupCtx := ctx
		if idx.opts.RemoteTimeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, idx.opts.RemoteTimeout)
			defer cancel()
		}

		ctxlog.FromContext(ctx).Debug("Querying remote repository.", "name", name)
		pkgs, err := idx.remote.Lookup(lookupCtx, name)
		if err != nil {
			return nil, fmt.Errorf("remote lookup %q: %w", name, err)
		}

		idx.remoteMu.Lock()
		idx.remoteCache[name] = pkgs
		idx.remoteMu.Unlock()
		return pkgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Package), nil
}

// sortByVersion orders packages by descending version, keeping the input
// order for equal versions.
func sortByVersion(pkgs []*model.Package) []*model.Package {
	sort.SliceStable(pkgs, func(i, j int) bool {
		return version.Compare(pkgs[i].Version, pkgs[j].Version) > 0
	})
	return pkgs
}
