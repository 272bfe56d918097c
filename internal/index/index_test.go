package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	name string
	pkgs []*model.Package
}

func (db *fakeDB) Name() string               { return db.name }
func (db *fakeDB) Packages() []*model.Package { return db.pkgs }

type fakeRemote struct {
	mu    sync.Mutex
	pkgs  []*model.Package
	calls map[string]*atomic.Int32
	err   error
}

func (r *fakeRemote) Lookup(_ context.Context, name string) ([]*model.Package, error) {
	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]*atomic.Int32)
	}
	if r.calls[name] == nil {
		r.calls[name] = &atomic.Int32{}
	}
	counter := r.calls[name]
	r.mu.Unlock()
	counter.Add(1)

	if r.err != nil {
		return nil, r.err
	}
	var out []*model.Package
	for _, p := range r.pkgs {
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

func (r *fakeRemote) callCount(name string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls[name] == nil {
		return 0
	}
	return r.calls[name].Load()
}

func pkg(name, ver string, src model.Source, provides ...string) *model.Package {
	p := &model.Package{Name: name, Version: ver, Source: src}
	for _, s := range provides {
		p.Provides = append(p.Provides, model.MustParseConstraint(s))
	}
	return p
}

func newTestIndex(remote RemoteSource) *Index {
	local := &fakeDB{pkgs: []*model.Package{
		pkg("glibc", "2.39-1", model.Installed),
		pkg("bash", "5.2-1", model.Installed, "sh"),
	}}
	core := &fakeDB{name: "core", pkgs: []*model.Package{
		pkg("glibc", "2.40-1", model.BinaryRepo),
		pkg("bash", "5.2-2", model.BinaryRepo, "sh"),
	}}
	extra := &fakeDB{name: "extra", pkgs: []*model.Package{
		pkg("jre-openjdk", "21.0.2-1", model.BinaryRepo, "java-runtime=21"),
		pkg("jre17-openjdk", "17.0.10-1", model.BinaryRepo, "java-runtime=17"),
		pkg("glibc", "2.41-1", model.BinaryRepo),
	}}
	return New(local, []SyncDB{core, extra}, remote, Options{})
}

func TestLookupOrdersBySourceThenVersion(t *testing.T) {
	remote := &fakeRemote{pkgs: []*model.Package{
		pkg("glibc", "2.38-1", model.RemoteSource),
		pkg("glibc", "2.42-1", model.RemoteSource),
	}}
	idx := newTestIndex(remote)

	got, err := idx.Lookup(context.Background(), "glibc")
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, model.Installed, got[0].Source)
	assert.Equal(t, "2.41-1", got[1].Version)
	assert.Equal(t, "2.40-1", got[2].Version)
	assert.Equal(t, "2.42-1", got[3].Version)
	assert.Equal(t, "2.38-1", got[4].Version)
}

func TestLookupNotFound(t *testing.T) {
	idx := newTestIndex(&fakeRemote{})
	_, err := idx.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrPackageNotFound)
}

func TestSatisfiersMatchProvides(t *testing.T) {
	remote := &fakeRemote{pkgs: []*model.Package{
		pkg("jdk-temurin", "21.0.1-1", model.RemoteSource, "java-runtime=21"),
	}}
	idx := newTestIndex(remote)
	ctx := context.Background()

	got, err := idx.Satisfiers(ctx, model.MustParseConstraint("java-runtime>=17"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "jre-openjdk", got[0].Name)
	assert.Equal(t, "jre17-openjdk", got[1].Name)
	assert.Equal(t, "jdk-temurin", got[2].Name)

	got, err = idx.Satisfiers(ctx, model.MustParseConstraint("java-runtime>=20"))
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = idx.Satisfiers(ctx, model.MustParseConstraint("sh"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.Installed, got[0].Source)

	got, err = idx.Satisfiers(ctx, model.MustParseConstraint("missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInstalledSatisfier(t *testing.T) {
	idx := newTestIndex(nil)

	assert.Equal(t, "bash", idx.InstalledSatisfier(model.MustParseConstraint("sh")).Name)
	assert.Equal(t, "glibc", idx.InstalledSatisfier(model.MustParseConstraint("glibc>=2.39")).Name)
	assert.Nil(t, idx.InstalledSatisfier(model.MustParseConstraint("glibc>=2.40")))
	assert.Nil(t, idx.InstalledSatisfier(model.MustParseConstraint("zsh")))
	assert.Len(t, idx.InstalledPackages(), 2)
	assert.NotNil(t, idx.Installed("bash"))
}

func TestSyncPackageRespectsRepoPriority(t *testing.T) {
	idx := newTestIndex(nil)
	p := idx.SyncPackage("glibc")
	require.NotNil(t, p)
	assert.Equal(t, "2.40-1", p.Version)
	assert.Equal(t, 0, idx.RepoPriority("core"))
	assert.Equal(t, 1, idx.RepoPriority("extra"))
	assert.Equal(t, -1, idx.RepoPriority("multilib"))
	assert.False(t, idx.HasRemote())
}

func TestRemoteLookupsAreCachedForTheRun(t *testing.T) {
	remote := &fakeRemote{pkgs: []*model.Package{pkg("yay", "12.3-1", model.RemoteSource)}}
	idx := newTestIndex(remote)
	ctx := context.Background()

	require.NoError(t, idx.Prefetch(ctx, []string{"yay", "yay", "paru"}))
	for i := 0; i < 3; i++ {
		_, err := idx.Lookup(ctx, "yay")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), remote.callCount("yay"))
	assert.Equal(t, int32(1), remote.callCount("paru"))

	// Backing data changing mid-run is invisible to the index.
	remote.mu.Lock()
	remote.pkgs = append(remote.pkgs, pkg("yay", "13.0-1", model.RemoteSource))
	remote.mu.Unlock()
	got, err := idx.Lookup(ctx, "yay")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "12.3-1", got[0].Version)
}

func TestRemoteFailuresAreNotCached(t *testing.T) {
	remote := &fakeRemote{err: errors.New("rpc unavailable")}
	idx := newTestIndex(remote)

	_, err := idx.Satisfiers(context.Background(), model.MustParseConstraint("yay"))
	require.ErrorContains(t, err, "rpc unavailable")

	remote.mu.Lock()
	remote.err = nil
	remote.pkgs = []*model.Package{pkg("yay", "12.3-1", model.RemoteSource)}
	remote.mu.Unlock()

	got, err := idx.Satisfiers(context.Background(), model.MustParseConstraint("yay"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
