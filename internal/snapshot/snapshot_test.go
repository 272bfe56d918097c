package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/pacforge/internal/index"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
installed:
  - {name: glibc, version: 2.39-1, reason: dependency}
  - {name: yay, version: 12.0-1}
repos:
  - name: core
    packages:
      - {name: gcc, version: 14.1-1, depends: [glibc]}
  - name: extra
    packages:
      - {name: go, version: 2:1.22.2-1}
remote:
  - name: yay
    base: yay
    version: 12.3-1
    depends: ["pacman>=6.1"]
    makedepends: [go]
  - {name: yay-bin, version: 12.3-1, provides: [yay=12.3], conflicts: [yay]}
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, s.Packages(), 2)
	assert.Equal(t, model.ReasonDependency, s.Packages()[0].InstallReason)
	assert.Equal(t, model.ReasonExplicit, s.Packages()[1].InstallReason)
	assert.Equal(t, model.Installed, s.Packages()[0].Source)

	syncs := s.Syncs()
	require.Len(t, syncs, 2)
	assert.Equal(t, "core", syncs[0].Name())
	gcc := syncs[0].Packages()[0]
	assert.Equal(t, model.BinaryRepo, gcc.Source)
	assert.Equal(t, "core", gcc.Repo)
	assert.Equal(t, []model.Constraint{{Name: "glibc"}}, gcc.RuntimeDeps)

	found, err := s.Lookup(context.Background(), "yay")
	require.NoError(t, err)
	require.Len(t, found, 2, "name and provides matches")
	assert.Equal(t, model.RemoteSource, found[0].Source)
	assert.Equal(t, "pacman>=6.1", found[0].RuntimeDeps[0].String())
	assert.Equal(t, "go", found[0].BuildDeps[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"missing name":    "installed: [{version: 1-1}]",
		"missing version": "remote: [{name: foo}]",
		"bad reason":      "installed: [{name: foo, version: 1, reason: maybe}]",
		"bad constraint":  "remote: [{name: foo, version: 1, depends: ['>=2']}]",
		"duplicate repo":  "repos: [{name: core}, {name: core}]",
		"unnamed repo":    "repos: [{packages: []}]",
		"not yaml":        "installed: {",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	idx := s.Index(index.Options{})
	cands, err := idx.Lookup(context.Background(), "yay")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, model.Installed, cands[0].Source)
	assert.Equal(t, model.RemoteSource, cands[1].Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading snapshot")
}

func TestLookup_Cancelled(t *testing.T) {
	s, err := Parse([]byte(sample))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Lookup(ctx, "yay")
	assert.ErrorIs(t, err, context.Canceled)
}
