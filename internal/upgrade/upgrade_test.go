package upgrade

import (
	"context"
	"testing"

	"github.com/specialistvlad/pacforge/internal/index"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDB struct {
	name string
	pkgs []*model.Package
}

func (d *memDB) Name() string               { return d.name }
func (d *memDB) Packages() []*model.Package { return d.pkgs }

type memRemote []*model.Package

func (m memRemote) Lookup(_ context.Context, name string) ([]*model.Package, error) {
	var out []*model.Package
	for _, p := range m {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeChecker struct {
	outdated []string
	seen     []string
}

func (f *fakeChecker) Outdated(_ context.Context, pkgs []*model.Package) ([]string, error) {
	for _, p := range pkgs {
		f.seen = append(f.seen, p.Name)
	}
	return f.outdated, nil
}

func pkg(name, ver string, src model.Source, repo string) *model.Package {
	return &model.Package{Name: name, Version: ver, Source: src, Repo: repo}
}

func testIndex() *index.Index {
	local := &memDB{pkgs: []*model.Package{
		pkg("zlib", "1.3-1", model.Installed, ""),
		pkg("bash", "5.1-1", model.Installed, ""),
		pkg("firefox", "120-1", model.Installed, ""),
		pkg("yay", "12.0-1", model.Installed, ""),
		pkg("paru-git", "2.0.r1-1", model.Installed, ""),
		pkg("neovim-git", "0.10.r5-1", model.Installed, ""),
		pkg("stale", "1-1", model.Installed, ""),
		pkg("orphan", "1-1", model.Installed, ""),
	}}
	core := &memDB{name: "core", pkgs: []*model.Package{
		pkg("zlib", "1.3.1-1", model.BinaryRepo, "core"),
		pkg("bash", "5.2-1", model.BinaryRepo, "core"),
	}}
	extra := &memDB{name: "extra", pkgs: []*model.Package{
		pkg("firefox", "121-1", model.BinaryRepo, "extra"),
	}}
	remote := memRemote{
		pkg("yay", "12.3-1", model.RemoteSource, ""),
		pkg("paru-git", "2.0.r9-1", model.RemoteSource, ""),
		pkg("neovim-git", "0.10.r5-1", model.RemoteSource, ""),
		pkg("stale", "1-1", model.RemoteSource, ""),
	}
	return index.New(local, []index.SyncDB{core, extra}, remote, index.Options{})
}

func names(ups []Upgrade) []string {
	var out []string
	for _, u := range ups {
		out = append(out, u.Name)
	}
	return out
}

func TestDiscover(t *testing.T) {
	checker := &fakeChecker{outdated: []string{"paru-git", "neovim-git", "paru-git"}}
	set, err := Discover(context.Background(), testIndex(), Options{
		Policy:  resolver.Policy{Mode: resolver.ModeAny, Ignore: []string{"firefox"}},
		Devel:   true,
		Checker: checker,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bash", "zlib"}, names(set.Repo), "sorted by repo priority then name")
	assert.Equal(t, []string{"yay"}, names(set.Remote), "devel upgrades leave the remote list")
	assert.Equal(t, []string{"neovim-git", "paru-git"}, names(set.Devel))
	assert.Equal(t, []string{"firefox"}, names(set.Ignored))
	assert.ElementsMatch(t, []string{"paru-git", "neovim-git"}, checker.seen)
	assert.Equal(t, Upgrade{Name: "yay", Repo: RemoteRepo, Old: "12.0-1", New: "12.3-1"}, set.Remote[0])
}

func TestDiscover_Modes(t *testing.T) {
	set, err := Discover(context.Background(), testIndex(), Options{Policy: resolver.Policy{Mode: resolver.ModeRepo}, Devel: true, Checker: &fakeChecker{outdated: []string{"paru-git"}}})
	require.NoError(t, err)
	assert.Len(t, set.Repo, 3)
	assert.Empty(t, set.Remote)
	assert.Empty(t, set.Devel)

	set, err = Discover(context.Background(), testIndex(), Options{Policy: resolver.Policy{Mode: resolver.ModeRemote}})
	require.NoError(t, err)
	assert.Empty(t, set.Repo)
	assert.Equal(t, []string{"paru-git", "yay"}, sortedNames(set.Remote))
}

func sortedNames(ups []Upgrade) []string {
	out := names(ups)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func sampleSet() *Set {
	return &Set{
		Repo: []Upgrade{
			{Name: "bash", Repo: "core"},
			{Name: "zlib", Repo: "core"},
			{Name: "firefox", Repo: "extra"},
		},
		Remote: []Upgrade{{Name: "yay", Repo: RemoteRepo}, {Name: "spotify", Repo: RemoteRepo}},
		Devel:  []Upgrade{{Name: "paru-git", Repo: DevelRepo}},
	}
}

func TestEntries_Numbering(t *testing.T) {
	got := map[string]int{}
	for _, e := range sampleSet().Entries() {
		got[e.Name] = e.Number
	}
	assert.Equal(t, map[string]int{
		"paru-git": 1,
		"spotify":  2,
		"yay":      3,
		"firefox":  4,
		"zlib":     5,
		"bash":     6,
	}, got)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		menu  bool
		input string
		want  Selection
	}{
		{
			name: "no menu keeps all",
			input: "1-6",
			want: Selection{
				RepoKeep:   []string{"bash", "zlib", "firefox"},
				RemoteKeep: []string{"yay", "spotify", "paru-git"},
			},
		},
		{
			name: "empty input keeps all",
			menu: true,
			input: "   ",
			want: Selection{
				RepoKeep:   []string{"bash", "zlib", "firefox"},
				RemoteKeep: []string{"yay", "spotify", "paru-git"},
			},
		},
		{
			name:  "numbers and ranges",
			menu:  true,
			input: "1 5-6",
			want: Selection{
				RepoKeep:   []string{"firefox"},
				RepoSkip:   []string{"bash", "zlib"},
				RemoteKeep: []string{"yay", "spotify"},
				RemoteSkip: []string{"paru-git"},
			},
		},
		{
			name:  "repository word",
			menu:  true,
			input: "core",
			want: Selection{
				RepoKeep:   []string{"firefox"},
				RepoSkip:   []string{"bash", "zlib"},
				RemoteKeep: []string{"yay", "spotify", "paru-git"},
			},
		},
		{
			name:  "negation excludes everything else",
			menu:  true,
			input: "^4",
			want: Selection{
				RepoKeep:   []string{"firefox"},
				RepoSkip:   []string{"bash", "zlib"},
				RemoteSkip: []string{"yay", "spotify", "paru-git"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleSet().Select(tt.menu, tt.input))
		})
	}
}

func TestNumberMenu(t *testing.T) {
	m := ParseNumberMenu("1,3-4 ^2 aur ^devel 9-7")
	assert.True(t, m.Contains(1, "core"))
	assert.False(t, m.Contains(2, "core"))
	assert.True(t, m.Contains(4, "core"))
	assert.True(t, m.Contains(8, "core"), "reversed ranges are normalized")
	assert.True(t, m.Contains(20, "aur"))
	assert.False(t, m.Contains(5, "devel"))
	assert.False(t, m.Contains(5, "core"))

	assert.True(t, ParseNumberMenu("").Contains(1, "core"))
}

func TestSelectionTargets(t *testing.T) {
	sel := Selection{RepoKeep: []string{"a"}, RemoteKeep: []string{"b"}}
	assert.Equal(t, []string{"a", "b"}, sel.Targets())
}
