package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/pacforge/internal/config"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
	"github.com/specialistvlad/pacforge/internal/planner"
	"github.com/specialistvlad/pacforge/internal/testutil"
	"github.com/specialistvlad/pacforge/internal/upgrade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
installed:
  - {name: glibc, version: 2.39-1, reason: dependency}
  - {name: old, version: 1.0-1}
  - {name: foo-git, version: r1.abc-1}
repos:
  - name: core
    packages:
      - {name: glibc, version: 2.39-1}
      - {name: old, version: 1.1-1}
  - name: extra
    packages:
      - {name: go, version: 2:1.22.2-1, depends: [glibc]}
remote:
  - {name: yay, version: 12.3-1, depends: [glibc], makedepends: [go]}
  - {name: foo-git, version: r2.def-1}
  - {name: broken, version: 1-1, depends: [nothere]}
`

// --- fakes ---

type calls struct {
	mu   sync.Mutex
	list []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, s)
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.list...)
}

type fakeFetcher struct{ c *calls }

func (f *fakeFetcher) Fetch(_ context.Context, base string) (string, error) {
	f.c.add("fetch " + base)
	return "/clone/" + base, nil
}

func (f *fakeFetcher) Head(_ context.Context, base string) (string, error) {
	return "commit-" + base, nil
}

type fakeBuilder struct{ c *calls }

func (b *fakeBuilder) Build(_ context.Context, req orchestrator.BuildRequest) ([]string, error) {
	b.c.add("build " + req.Base)
	var files []string
	for _, p := range req.Packages {
		files = append(files, req.Dir+"/"+p.Name+".pkg.tar.zst")
	}
	return files, nil
}

type fakeTransactor struct{ c *calls }

func (t *fakeTransactor) Install(_ context.Context, req orchestrator.InstallRequest) error {
	t.c.add("install " + req.Label)
	return nil
}

func (t *fakeTransactor) Remove(_ context.Context, names []string) error {
	t.c.add("remove " + strings.Join(names, ","))
	return nil
}

type fakeDevel struct {
	mu       sync.Mutex
	recorded map[string]string
}

func (d *fakeDevel) Outdated(_ context.Context, pkgs []*model.Package) ([]string, error) {
	return nil, nil
}

func (d *fakeDevel) Record(commit string, names ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recorded == nil {
		d.recorded = map[string]string{}
	}
	for _, n := range names {
		d.recorded[n] = commit
	}
	return nil
}

type fakeMenu struct {
	input string
	shown *upgrade.Set
}

func (m *fakeMenu) UpgradeMenu(_ context.Context, set *upgrade.Set) (string, error) {
	m.shown = set
	return m.input, nil
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, *calls, *fakeDevel) {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{"snapshot.yaml": fixture})
	cfg := config.Default()
	cfg.SnapshotPath = filepath.Join(dir, "snapshot.yaml")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	c := &calls{}
	devel := &fakeDevel{}
	a, _ := SetupAppTest(t, cfg, Collaborators{
		Fetcher:    &fakeFetcher{c: c},
		Reviewer:   orchestrator.AcceptAll{},
		Builder:    &fakeBuilder{c: c},
		Transactor: &fakeTransactor{c: c},
		Devel:      devel,
	})
	return a, c, devel
}

func TestPlan(t *testing.T) {
	a, c, _ := newTestApp(t, nil)

	p, err := a.Plan(context.Background(), []string{"yay"})
	require.NoError(t, err)
	require.Len(t, p.Plan.Batches, 2)
	assert.Equal(t, planner.RepoBatch, p.Plan.Batches[0].Kind)
	assert.Equal(t, []string{"go"}, p.Plan.Batches[0].Names())
	assert.Equal(t, "yay", p.Plan.Batches[1].Label())
	assert.Equal(t, []string{"go"}, p.Plan.BuildOnly)
	assert.Empty(t, c.all(), "planning has no side effects")

	var out bytes.Buffer
	WritePlan(&out, p)
	assert.Contains(t, out.String(), ":: Batches")
	assert.Contains(t, out.String(), "#1 source yay after [0]")
	assert.Contains(t, out.String(), ":: Build-only: go")
}

func TestPlan_Errors(t *testing.T) {
	a, _, _ := newTestApp(t, nil)

	_, err := a.Plan(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, model.ErrPackageNotFound)

	_, err = a.Plan(context.Background(), []string{"broken"})
	assert.ErrorIs(t, err, model.ErrUnsatisfiedDependency)

	a.cfg.SnapshotPath = ""
	_, err = a.Plan(context.Background(), []string{"yay"})
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestPlan_RepoOnly(t *testing.T) {
	a, _, _ := newTestApp(t, func(cfg *config.Config) { cfg.Policy.Mode = "repo" })
	_, err := a.Plan(context.Background(), []string{"yay"})
	assert.ErrorIs(t, err, model.ErrPackageNotFound)
}

func TestInstall(t *testing.T) {
	a, c, _ := newTestApp(t, func(cfg *config.Config) { cfg.Policy.RemoveBuildOnly = true })

	res, err := a.Install(context.Background(), []string{"yay"})
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err())
	assert.Equal(t, []string{"go", "yay"}, res.Succeeded)
	assert.Equal(t, orchestrator.OutcomeInstalled, res.Targets["yay"])
	assert.Equal(t, []string{"fetch yay", "install go", "build yay", "install yay", "remove go"}, c.all())
	assert.Equal(t, ExitOK, ExitCode(res))

	var out bytes.Buffer
	WriteResult(&out, res)
	assert.Contains(t, out.String(), "installed  yay")
}

func TestInstall_UpToDate(t *testing.T) {
	a, c, _ := newTestApp(t, nil)

	res, err := a.Install(context.Background(), []string{"glibc"})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.OutcomeUpToDate, res.Targets["glibc"])
	assert.Empty(t, c.all())
}

func TestUpgrade(t *testing.T) {
	a, c, devel := newTestApp(t, nil)

	res, err := a.Upgrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.ElementsMatch(t, []string{"old", "foo-git"}, res.Succeeded)
	assert.Contains(t, c.all(), "build foo-git")
	assert.Equal(t, map[string]string{"foo-git": "commit-foo-git"}, devel.recorded)
}

func TestUpgrade_MenuExcludesRepo(t *testing.T) {
	a, c, _ := newTestApp(t, func(cfg *config.Config) { cfg.UpgradeMenu = true })
	menu := &fakeMenu{input: "core"}
	a.collab.Menu = menu

	res, err := a.Upgrade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, menu.shown)
	assert.Len(t, menu.shown.Repo, 1)
	assert.Equal(t, []string{"foo-git"}, res.Succeeded)
	assert.NotContains(t, c.all(), "install old")
}

func TestUpgrade_NothingToDo(t *testing.T) {
	a, _, _ := newTestApp(t, func(cfg *config.Config) { cfg.Policy.Ignore = []string{"old", "foo-git"} })
	res, err := a.Upgrade(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, ExitOK, ExitCode(res))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, ExitCode(&orchestrator.Result{Failed: []orchestrator.Failure{{Label: "x"}}}))
	assert.Equal(t, ExitAborted, ExitCode(&orchestrator.Result{Aborted: true, AbortErr: model.ErrUserAbort}))
	assert.Equal(t, ExitFailure, ExitCode(&orchestrator.Result{Aborted: true, AbortErr: context.Canceled}))
}

func TestHealthAndMetrics(t *testing.T) {
	a, _, _ := newTestApp(t, nil)
	_, err := a.Install(context.Background(), []string{"yay"})
	require.NoError(t, err)

	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	get := func(path string) string {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}
	assert.Equal(t, "OK\n", get("/health"))
	metrics := get("/metrics")
	assert.Contains(t, metrics, "pacforge_batch_outcomes_total")
	assert.Contains(t, metrics, "pacforge_transactions_total")
}

func TestStartClose(t *testing.T) {
	a, _, _ := newTestApp(t, nil)
	addr, err := a.startHealthcheckServer(0)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Close(context.Background()))
	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("warn", "json", &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	l = newLogger("WARNING", "text", &buf)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=WARN")
}
