package extern

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/model"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// DevelState records, per package, the upstream commit its installed build
// was made from.
type DevelState struct {
	Packages map[string]string `yaml:"packages"`
}

// DevelChecker detects version-control packages with new upstream commits
// by comparing git ls-remote output against the recorded state.
type DevelChecker struct {
	Runner Runner
	Git    string
	// Path is the YAML state file.
	Path string
	URL  func(base string) string
	// Concurrency bounds parallel ls-remote calls.
	Concurrency int

	mu    sync.Mutex
	state *DevelState
}

func (d *DevelChecker) load() (*DevelState, error) {
	if d.state != nil {
		return d.state, nil
	}
	st := &DevelState{Packages: map[string]string{}}
	data, err := os.ReadFile(d.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("parsing devel state %s: %w", d.Path, err)
		}
		if st.Packages == nil {
			st.Packages = map[string]string{}
		}
	}
	d.state = st
	return st, nil
}

func (d *DevelChecker) remoteHead(ctx context.Context, base string) (string, error) {
	url := DefaultRemoteURL(base)
	if d.URL != nil {
		url = d.URL(base)
	}
	out, err := d.Runner.Run(ctx, "", d.Git, "ls-remote", url, "HEAD")
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("ls-remote %s: no HEAD", url)
	}
	return fields[0], nil
}

// Outdated implements upgrade.DevelChecker. Packages without a recorded
// commit are not reported.
func (d *DevelChecker) Outdated(ctx context.Context, pkgs []*model.Package) ([]string, error) {
	d.mu.Lock()
	st, err := d.load()
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	known := make(map[string]string, len(st.Packages))
	for k, v := range st.Packages {
		known[k] = v
	}
	d.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	limit := d.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	outdated := make([]bool, len(pkgs))
	for i, p := range pkgs {
		recorded, ok := known[p.Name]
		if !ok {
			logger.Debug("No recorded commit for devel package.", "package", p.Name)
			continue
		}
		g.Go(func() error {
			head, err := d.remoteHead(gctx, p.BaseName())
			if err != nil {
				logger.Warn("Could not check devel package.", "package", p.Name, "error", err)
				return nil
			}
			outdated[i] = head != recorded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for i, p := range pkgs {
		if outdated[i] {
			out = append(out, p.Name)
		}
	}
	return out, nil
}

// Record stores the commit for the named packages and writes the state file.
func (d *DevelChecker) Record(commit string, names ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, err := d.load()
	if err != nil {
		return err
	}
	for _, n := range names {
		st.Packages[n] = commit
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.Path, data, 0o644)
}
