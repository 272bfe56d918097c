package extern

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
)

// DefaultRemoteURL maps a package base to its recipe repository.
func DefaultRemoteURL(base string) string {
	return "https://aur.archlinux.org/" + base + ".git"
}

// GitFetcher clones or updates recipe repositories under CloneDir, one
// directory per package base, reused across runs.
type GitFetcher struct {
	Runner   Runner
	Git      string
	CloneDir string
	URL      func(base string) string
}

func (f *GitFetcher) url(base string) string {
	if f.URL != nil {
		return f.URL(base)
	}
	return DefaultRemoteURL(base)
}

// Fetch implements orchestrator.Fetcher.
func (f *GitFetcher) Fetch(ctx context.Context, base string) (string, error) {
	dir := filepath.Join(f.CloneDir, base)
	logger := ctxlog.FromContext(ctx).With("base", base, "dir", dir)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		logger.Debug("Updating existing clone.")
		if _, err := f.Runner.Run(ctx, dir, f.Git, "pull", "--ff-only", "--quiet"); err != nil {
			return "", err
		}
		return dir, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(f.CloneDir, 0o755); err != nil {
		return "", err
	}
	logger.Debug("Cloning recipe.")
	if _, err := f.Runner.Run(ctx, f.CloneDir, f.Git, "clone", "--quiet", f.url(base), base); err != nil {
		return "", err
	}
	return dir, nil
}

// Head returns the commit checked out in the clone of base.
func (f *GitFetcher) Head(ctx context.Context, base string) (string, error) {
	out, err := f.Runner.Run(ctx, filepath.Join(f.CloneDir, base), f.Git, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
