package extern

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
)

// MakepkgBuilder builds recipes with makepkg. Dependencies are installed
// by earlier batches, so makepkg runs with --nodeps.
type MakepkgBuilder struct {
	Runner  Runner
	Makepkg string
	// Check runs the recipe's check() function.
	Check bool
}

// Build implements orchestrator.Builder.
func (b *MakepkgBuilder) Build(ctx context.Context, req orchestrator.BuildRequest) ([]string, error) {
	logger := ctxlog.FromContext(ctx).With("base", req.Base)

	args := []string{"--force", "--noconfirm", "--nodeps", "--clean"}
	if !b.Check {
		args = append(args, "--nocheck")
	}
	if _, err := b.Runner.Run(ctx, req.Dir, b.Makepkg, args...); err != nil {
		return nil, err
	}

	out, err := b.Runner.Run(ctx, req.Dir, b.Makepkg, "--packagelist")
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(req.Packages))
	for _, p := range req.Packages {
		wanted[p.Name] = true
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if wanted[packageFileName(line)] {
			files = append(files, line)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("makepkg produced no package file for %s", req.Base)
	}
	logger.Debug("Build produced packages.", "files", files)
	return files, nil
}

// packageFileName extracts the package name from a file such as
// /x/foo-bar-1.0-1-x86_64.pkg.tar.zst: everything before the last three
// dash-separated fields.
func packageFileName(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(name, ".pkg.tar"); i >= 0 {
		name = name[:i]
	}
	parts := strings.Split(name, "-")
	if len(parts) < 4 {
		return ""
	}
	return strings.Join(parts[:len(parts)-3], "-")
}
