package extern

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/upgrade"
)

// Terminal asks the user questions on a line-oriented terminal. It serves
// as the recipe reviewer, the provider chooser and the upgrade menu.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	// NoConfirm answers every question with its default.
	NoConfirm bool
}

// NewTerminal creates a Terminal reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// readLine returns the next input line. End of input reads as empty.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.NoConfirm {
		fmt.Fprintln(t.out)
		return "", nil
	}
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. def is the answer for empty input.
func (t *Terminal) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(t.out, ":: %s %s ", question, hint)
	line, err := t.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Review implements orchestrator.Reviewer. It prints the recipe's build
// script and asks whether to continue; declining aborts the run.
func (t *Terminal) Review(ctx context.Context, base, dir string) error {
	script, err := os.ReadFile(filepath.Join(dir, "PKGBUILD"))
	if err != nil {
		return fmt.Errorf("reading recipe for %s: %w", base, err)
	}
	t.mu.Lock()
	fmt.Fprintf(t.out, ":: %s/PKGBUILD\n%s\n", base, script)
	t.mu.Unlock()

	ok, err := t.Confirm(ctx, "Proceed with "+base+"?", true)
	if err != nil {
		return err
	}
	if !ok {
		return model.Errorf(model.ErrUserAbort, base, "recipe rejected")
	}
	return nil
}

// ChooseProvider implements resolver.ProviderChooser. Empty input picks the
// first candidate.
func (t *Terminal) ChooseProvider(ctx context.Context, c model.Constraint, candidates []*model.Package) (*model.Package, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, ":: There are %d providers available for %s:\n", len(candidates), c)
	for i, p := range candidates {
		repo := p.Repo
		if p.Source == model.RemoteSource {
			repo = upgrade.RemoteRepo
		}
		fmt.Fprintf(t.out, "   %d) %s/%s %s\n", i+1, repo, p.Name, p.Version)
	}
	for {
		fmt.Fprintf(t.out, "Enter a number (default=1): ")
		line, err := t.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return candidates[0], nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(candidates) {
			return candidates[n-1], nil
		}
		fmt.Fprintf(t.out, "invalid number: %s\n", line)
	}
}

// UpgradeMenu prints the numbered upgrade list and returns the user's
// exclusion input.
func (t *Terminal) UpgradeMenu(ctx context.Context, set *upgrade.Set) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range set.Entries() {
		fmt.Fprintf(t.out, "%3d %s/%s %s -> %s\n", e.Number, e.Repo, e.Name, e.Old, e.New)
	}
	fmt.Fprintf(t.out, ":: Packages to exclude (eg: 1 2 3, 1-3, ^4 or repo name): ")
	return t.readLine(ctx)
}
