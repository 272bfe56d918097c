package extern

import (
	"context"

	"github.com/specialistvlad/pacforge/internal/orchestrator"
)

// PacmanTransactor runs package manager transactions, elevated through Sudo
// when it is set.
type PacmanTransactor struct {
	Runner Runner
	Pacman string
	Sudo   string
}

func (t *PacmanTransactor) run(ctx context.Context, args ...string) error {
	name := t.Pacman
	if t.Sudo != "" {
		args = append([]string{t.Pacman}, args...)
		name = t.Sudo
	}
	_, err := t.Runner.Run(ctx, "", name, args...)
	return err
}

// Install implements orchestrator.Transactor.
func (t *PacmanTransactor) Install(ctx context.Context, req orchestrator.InstallRequest) error {
	if len(req.Packages) > 0 {
		args := append([]string{"-S", "--needed", "--noconfirm"}, req.Packages...)
		if err := t.run(ctx, args...); err != nil {
			return err
		}
	}
	if len(req.Files) > 0 {
		args := append([]string{"-U", "--noconfirm"}, req.Files...)
		if err := t.run(ctx, args...); err != nil {
			return err
		}
	}
	if len(req.AsDeps) > 0 {
		args := append([]string{"-D", "--asdeps"}, req.AsDeps...)
		if err := t.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// Remove implements orchestrator.Transactor.
func (t *PacmanTransactor) Remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return t.run(ctx, append([]string{"-Rns", "--noconfirm"}, names...)...)
}
