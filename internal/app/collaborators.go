package app

import (
	"io"
	"path/filepath"

	"github.com/specialistvlad/pacforge/internal/config"
	"github.com/specialistvlad/pacforge/internal/extern"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
)

// ProcessCollaborators builds the collaborators that drive git, makepkg and
// pacman, prompting on in and out. With noConfirm every prompt takes its
// default and recipes are not shown for review.
func ProcessCollaborators(cfg *config.Config, in io.Reader, out io.Writer, noConfirm bool) Collaborators {
	runner := extern.ExecRunner{Stderr: out}
	term := extern.NewTerminal(in, out)
	term.NoConfirm = noConfirm

	fetcher := &extern.GitFetcher{Runner: runner, Git: cfg.Tools.Git, CloneDir: cfg.CloneDir}
	collab := Collaborators{
		Fetcher:    fetcher,
		Reviewer:   term,
		Builder:    &extern.MakepkgBuilder{Runner: runner, Makepkg: cfg.Tools.Makepkg, Check: cfg.Policy.BuildTests},
		Transactor: &extern.PacmanTransactor{Runner: runner, Pacman: cfg.Tools.Pacman, Sudo: cfg.Tools.Sudo},
		Chooser:    term,
		Menu:       term,
		Devel: &extern.DevelChecker{
			Runner:      runner,
			Git:         cfg.Tools.Git,
			Path:        filepath.Join(cfg.CloneDir, "devel.yaml"),
			Concurrency: cfg.FetchConcurrency,
		},
	}
	if noConfirm {
		collab.Reviewer = orchestrator.AcceptAll{}
	}
	return collab
}
