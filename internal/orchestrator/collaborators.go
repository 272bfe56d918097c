package orchestrator

import (
	"context"

	"github.com/specialistvlad/pacforge/internal/model"
	"golang.org/x/sync/semaphore"
)

// Fetcher retrieves the build recipe of a package base and returns the
// local directory holding it.
type Fetcher interface {
	Fetch(ctx context.Context, base string) (dir string, err error)
}

// Reviewer presents a fetched recipe for inspection. Returning an error
// wrapping model.ErrUserAbort aborts the whole remaining plan.
type Reviewer interface {
	Review(ctx context.Context, base, dir string) error
}

// BuildRequest describes one source batch build.
type BuildRequest struct {
	Base     string
	Dir      string
	Packages []*model.Package
}

// Builder runs the external build tool and returns the built package files.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) (files []string, err error)
}

// InstallRequest describes one install transaction.
type InstallRequest struct {
	Label string
	// Packages names sync packages to install, for repo batches.
	Packages []string
	// Files lists built package files, for source batches.
	Files []string
	// AsDeps names the packages to record with the dependency install reason.
	AsDeps []string
}

// Transactor drives the host package manager.
type Transactor interface {
	Install(ctx context.Context, req InstallRequest) error
	Remove(ctx context.Context, names []string) error
}

// TxLock guards the host package database. Release must be called on every
// exit path.
type TxLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Lock is a TxLock backed by a weighted semaphore of size one.
type Lock struct {
	sem *semaphore.Weighted
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

// AcceptAll is a Reviewer that approves every recipe.
type AcceptAll struct{}

func (AcceptAll) Review(context.Context, string, string) error { return nil }
