package resolver

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/version"
)

// ProviderKey names one step of the provider tie-break order.
type ProviderKey string

const (
	// KeyExactName prefers a candidate whose own name matches over one that
	// only provides the name.
	KeyExactName ProviderKey = "exact_name"
	// KeySource prefers binary repositories over the remote repository, and
	// higher-priority repositories over lower ones.
	KeySource ProviderKey = "source"
	// KeyVersion prefers the highest version.
	KeyVersion ProviderKey = "version"
	// KeyDiscovery prefers the candidate the index returned first.
	KeyDiscovery ProviderKey = "discovery"
)

// DefaultProviderOrder is exact name, then source, then version, then
// discovery order.
var DefaultProviderOrder = []ProviderKey{KeyExactName, KeySource, KeyVersion, KeyDiscovery}

// ParseProviderOrder validates a configured tie-break order.
func ParseProviderOrder(keys []string) ([]ProviderKey, error) {
	if len(keys) == 0 {
		return DefaultProviderOrder, nil
	}
	seen := make(map[ProviderKey]bool, len(keys))
	out := make([]ProviderKey, 0, len(keys))
	for _, k := range keys {
		key := ProviderKey(k)
		switch key {
		case KeyExactName, KeySource, KeyVersion, KeyDiscovery:
		default:
			return nil, fmt.Errorf("unknown provider order key %q", k)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate provider order key %q", k)
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

// ProviderChooser settles provider ties the configured order leaves open.
// Candidates are passed in discovery order and the returned package must be
// one of them.
type ProviderChooser interface {
	ChooseProvider(ctx context.Context, c model.Constraint, candidates []*model.Package) (*model.Package, error)
}

// ChooserFunc adapts a function to ProviderChooser.
type ChooserFunc func(ctx context.Context, c model.Constraint, candidates []*model.Package) (*model.Package, error)

func (f ChooserFunc) ChooseProvider(ctx context.Context, c model.Constraint, candidates []*model.Package) (*model.Package, error) {
	return f(ctx, c, candidates)
}

type candidate struct {
	pkg   *model.Package
	order int
}

// compareKey returns a negative number when a is preferred over b under key.
func (r *Resolver) compareKey(key ProviderKey, c model.Constraint, a, b candidate) int {
	switch key {
	case KeyExactName:
		return boolRank(a.pkg.Name == c.Name) - boolRank(b.pkg.Name == c.Name)
	case KeySource:
		if d := sourceRank(a.pkg) - sourceRank(b.pkg); d != 0 {
			return d
		}
		if a.pkg.Source == model.BinaryRepo && b.pkg.Source == model.BinaryRepo {
			return r.repoRank(a.pkg) - r.repoRank(b.pkg)
		}
		return 0
	case KeyVersion:
		return -version.Compare(a.pkg.Version, b.pkg.Version)
	case KeyDiscovery:
		return a.order - b.order
	default:
		return 0
	}
}

func (r *Resolver) repoRank(p *model.Package) int {
	prio := r.idx.RepoPriority(p.Repo)
	if prio < 0 {
		return int(^uint(0) >> 1)
	}
	return prio
}

func boolRank(b bool) int {
	if b {
		return 0
	}
	return 1
}

func sourceRank(p *model.Package) int {
	switch p.Source {
	case model.Installed:
		return 0
	case model.BinaryRepo:
		return 1
	default:
		return 2
	}
}

// choose picks one provider among candidates. Non-discovery keys are applied
// in order until one candidate remains. Remaining ties go to the chooser, or
// to discovery order without one.
func (r *Resolver) choose(ctx context.Context, c model.Constraint, pkgs []*model.Package) (*model.Package, error) {
	if len(pkgs) == 1 {
		return pkgs[0], nil
	}

	best := make([]candidate, len(pkgs))
	for i, p := range pkgs {
		best[i] = candidate{pkg: p, order: i}
	}

	for _, key := range r.order {
		if key == KeyDiscovery {
			continue
		}
		best = r.narrow(key, c, best)
		if len(best) == 1 {
			return best[0].pkg, nil
		}
	}

	if r.chooser != nil {
		tied := make([]*model.Package, len(best))
		for i, cand := range best {
			tied[i] = cand.pkg
		}
		picked, err := r.chooser.ChooseProvider(ctx, c, tied)
		if err != nil {
			return nil, err
		}
		for _, p := range tied {
			if p == picked {
				return p, nil
			}
		}
		return nil, fmt.Errorf("provider chooser returned a package outside the candidates for %s", c)
	}

	return best[0].pkg, nil
}

// narrow keeps the candidates that tie for best under key.
func (r *Resolver) narrow(key ProviderKey, c model.Constraint, cands []candidate) []candidate {
	out := []candidate{cands[0]}
	for _, cand := range cands[1:] {
		switch d := r.compareKey(key, c, cand, out[0]); {
		case d < 0:
			out = append(out[:0], cand)
		case d == 0:
			out = append(out, cand)
		}
	}
	return out
}
