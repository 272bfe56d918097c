package upgrade

import "strings"

// Entry is one numbered line of the upgrade menu.
type Entry struct {
	Number int
	Upgrade
}

// Selection is the outcome of applying the user's exclusions.
type Selection struct {
	RepoKeep   []string
	RepoSkip   []string
	RemoteKeep []string
	RemoteSkip []string
}

// Targets returns every kept package name, repo first.
func (s Selection) Targets() []string {
	out := append([]string(nil), s.RepoKeep...)
	return append(out, s.RemoteKeep...)
}

// Entries numbers the set for display. Devel entries come first from 1,
// then remote, then repo; within each group the last entry has the lowest
// number, so the list reads from highest to lowest.
func (s *Set) Entries() []Entry {
	var out []Entry
	add := func(ups []Upgrade, offset int) {
		for i, u := range ups {
			out = append(out, Entry{Number: offset + len(ups) - i, Upgrade: u})
		}
	}
	add(s.Repo, len(s.Devel)+len(s.Remote))
	add(s.Remote, len(s.Devel))
	add(s.Devel, 0)
	return out
}

// Select splits the set into kept and skipped names. Without the menu, or
// with empty input, everything is kept; otherwise input names the entries
// to exclude.
func (s *Set) Select(menu bool, input string) Selection {
	var sel Selection
	input = strings.TrimSpace(input)
	nm := ParseNumberMenu(input)
	skip := func(e Entry) bool {
		return menu && input != "" && nm.Contains(e.Number, e.Repo)
	}

	for _, e := range s.Entries() {
		switch {
		case e.Repo == RemoteRepo || e.Repo == DevelRepo:
			if skip(e) {
				sel.RemoteSkip = append(sel.RemoteSkip, e.Name)
			} else {
				sel.RemoteKeep = append(sel.RemoteKeep, e.Name)
			}
		default:
			if skip(e) {
				sel.RepoSkip = append(sel.RepoSkip, e.Name)
			} else {
				sel.RepoKeep = append(sel.RepoKeep, e.Name)
			}
		}
	}
	return sel
}
