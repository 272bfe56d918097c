package upgrade

import (
	"strconv"
	"strings"
)

type numRange struct{ lo, hi int }

func (r numRange) contains(n int) bool { return n >= r.lo && n <= r.hi }

// NumberMenu is a parsed selection such as "1 2 3", "1-3", "^4" or "core".
// Words select every entry from the repository of that name; a leading ^
// negates a number, range or word.
type NumberMenu struct {
	inRange, exRange []numRange
	inWord, exWord   []string
}

// ParseNumberMenu parses user input. Tokens are separated by spaces or
// commas; malformed numeric tokens are treated as words.
func ParseNumberMenu(input string) NumberMenu {
	var m NumberMenu
	fields := strings.FieldsFunc(input, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	for _, tok := range fields {
		exclude := strings.HasPrefix(tok, "^")
		tok = strings.TrimPrefix(tok, "^")
		if tok == "" {
			continue
		}
		if r, ok := parseRange(tok); ok {
			if exclude {
				m.exRange = append(m.exRange, r)
			} else {
				m.inRange = append(m.inRange, r)
			}
			continue
		}
		if exclude {
			m.exWord = append(m.exWord, tok)
		} else {
			m.inWord = append(m.inWord, tok)
		}
	}
	return m
}

func parseRange(tok string) (numRange, bool) {
	lo, hi, isRange := strings.Cut(tok, "-")
	a, err := strconv.Atoi(lo)
	if err != nil {
		return numRange{}, false
	}
	if !isRange {
		return numRange{a, a}, true
	}
	b, err := strconv.Atoi(hi)
	if err != nil {
		return numRange{}, false
	}
	if a > b {
		a, b = b, a
	}
	return numRange{a, b}, true
}

// Contains reports whether entry number n from repository word is selected.
// A menu of only negations selects everything it does not negate.
func (m NumberMenu) Contains(n int, word string) bool {
	for _, w := range m.inWord {
		if w == word {
			return true
		}
	}
	for _, w := range m.exWord {
		if w == word {
			return false
		}
	}
	for _, r := range m.exRange {
		if r.contains(n) {
			return false
		}
	}
	for _, r := range m.inRange {
		if r.contains(n) {
			return true
		}
	}
	return len(m.inRange) == 0 && len(m.inWord) == 0
}
