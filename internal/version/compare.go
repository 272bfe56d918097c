package version

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// compareCacheSize bounds the memoized comparison results. A resolution run
// compares the same few hundred versions over and over while sorting
// candidates, so a small cache absorbs nearly all of the work.
const compareCacheSize = 4096

var compareCache *lru.Cache[[2]string, int]

func init() {
	c, err := lru.New[[2]string, int](compareCacheSize)
	if err != nil {
		panic(err)
	}
	compareCache = c
}

// Compare orders two full version strings. It returns -1 if a is older than
// b, 1 if a is newer and 0 if they are equivalent. Releases take part in the
// comparison only when both sides carry one, so "2.0" equals "2.0-3".
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	key := [2]string{a, b}
	if r, ok := compareCache.Get(key); ok {
		return r
	}

	r := compareParsed(Parse(a), Parse(b))
	compareCache.Add(key, r)
	return r
}

func compareParsed(a, b Version) int {
	if r := Segments(a.Epoch, b.Epoch); r != 0 {
		return r
	}
	if r := Segments(a.Version, b.Version); r != 0 {
		return r
	}
	if a.HasRelease() && b.HasRelease() {
		return Segments(a.Release, b.Release)
	}
	return 0
}

// Segments compares two version fragments segment by segment.
func Segments(a, b string) int {
	if a == b {
		return 0
	}

	one, two := 0, 0
	for one < len(a) && two < len(b) {
		start1, start2 := one, two
		for one < len(a) && !isAlnum(a[one]) {
			one++
		}
		for two < len(b) && !isAlnum(b[two]) {
			two++
		}
		if one >= len(a) || two >= len(b) {
			break
		}

		// Longer separator runs sort later.
		if sep1, sep2 := one-start1, two-start2; sep1 != sep2 {
			if sep1 < sep2 {
				return -1
			}
			return 1
		}

		end1, end2 := one, two
		numeric := isDigit(a[one])
		if numeric {
			for end1 < len(a) && isDigit(a[end1]) {
				end1++
			}
			for end2 < len(b) && isDigit(b[end2]) {
				end2++
			}
		} else {
			for end1 < len(a) && isAlpha(a[end1]) {
				end1++
			}
			for end2 < len(b) && isAlpha(b[end2]) {
				end2++
			}
		}

		seg1, seg2 := a[one:end1], b[two:end2]
		if seg2 == "" {
			// Segment types differ: numbers are newer than letters.
			if numeric {
				return 1
			}
			return -1
		}

		if numeric {
			seg1 = strings.TrimLeft(seg1, "0")
			seg2 = strings.TrimLeft(seg2, "0")
			if len(seg1) != len(seg2) {
				if len(seg1) > len(seg2) {
					return 1
				}
				return -1
			}
		}
		if r := strings.Compare(seg1, seg2); r != 0 {
			return r
		}

		one, two = end1, end2
	}

	if one >= len(a) && two >= len(b) {
		return 0
	}

	// A leftover separator counts as a newer segment. A remaining alphabetic
	// tail never beats an exhausted string.
	if (one >= len(a) && !isAlpha(b[two])) || (one < len(a) && isAlpha(a[one])) {
		return -1
	}
	return 1
}
