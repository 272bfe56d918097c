package version

import "strings"

// Version is a parsed "epoch:version-release" string.
type Version struct {
	Epoch   string
	Version string
	Release string
}

// Parse splits s into its epoch, version and release parts. A missing epoch
// is reported as "0"; a missing release is left empty.
func Parse(s string) Version {
	v := Version{Epoch: "0"}

	rest := s
	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	if i < len(rest) && rest[i] == ':' {
		if i > 0 {
			v.Epoch = rest[:i]
		}
		rest = rest[i+1:]
	}

	if dash := strings.LastIndexByte(rest, '-'); dash >= 0 {
		v.Release = rest[dash+1:]
		rest = rest[:dash]
	}
	v.Version = rest
	return v
}

// String reassembles the version, omitting a zero epoch and an empty release.
func (v Version) String() string {
	var sb strings.Builder
	if v.Epoch != "" && v.Epoch != "0" {
		sb.WriteString(v.Epoch)
		sb.WriteByte(':')
	}
	sb.WriteString(v.Version)
	if v.Release != "" {
		sb.WriteByte('-')
		sb.WriteString(v.Release)
	}
	return sb.String()
}

// HasRelease reports whether the version carries an explicit release.
func (v Version) HasRelease() bool {
	return v.Release != ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
