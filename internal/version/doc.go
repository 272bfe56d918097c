// Package version implements the package version ordering used by the host
// package manager: an optional numeric epoch, an upstream version and an
// optional release, written as "epoch:version-release".
//
// Each part is compared segment by segment. Segments are maximal runs of
// digits or letters; separators only matter by their length. A numeric
// segment always beats an alphabetic one, and a trailing alphabetic segment
// never beats an exhausted string ("1.0a" is older than "1.0").
package version
