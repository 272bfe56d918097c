// Package cli is the command-line surface: a cobra command tree over the
// app pipelines, with flags that override the configuration file.
package cli
