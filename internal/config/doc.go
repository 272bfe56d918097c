// Package config loads pacforge's HCL configuration file.
//
// Attribute values may reference the environment through the env object,
// for example clone_dir = "${env.HOME}/.cache/pacforge". Variables from
// .env files are loaded into the process environment first.
package config
