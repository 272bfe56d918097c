// Package app contains the core application logic. It wires the package
// index, resolver, conflict detector, planner and orchestrator into the
// plan, install and upgrade pipelines, decoupled from any specific
// entrypoint like a CLI.
package app
