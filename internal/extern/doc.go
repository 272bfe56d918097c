// Package extern implements the orchestrator's collaborators on top of
// external programs: git for recipes, makepkg for builds and pacman for
// transactions, plus terminal prompts for review and choices.
package extern
