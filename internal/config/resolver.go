package config

import (
	"maps"
	"slices"
)

// Resolve returns the configured module IDs in sorted order. Sorting makes
// module load order deterministic across runs.
func Resolve(cfg *Config) []string {
	return slices.Sorted(maps.Keys(cfg.Modules))
}
