// Package config loads and validates gleaner's TOML configuration.
//
// Defaults come from Default(); Load merges a user config file over them,
// expands ~-prefixed paths, and validates the result. The embedded sample
// config documents every key and is written out by the setup command.
package config
