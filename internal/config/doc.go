// Package config loads and validates the TOML configuration that drives the
// scribe daemon and CLI.
package config
