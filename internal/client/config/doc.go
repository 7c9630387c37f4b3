// Package config loads runtime configuration for the tandemctl CLI.
//
// Sources & precedence (later wins)
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. The TOML file at ~/.config/tandem/cli.toml (see DefaultPath).
//  3. TANDEM_* environment variables, e.g. TANDEM_SERVER.
//  4. Command-line flags bound to the same keys.
//
// # File format
//
//	server = "127.0.0.1:50051"
//	token = "eyJ..."
//	poll_interval = "3s"
//	timeout = "10s"
//
// Set writes a single key back to the file, keeping the others.
package config
