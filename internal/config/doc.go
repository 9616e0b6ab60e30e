// Package config loads dbgview settings.
//
// Settings come from three places, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, picked by extension
//  3. DBGVIEW_* environment variables
//
// The result is validated before use. A Watcher reloads the file when it is
// saved and hands the new Config to a callback; invalid edits are reported
// and the previous Config stays in effect.
//
// Example file:
//
//	[log]
//	level = "debug"
//
//	[adapter]
//	type = "go"
//	program = "./cmd/server"
//
//	[scope]
//	model = "push"
package config
