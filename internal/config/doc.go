// Package config parses the command-line surface shared by the
// coordinator, worker, and local launcher binaries, layered with an
// optional YAML file: flags override file values.
package config
