// Package config loads and validates the run
// configuration from a YAML file with environment
// variable substitution. CLI flags may override any
// loaded value.
package config
