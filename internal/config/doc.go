// Package config provides configuration loading and validation for the syslog listener.
// It layers environment variable overrides on top of an optional YAML file
// and rejects out-of-range values eagerly, before any socket is opened.
package config
