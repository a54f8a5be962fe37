// Package config loads and validates the composer-gateway YAML
// configuration. ${VAR} references are expanded from the environment before
// parsing, and duration fields accept Go duration strings ("30s", "5m").
package config
