// Package config defines the application configuration structure and
// provides functionality to load and validate configuration from
// environment variables and config files.
package config
