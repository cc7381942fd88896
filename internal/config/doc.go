// Package config loads and validates the faulttwin YAML configuration file.
// Secrets (MQTT password, webhook URLs) are never stored in the file; it
// names the environment variables that hold them. Watch hot-reloads the file
// with fsnotify so log level and alert rules can change without a restart.
package config
