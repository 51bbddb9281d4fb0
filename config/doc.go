// Package config loads contentd configuration.
//
// Load reads, in order: a .env file (when present), a YAML file whose
// ${VAR} references are expanded strictly, CONTENTOPS_* environment
// overrides, and finally defaults. The result is validated before it is
// returned. Section types convert into the configuration structs of the
// packages they drive.
package config
