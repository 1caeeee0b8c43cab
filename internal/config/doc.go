// Package config defines the pagejournal configuration structure.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - load.go: loading through internal/infra/confloader
//   - flatten.go: dotted key listing for display
//
// Sources, highest priority first: flags, PAGEJOURNAL_* environment
// variables, the YAML file, defaults.
package config
