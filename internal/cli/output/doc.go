// Package output renders pjctl command results.
//
// Three formats are supported: an aligned text table (the default), JSON
// and YAML. Commands hand a value to a Formatter and never print results
// directly, so every command honours the global --output flag.
package output
