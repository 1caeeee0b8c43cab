// Package confloader loads configuration with koanf.
//
// Sources, highest priority first:
//
//  1. Maps supplied by the caller (command-line flags)
//  2. Environment variables
//  3. A YAML configuration file
//  4. Values already present in the target struct
//
// Environment variables carry a prefix and use a double underscore between
// levels so that keys may contain single underscores:
//
//	PAGEJOURNAL_STORAGE__DATA_DIR=/data  ->  storage.data_dir
package confloader
