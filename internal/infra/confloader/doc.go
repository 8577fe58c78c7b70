// Package confloader loads host configuration.
//
// It is a thin layer over koanf:
//
//   - Sources: YAML file, environment variables, in-memory maps
//   - Type Safety: unmarshaling into koanf-tagged structs
//   - Watch Support: fsnotify-based change notification for the config file
//
// Priority (highest to lowest):
//
//  1. Environment variables (ROSIELS_ prefix)
//  2. Configuration file
//  3. Defaults already present in the target struct
//
// Environment variables use a double underscore between sections so that
// single underscores can appear inside key names:
//
//	ROSIELS_SECURESTORE__KEY_FILE=/etc/rosiels/master.key -> securestore.key_file
package confloader
