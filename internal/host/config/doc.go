// Package config defines the rosiels-host configuration structure.
//
// Values come from config.Default, then the YAML file, then ROSIELS_
// environment variables (see package confloader). Verify is run once after
// loading and rejects configurations the host cannot start with.
package config
