// Package config loads the feedwatch YAML configuration.
//
// ${VAR} references are expanded from the environment before parsing, so
// secrets such as the archive database password stay out of the file.
package config
