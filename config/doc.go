// Package config loads client configuration from YAML.
//
// ${VAR} references in the file are expanded strictly: a missing variable is
// an error, and $$ is a literal dollar sign. EDENQUERY_* environment variables
// override file values.
package config
