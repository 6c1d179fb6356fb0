// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax, so secrets such as the API token
// or the snapshot database password can stay out of the file itself.
package config
