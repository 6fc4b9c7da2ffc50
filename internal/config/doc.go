// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A Config can also be built from the environment alone with FromEnv, which
// reads TRADEAPI_* variables through an injected lookup function.
package config
