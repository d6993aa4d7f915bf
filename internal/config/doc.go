// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Values from .env files are loaded into the environment first, and MONITOR_*
// variables override the api, poller, stream and log sections after parsing.
package config
