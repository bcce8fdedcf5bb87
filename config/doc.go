// Package config loads process configuration from the environment.
//
// A .env file in the working directory is read first when present, then
// LOGIQ_* variables override the built-in defaults. Configuration is loaded
// once at startup and never changes during the process lifetime.
package config
