// Package config loads typed configuration structs from the environment.
//
// Load parses `env` struct tags via caarlos0/env after loading a .env file
// when one exists. Each config type is parsed once per process and cached,
// so components can load their own config independently without re-reading
// the environment.
package config
