// Package config loads typed configuration from environment variables.
//
// Values come from the process environment, optionally seeded from .env files
// via github.com/joho/godotenv, and are decoded into structs with
// github.com/caarlos0/env/v11 field tags. Each struct type is parsed once and
// cached, so packages can declare their own Config (pg.Config, queue.Config,
// jobs.Config, ...) and load it independently:
//
//	var cfg jobs.Config
//	config.MustLoad(&cfg)
//
// Use ResetCache in tests after changing the environment.
package config
