// Package config loads runtime configuration for the fieldsync engine.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, optionally seeded from a .env file.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the remote API
//	-d string   path of the local SQLite database
//	-o string   owner (inspector) id whose inspections are pulled
//	-i int      sync interval (seconds)
//	-n int      online check interval (seconds)
//	-u int      parallel asset uploads
//	-m string   mode: run, once or status
//	-l string   log level
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "api_base_url": "https://inspections.example",
//	  "database_path": "/var/lib/fieldsync/local.db",
//	  "sync_interval": "30s",
//	  "backoff_cap": "10m"
//	}
package config
