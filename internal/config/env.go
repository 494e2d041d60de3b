package config

import (
	"log/slog"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; values never override variables already set in the process.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE pairs so the config file can reference them as ${KEY}.
func loadEnvFiles() {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err == nil {
			slog.Debug("Loaded environment file", "file", name)
		}
	}
}
