package main

import (
	"wallet_service/internal/config" // Configuration
	"wallet_service/internal/db"     // Database migration
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	db.Migrate(cfg.DSN())
}
