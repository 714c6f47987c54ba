package main

import (
	"flag" // Command-line flags

	"wallet_service/internal/config" // Configuration
	"wallet_service/internal/seed"   // Seeding logic

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
)

// Seeds the database with test users, wallets, and sample transactions.
func main() {
	clear := flag.Bool("clear", false, "clear existing data before seeding")
	flag.Parse()

	cfg := config.LoadConfig()
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := seed.Run(db, *clear); err != nil {
		logrus.Fatalf("seed failed: %v", err)
	}
}
