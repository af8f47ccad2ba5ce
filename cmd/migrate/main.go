package main

// Run database migrations:
//   go run ./cmd/migrate          (up)
//   go run ./cmd/migrate status
//   go run ./cmd/migrate down

import (
	"context"
	"log"
	"os"

	"docsum-backend/internal/shared/config"
	"docsum-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.CLIPool().WithEnv())
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command); err != nil {
		log.Printf("failed to run migrations (%s): %v", command, err)
		sqlDB.Close()
		os.Exit(1)
	}
}
