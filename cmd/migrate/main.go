// Command migrate applies or rolls back the database schema.
//
//	migrate -cmd up
//	migrate -cmd down -steps 1
//	migrate -cmd status
package main

import (
	"flag"
	"fmt"
	"os"

	"eventregistration/config"
	"eventregistration/internal/database"
)

func main() {
	cmd := flag.String("cmd", "up", "up, down or status")
	steps := flag.Int("steps", 1, "number of migrations to roll back with -cmd down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := config.NewLogger()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *cmd {
	case "up":
		err = database.MigrateUp(db, logger)
	case "down":
		err = database.MigrateDown(db, *steps, logger)
	case "status":
		var version uint
		var dirty bool
		version, dirty, err = database.Status(db)
		if err == nil {
			logger.Info("migration status", "version", version, "dirty", dirty)
		}
	default:
		err = fmt.Errorf("unknown command %q", *cmd)
	}
	if err != nil {
		logger.Error("migrate", "cmd", *cmd, "err", err)
		db.Close()
		os.Exit(1)
	}
}
