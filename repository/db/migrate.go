package db

import (
	"fmt"
	"log"

	"taskflow/internal/domain/errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration applies every pending migration found in migratePath.
func Migration(dbDSN, migratePath string) error {
	if dbDSN == "" {
		return errors.New("database DSN is empty")
	}
	if migratePath == "" {
		return errors.New("migrations path is empty")
	}

	m, err := migrate.New("file://"+migratePath, dbDSN)
	if err != nil {
		log.Println("[ERROR] Failed to initialise migrations:", err)
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Println("[WARN] Failed to close migrator:", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Println("[ERROR] Failed to apply migrations:", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
