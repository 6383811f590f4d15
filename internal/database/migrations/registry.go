// Package migrations provides database migration management for veilcast.
package migrations

import (
	"github.com/veilcast/veilcast/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Transcript{},
				&models.ConsentEvent{},
			)
		},
		Down: func(tx *gorm.DB) error {
			tables := []string{
				"consent_events",
				"transcripts",
			}
			for _, table := range tables {
				if err := tx.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
