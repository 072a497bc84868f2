// Package model holds the gorm persistence models.
package model

import (
	"gorm.io/gorm"
)

// AutoMigrate migrates the table backing the named model.
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {

	case "Note":
		return db.AutoMigrate(Note{})

	case "SyncMapping":
		return db.AutoMigrate(SyncMapping{})

	case "Credential":
		return db.AutoMigrate(Credential{})
	}
	return nil
}

// AutoMigrateAll migrates every table.
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"Note", "SyncMapping", "Credential"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}
