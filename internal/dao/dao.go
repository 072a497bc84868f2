// Package dao implements the persistence interfaces over gorm + sqlite.
package dao

import (
	"context"
	"os"

	"github.com/notedapp/noted-sync/internal/app"
	"github.com/notedapp/noted-sync/internal/model"
	"github.com/notedapp/noted-sync/pkg/fileurl"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Dao bundles all data access over the shared database handle.
type Dao struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Dao.
func New(db *gorm.DB, lg *zap.Logger) *Dao {
	return &Dao{db: db, logger: lg}
}

func (d *Dao) withCtx(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return d.db
	}
	return d.db.WithContext(ctx)
}

// NewDBEngine opens the sqlite database. The file holds token material, so
// it is created readable by the owning user only.
func NewDBEngine(c app.DatabaseConfig) (*gorm.DB, error) {
	if !fileurl.IsExist(c.Path) {
		if err := fileurl.CreatePath(c.Path, 0o700); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
	}

	db, err := gorm.Open(sqlite.Open(c.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	if c.AutoMigrate {
		if err := model.AutoMigrateAll(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}
