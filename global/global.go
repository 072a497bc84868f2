// Package global holds process-wide handles set up during startup.
package global

import (
	"github.com/notedapp/noted-sync/internal/app"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config is the loaded application configuration.
var Config *app.AppConfig

// DBEngine is the shared database handle.
var DBEngine *gorm.DB

// Logger is the main application logger.
var Logger *zap.Logger
