package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/turngame/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate creates the key-value tables. File-backed sqlite databases are migrated
// under a lock file so that several processes can share one file.
func AutoMigrate(db *gorm.DB, dsn string, log *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if path := sqliteFile(db, dsn); path != "" {
		CleanupStaleLocks(path, log)
		lockFile, err := acquireMigrationLock(path, log, 30, time.Second)
		if err != nil {
			return err
		}
		defer releaseMigrationLock(lockFile, log)
	}

	for _, model := range []interface{}{&models.KVEntry{}, &models.KVListItem{}} {
		if err := db.AutoMigrate(model); err != nil {
			log.Error("migration failed", zap.String("model", fmt.Sprintf("%T", model)), zap.Error(err))
			return err
		}
	}

	log.Debug("database migrated")
	return nil
}

func sqliteFile(db *gorm.DB, dsn string) string {
	if db.Dialector.Name() != "sqlite" {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return ""
	}
	return path
}
