package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const staleLockAge = 5 * time.Minute

// acquireMigrationLock serializes migrations of one sqlite file across processes.
func acquireMigrationLock(dbPath string, log *zap.Logger, attempts int, wait time.Duration) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	for i := 0; i < attempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			log.Debug("migration lock acquired", zap.String("lock", lockPath))
			return lockFile, nil
		}

		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > staleLockAge {
			log.Warn("removing stale migration lock", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		log.Debug("waiting for migration lock", zap.Int("attempt", i+1))
		time.Sleep(wait)
	}

	return nil, fmt.Errorf("migration lock %s is held by another process", lockPath)
}

func releaseMigrationLock(lockFile *os.File, log *zap.Logger) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	log.Debug("migration lock released", zap.String("lock", lockPath))
}

// CleanupStaleLocks removes abandoned lock files next to dbPath.
func CleanupStaleLocks(dbPath string, log *zap.Logger) {
	matches, _ := filepath.Glob(dbPath + "*.lock")
	for _, lockFile := range matches {
		if info, err := os.Stat(lockFile); err == nil && time.Since(info.ModTime()) > 2*staleLockAge {
			log.Info("removing stale lock file", zap.String("file", lockFile))
			os.Remove(lockFile)
		}
	}
}
