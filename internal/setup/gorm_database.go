package setup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bornholm/sectioncache/internal/config"
	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	gormDatabases      = map[string]*gorm.DB{}
	gormDatabasesMutex sync.Mutex
)

// getGormDatabase opens the sqlite database at dsn once per process. Every
// store sharing a database file shares the same connection.
func getGormDatabase(ctx context.Context, conf *config.Config, dsn string) (*gorm.DB, error) {
	gormDatabasesMutex.Lock()
	defer gormDatabasesMutex.Unlock()

	if db, exists := gormDatabases[dsn]; exists {
		return db, nil
	}

	dialector := gormlite.Open(dsn)

	var logLevel logger.LogLevel
	switch conf.Logger.Level {
	case slog.LevelError:
		logLevel = logger.Error
	case slog.LevelWarn:
		logLevel = logger.Warn
	case slog.LevelInfo:
		logLevel = logger.Info
	default:
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if conf.Logger.Level == slog.LevelDebug {
		db = db.Debug()
	}

	internalDB, err := db.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	internalDB.SetMaxOpenConns(1)

	pragmas := fmt.Sprintf("PRAGMA journal_mode=wal; PRAGMA foreign_keys=on; PRAGMA busy_timeout=%d", conf.Storage.Database.BusyTimeout.Milliseconds())

	if err := db.WithContext(ctx).Exec(pragmas).Error; err != nil {
		return nil, errors.WithStack(err)
	}

	slog.DebugContext(ctx, "database opened", slog.String("dsn", dsn))

	gormDatabases[dsn] = db

	return db, nil
}
