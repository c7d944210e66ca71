package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ppiankov/provenance/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp applies every pending schema migration
func MigrateUp(dsn string, log *logger.Logger) error {
	log = logger.OrNop(log)

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration: open embedded source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, toPgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migration: initialize: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil {
			log.Error("migration source close failed", "error", srcErr)
		}
		if dbErr != nil {
			log.Error("migration db close failed", "error", dbErr)
		}
	}()
	migrator.Log = &migrateLogger{log: log}

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d (manual intervention required)", current)
	}

	log.Info("migration started", "current_version", current)
	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migration already up to date")
			return nil
		}
		return fmt.Errorf("migration: up: %w", err)
	}

	next, _, _ := migrator.Version()
	log.Info("migration complete", "from_version", current, "to_version", next)
	return nil
}

// toPgx5DSN rewrites postgres:// URLs to the pgx5:// scheme golang-migrate expects
func toPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

type migrateLogger struct {
	log *logger.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *migrateLogger) Verbose() bool { return false }
