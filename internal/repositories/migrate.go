package repositories

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type MigrationConfig struct {
	DBName     string
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		DBName:     "teamhub",
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// pendingIndexes enforce "at most one pending request per pair" at the
// storage level. Both postgres and sqlite support partial indexes.
var pendingIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_friend_requests_pending ON friend_requests (from_user_id, to_user_id) WHERE status = 'pending'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_join_requests_pending ON join_requests (group_id, user_id) WHERE status = 'pending'`,
}

// Migrate brings the schema up to date. Postgres uses the embedded SQL
// migrations; sqlite, used for local runs and tests, uses AutoMigrate.
func Migrate(db *gorm.DB, driver string, config *MigrationConfig) error {
	if driver == "sqlite" {
		return AutoMigrate(db)
	}
	return RunMigrations(db, config)
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	for _, stmt := range pendingIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func newMigrator(db *gorm.DB, config *MigrationConfig) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		DatabaseName:          config.DBName,
		MigrationsTable:       "schema_migrations",
		MultiStatementEnabled: true,
		MultiStatementMaxSize: 10 * 1 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, config.DBName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func RunMigrations(db *gorm.DB, config *MigrationConfig) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}
	log := logger.WithService("migrations")

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := waitForDatabase(sqlDB, config.MaxRetries, config.RetryDelay); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	m, err := newMigrator(db, config)
	if err != nil {
		return err
	}

	if version, dirty, err := m.Version(); errors.Is(err, migrate.ErrNilVersion) {
		log.Info("no migrations applied yet")
	} else if err != nil {
		log.Warn("could not read migration version", "error", err)
	} else {
		log.Info("current migration version", "version", version, "dirty", dirty)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get final migration version: %w", err)
	}
	log.Info("database migrations completed", "version", version, "dirty", dirty)
	return nil
}

func RollbackMigration(db *gorm.DB, config *MigrationConfig) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	m, err := newMigrator(db, config)
	if err != nil {
		return err
	}

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.WithService("migrations").Info("migration rolled back")
	return nil
}

func waitForDatabase(db *sql.DB, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := db.Ping(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			logger.Warn("database not ready, retrying", "delay", retryDelay, "attempt", i+1, "max_attempts", maxRetries)
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("database not ready after %d attempts", maxRetries)
}

func MigrationFiles() fs.FS {
	return migrationFiles
}
