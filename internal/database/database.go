package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager owns the local calibration database connection.
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect opens the SQLite calibration database at path, or an
// in-memory database if path is empty.
func (m *Manager) Connect(path string) error {
	var err error

	m.DB, err = m.getSqliteDB(path)
	if err != nil || m.DB == nil {
		m.IsValid = false
		return fmt.Errorf("failed to open SQLite DB: %s", err)
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %s", err)
	}

	err = m.SqlDB.Ping()
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to validate connection: %s", err)
	}

	m.IsValid = true
	m.Logger.Info().Msg("Connected to calibration database")
	return nil
}

// getSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) getSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
		m.Logger.Info().Msg("Using in-memory SQLite DB")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.IsValid = false
		return nil, err
	}

	// calibration writes are tiny and rare; durability over throughput
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}

// Migrate runs schema migration for the given models.
func (m *Manager) Migrate(models ...any) error {
	if err := m.DB.AutoMigrate(models...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %s", err)
	}
	return nil
}

// Close closes the underlying connection.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
