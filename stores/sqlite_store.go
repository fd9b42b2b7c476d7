package stores

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Store for SQLite databases
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{
		path: config.Connection,
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	config := NewStoreConfig("sqlite", dbPath)
	return NewSQLiteStore(config)
}

// Connect establishes a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&Fact{}, &PendingRequest{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// SaveFact inserts a new fact record
func (s *SQLiteStore) SaveFact(fact *Fact) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := s.db.Create(fact).Error; err != nil {
		return fmt.Errorf("failed to save fact: %w", err)
	}
	return nil
}

// ListFacts returns every stored fact, oldest first
func (s *SQLiteStore) ListFacts() ([]Fact, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	var facts []Fact
	if err := s.db.Order("created_at asc").Find(&facts).Error; err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	return facts, nil
}

// SavePending inserts a pending permission record
func (s *SQLiteStore) SavePending(pending *PendingRequest) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := s.db.Create(pending).Error; err != nil {
		return fmt.Errorf("failed to save pending request: %w", err)
	}
	return nil
}

// TakePending fetches a pending request by token and deletes it, so each
// token resolves at most once.
func (s *SQLiteStore) TakePending(token string) (PendingRequest, error) {
	if s.db == nil {
		return PendingRequest{}, fmt.Errorf("database connection is nil")
	}

	var pending PendingRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", token).First(&pending).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&pending).Error
	})
	if err != nil {
		return PendingRequest{}, fmt.Errorf("failed to take pending request %s: %w", token, err)
	}
	if !pending.ExpiresAt.IsZero() && time.Now().After(pending.ExpiresAt) {
		return PendingRequest{}, fmt.Errorf("pending request %s has expired", token)
	}
	return pending, nil
}

// SweepExpired deletes pending requests whose expiry has passed
func (s *SQLiteStore) SweepExpired(now time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	result := s.db.Unscoped().Where("expires_at < ?", now).Delete(&PendingRequest{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep expired pending requests: %w", result.Error)
	}
	return result.RowsAffected, nil
}
