package stores

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements Store for PostgreSQL databases
type PostgresStore struct {
	db  *gorm.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config *StoreConfig) (*PostgresStore, error) {
	if config.Type != "postgres" {
		return nil, fmt.Errorf("invalid store type for PostgreSQL store: %s", config.Type)
	}

	store := &PostgresStore{
		dsn: config.Connection,
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	return store, nil
}

// NewPostgresStoreSimple creates a new PostgreSQL store with just a DSN
func NewPostgresStoreSimple(dsn string) (*PostgresStore, error) {
	config := NewStoreConfig("postgres", dsn)
	return NewPostgresStore(config)
}

// Connect establishes a connection to the PostgreSQL database
func (s *PostgresStore) Connect() error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&Fact{}, &PendingRequest{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
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
func (s *PostgresStore) Ping() error {
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
func (s *PostgresStore) SaveFact(fact *Fact) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := s.db.Create(fact).Error; err != nil {
		return fmt.Errorf("failed to save fact: %w", err)
	}
	return nil
}

// ListFacts returns every stored fact, oldest first
func (s *PostgresStore) ListFacts() ([]Fact, error) {
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
func (s *PostgresStore) SavePending(pending *PendingRequest) error {
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
func (s *PostgresStore) TakePending(token string) (PendingRequest, error) {
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
func (s *PostgresStore) SweepExpired(now time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	result := s.db.Unscoped().Where("expires_at < ?", now).Delete(&PendingRequest{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep expired pending requests: %w", result.Error)
	}
	return result.RowsAffected, nil
}
