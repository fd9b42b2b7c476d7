package stores

import (
	"time"

	"gorm.io/gorm"
)

// Fact is one unit of long-term memory. Facts are inserted and retrieved,
// never mutated.
type Fact struct {
	gorm.Model
	FactID string `gorm:"uniqueIndex;not null"`
	Text   string `gorm:"type:text;not null"`
	Source string `gorm:"index"`
	UserID string `gorm:"index"`
	// EmbeddingJSON stores the JSON marshaled embedding vector for this fact.
	EmbeddingJSON string `gorm:"type:json"`
}

// PendingRequest is a permission-gated tool invocation waiting for the
// caller's approve/deny decision. The full original query is kept here so
// nothing is lost across the approval round trip.
type PendingRequest struct {
	gorm.Model
	Token     string    `gorm:"uniqueIndex;not null"`
	UserID    string    `gorm:"index"`
	UserName  string    `gorm:"type:text"`
	Query     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index"`
}

// Store interface for abstracting database operations
type Store interface {
	// Fact operations
	SaveFact(fact *Fact) error
	ListFacts() ([]Fact, error)

	// Pending permission operations
	SavePending(pending *PendingRequest) error
	TakePending(token string) (PendingRequest, error)
	SweepExpired(now time.Time) (int64, error)

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite", "postgres"
	Connection string            `json:"connection"` // connection string
	Options    map[string]string `json:"options"`    // additional options
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	c.Options[key] = value
	return c
}
