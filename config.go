package hearth

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the orchestrator needs to come up. There is no
// ambient global state; callers build a Config and pass it in.
type Config struct {
	// Identity and prompt
	FamilyName string
	Parents    string

	// Local backend
	OllamaBaseURL string
	OllamaModel   string

	// Cloud backend
	GeminiModel string
	CloudKeyEnv string // env var holding the cloud API key (default GEMINI_API_KEY)

	// Memory
	EmbeddingModel string
	MemoryTopK     int

	// Home Assistant
	HassURL   string
	HassToken string

	// Transcription
	WhisperURL string

	// Tooling
	RequireSearchConfirm bool
	SearchEnabled        bool

	// Persistence
	StoreType    string // "sqlite" or "postgres"
	StorePath    string // sqlite path or postgres DSN
	AuditLogPath string

	// Access control
	AllowedUserIDs []string

	// HTTP
	ListenAddr string
}

// LoadConfig reads configuration from the environment (and .env if
// present) with sensible defaults for a single-host deployment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		FamilyName:           envOr("FAMILY_NAME", "Family"),
		Parents:              envOr("PARENTS", "Parents"),
		OllamaBaseURL:        envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:          envOr("OLLAMA_MODEL", "llama3.2"),
		GeminiModel:          envOr("GEMINI_MODEL", "gemini-2.0-flash-001"),
		CloudKeyEnv:          envOr("CLOUD_KEY_ENV", "GEMINI_API_KEY"),
		EmbeddingModel:       envOr("EMBEDDING_MODEL", "nomic-embed-text"),
		MemoryTopK:           envIntOr("MEMORY_TOP_K", 3),
		HassURL:              envOr("HASS_URL", "http://localhost:8123"),
		HassToken:            os.Getenv("HASS_TOKEN"),
		WhisperURL:           os.Getenv("WHISPER_URL"),
		RequireSearchConfirm: envBoolOr("REQUIRE_SEARCH_CONFIRM", false),
		SearchEnabled:        envBoolOr("SEARCH_ENABLED", true),
		StoreType:            envOr("STORE_TYPE", "sqlite"),
		StorePath:            envOr("STORE_PATH", "hearth_data.sqlite"),
		AuditLogPath:         envOr("AUDIT_LOG_PATH", "logs/audit.log"),
		ListenAddr:           envOr("LISTEN_ADDR", ":8090"),
	}

	if ids := os.Getenv("ALLOWED_USER_IDS"); ids != "" {
		cfg.AllowedUserIDs = splitCommaList(ids)
	}

	return cfg
}

// WithStore sets the persistence backend for the configuration
func (c *Config) WithStore(storeType, path string) *Config {
	c.StoreType = storeType
	c.StorePath = path
	return c
}

// WithAuditLog sets the audit log path for the configuration
func (c *Config) WithAuditLog(path string) *Config {
	c.AuditLogPath = path
	return c
}

// WithSearchConfirm toggles the web-search permission gate
func (c *Config) WithSearchConfirm(required bool) *Config {
	c.RequireSearchConfirm = required
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Warning: %s is not an integer, using %d", key, fallback)
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Warning: %s is not a boolean, using %v", key, fallback)
	}
	return fallback
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
