package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	AdminToken string
}

type LLMConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	PerCollection int // chunks fetched per collection
	ContextLimit  int // pooled chunks kept for the completion prompt
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		LLM: LLMConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "gemma2",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:     500,
			ChunkOverlap:  50,
			PerCollection: 2,
			ContextLimit:  3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional .env file in the working
// directory, then applies HRBOT_* environment variable overrides.
// The admin token is the only required value.
func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.AdminToken == "" {
		return Config{}, fmt.Errorf("missing required config: admin API token. Set HRBOT_ADMIN_TOKEN")
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "HRBOT_HOST")
	setInt(&cfg.Server.Port, "HRBOT_PORT")
	setString(&cfg.Server.AdminToken, "HRBOT_ADMIN_TOKEN")
	setString(&cfg.LLM.BaseURL, "HRBOT_LLM_BASE_URL")
	setString(&cfg.LLM.ChatModel, "HRBOT_CHAT_MODEL")
	setString(&cfg.LLM.EmbedModel, "HRBOT_EMBED_MODEL")
	setString(&cfg.Storage.DataDir, "HRBOT_DATA_DIR")
	setInt(&cfg.Retrieval.ChunkSize, "HRBOT_CHUNK_SIZE")
	setInt(&cfg.Retrieval.ChunkOverlap, "HRBOT_CHUNK_OVERLAP")
	setInt(&cfg.Retrieval.PerCollection, "HRBOT_RETRIEVAL_PER_COLLECTION")
	setInt(&cfg.Retrieval.ContextLimit, "HRBOT_RETRIEVAL_CONTEXT_LIMIT")
	setString(&cfg.Log.Level, "HRBOT_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: not an integer\n", key, v)
		return
	}
	*dst = n
}

// VacationsFile is the path of the vacation accounts table.
func (c Config) VacationsFile() string {
	return filepath.Join(c.Storage.DataDir, "vacations.csv")
}

// TicketsFile is the path of the vacation tickets table.
func (c Config) TicketsFile() string {
	return filepath.Join(c.Storage.DataDir, "tickets.csv")
}

// SupportTicketsFile is the path of the support tickets table.
func (c Config) SupportTicketsFile() string {
	return filepath.Join(c.Storage.DataDir, "support_tickets.csv")
}

// DocumentsFile is the path of the document-to-collection mapping table.
func (c Config) DocumentsFile() string {
	return filepath.Join(c.Storage.DataDir, "documents.csv")
}

// UploadDir is the directory uploaded source documents are saved to.
func (c Config) UploadDir() string {
	return filepath.Join(c.Storage.DataDir, "documents")
}

// CollectionsDir is the root directory of the embedded chunk collections.
func (c Config) CollectionsDir() string {
	return filepath.Join(c.Storage.DataDir, "collections")
}

// HistoryDir is the directory conversation transcripts are stored in.
func (c Config) HistoryDir() string {
	return filepath.Join(c.Storage.DataDir, "history")
}
