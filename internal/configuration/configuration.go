package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/malonaz/inquirex/internal/file"
	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/persist"
)

// DefaultPath of the configuration file.
const DefaultPath = "~/.config/inquirex/config.json"

// Environment variables overriding the configuration file.
const (
	EnvAPIHost       = "INQUIREX_API_HOST"
	EnvStorageDriver = "INQUIREX_STORAGE_DRIVER"
	EnvRedisAddress  = "INQUIREX_REDIS_ADDR"
	EnvRedisPassword = "INQUIREX_REDIS_PASSWORD"
	EnvRedisDB       = "INQUIREX_REDIS_DB"
	EnvPostgresDSN   = "INQUIREX_POSTGRES_DSN"
	EnvLogLevel      = "INQUIREX_LOG_LEVEL"
	// EnvOpenRouterKey seeds the api key setting when it is empty.
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
)

const dotEnvFilename = ".env"

func defaultConfig() *Config {
	return &Config{
		APIHost:         llm.DefaultAPIHost,
		RequestTimeout:  120,
		FollowUpTimeout: 30,
		ModelCacheTTL:   600,
		Storage: StorageConfig{
			Driver:         persist.DriverSQLite,
			Path:           "~/.config/inquirex/inquirex.db",
			RedisAddress:   "localhost:6379",
			RedisKeyPrefix: "inquirex:",
		},
		Log: LogConfig{
			File:  "~/.config/inquirex/inquirex.log",
			Level: "info",
		},
		HistoryFile: "~/.config/inquirex/history",
	}
}

// Config holds configuration for the inquirex tool.
// User facing settings (api key, model, prompts) live in the store instead.
type Config struct {
	APIHost string `json:"api_host"`
	// Timeouts and TTLs in seconds.
	RequestTimeout  int `json:"request_timeout"`
	FollowUpTimeout int `json:"follow_up_timeout"`
	ModelCacheTTL   int `json:"model_cache_ttl"`

	Storage StorageConfig `json:"storage"`
	Log     LogConfig     `json:"log"`
	// HistoryFile of the chat prompt.
	HistoryFile string `json:"history_file"`

	// APIKey from the environment, used to seed an empty api key setting. Never saved.
	APIKey string `json:"-"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// One of sqlite, redis, memory.
	Driver         string `json:"driver"`
	Path           string `json:"path"`
	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
	PostgresDSN    string `json:"postgres_dsn"`
}

// LogConfig configures the log file.
type LogConfig struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

// PersistOpts returns the options to open the persistence provider.
func (c *Config) PersistOpts() persist.Opts {
	return persist.Opts{
		Driver:         c.Storage.Driver,
		Path:           c.Storage.Path,
		RedisAddress:   c.Storage.RedisAddress,
		RedisPassword:  c.Storage.RedisPassword,
		RedisDB:        c.Storage.RedisDB,
		RedisKeyPrefix: c.Storage.RedisKeyPrefix,
		PostgresDSN:    c.Storage.PostgresDSN,
	}
}

// GatewayOpts returns the options of the LLM gateway.
func (c *Config) GatewayOpts() *llm.Opts {
	return &llm.Opts{
		APIHost:        c.APIHost,
		RequestTimeout: time.Duration(c.RequestTimeout) * time.Second,
		ModelCacheTTL:  time.Duration(c.ModelCacheTTL) * time.Second,
	}
}

// FollowUpTimeoutDuration bounds follow-up generation.
func (c *Config) FollowUpTimeoutDuration() time.Duration {
	return time.Duration(c.FollowUpTimeout) * time.Second
}

// Parse a configuration file, creating it with defaults if it does not exist.
// A .env file next to it or in the working directory is loaded first.
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), dotEnvFilename), dotEnvFilename); err != nil {
		return nil, err
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}
	if err := mergo.Merge(config, defaultConfig()); err != nil {
		return nil, errors.Wrap(err, "merging default config")
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if config.Storage.Path, err = file.ExpandPath(config.Storage.Path); err != nil {
		return nil, errors.Wrap(err, "expanding storage path")
	}
	if config.Log.File, err = file.ExpandPath(config.Log.File); err != nil {
		return nil, errors.Wrap(err, "expanding log file path")
	}
	if config.HistoryFile, err = file.ExpandPath(config.HistoryFile); err != nil {
		return nil, errors.Wrap(err, "expanding history file path")
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if value := os.Getenv(EnvAPIHost); value != "" {
		c.APIHost = value
	}
	if value := os.Getenv(EnvStorageDriver); value != "" {
		c.Storage.Driver = value
	}
	if value := os.Getenv(EnvRedisAddress); value != "" {
		c.Storage.RedisAddress = value
	}
	if value := os.Getenv(EnvRedisPassword); value != "" {
		c.Storage.RedisPassword = value
	}
	if value := os.Getenv(EnvRedisDB); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvRedisDB)
		}
		c.Storage.RedisDB = db
	}
	if value := os.Getenv(EnvPostgresDSN); value != "" {
		c.Storage.PostgresDSN = value
	}
	if value := os.Getenv(EnvLogLevel); value != "" {
		c.Log.Level = value
	}
	c.APIKey = os.Getenv(EnvOpenRouterKey)
	return nil
}

// loadDotEnv loads the given env files that exist. Variables already set win.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		exists, err := file.Exists(path)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
	}
	return nil
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig().save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
