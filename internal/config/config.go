package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	LLM         LLMConfig                 `json:"llm"`
	Search      SearchConfig              `json:"search"`
	Auto        AutoConfig                `json:"auto"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	LogFile       string `json:"log_file"`
	LogLevel      string `json:"log_level"`
	RateLimit     int    `json:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LLMConfig selects the model provider used for analysis.
type LLMConfig struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type SearchConfig struct {
	MaxResults     int `json:"max_results"`
	ExcerptLength  int `json:"excerpt_length"`
	TimeoutSeconds int `json:"timeout_seconds"`
	CacheTTLMin    int `json:"cache_ttl_minutes"`
}

type AutoConfig struct {
	MaxQueries    int `json:"max_queries"`
	SettleDelayMS int `json:"settle_delay_ms"`
}

// Defaults for the tunables the pipeline reads everywhere.
const (
	DefaultMaxResults    = 5
	DefaultExcerptLength = 200
	DefaultSearchTimeout = 5 * time.Second
	DefaultLLMTimeout    = 120 * time.Second
	DefaultAutoMax       = 20
	DefaultSettleDelay   = 2 * time.Second
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm.provider must be configured")
	}
	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	// Resolve sqlite DSNs relative to the config file, like the rest of the
	// file-relative paths.
	for name, db := range cfg.Databases {
		if db.DSN != "" && !filepath.IsAbs(db.DSN) && db.DSN != ":memory:" {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	return &cfg, nil
}

// SearchTimeout returns the configured retrieval timeout or the default.
func (c *Config) SearchTimeout() time.Duration {
	if c.Search.TimeoutSeconds > 0 {
		return time.Duration(c.Search.TimeoutSeconds) * time.Second
	}
	return DefaultSearchTimeout
}

// LLMTimeout returns the configured model timeout or the default.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.TimeoutSeconds > 0 {
		return time.Duration(c.LLM.TimeoutSeconds) * time.Second
	}
	return DefaultLLMTimeout
}

// SettleDelay returns the pause between auto-chained turns.
func (c *Config) SettleDelay() time.Duration {
	if c.Auto.SettleDelayMS > 0 {
		return time.Duration(c.Auto.SettleDelayMS) * time.Millisecond
	}
	return DefaultSettleDelay
}

// AutoMax returns the auto-investigation turn cap.
func (c *Config) AutoMax() int {
	if c.Auto.MaxQueries > 0 {
		return c.Auto.MaxQueries
	}
	return DefaultAutoMax
}

// MaxResults returns the retrieval result cap for one turn.
func (c *Config) MaxResults() int {
	if c.Search.MaxResults > 0 {
		return c.Search.MaxResults
	}
	return DefaultMaxResults
}

// ExcerptLength returns the citation excerpt bound.
func (c *Config) ExcerptLength() int {
	if c.Search.ExcerptLength > 0 {
		return c.Search.ExcerptLength
	}
	return DefaultExcerptLength
}
