// Package config loads settings from an optional YAML file and PAPERTWEETS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PAPERTWEETS"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Production      bool          `mapstructure:"production"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	ToFollow        []string      `mapstructure:"-"`
	FetchSearch     bool          `mapstructure:"fetch_search"`
	PerPage         int           `mapstructure:"per_page"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Arxiv    ArxivConfig    `mapstructure:"arxiv"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type TwitterConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BearerToken    string        `mapstructure:"bearer_token"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	TimelineCount  int           `mapstructure:"timeline_count"`
	SearchCount    int           `mapstructure:"search_count"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ArxivConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Load reads path (or config.yaml in the working directory when path is
// empty; a missing default file is fine), applies environment overrides
// such as PAPERTWEETS_DATABASE_DSN and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	// Accepts both a YAML list and a space separated string.
	cfg.ToFollow = v.GetStringSlice("to_follow")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("production", false)
	v.SetDefault("refresh_secret", "")
	v.SetDefault("to_follow", []string{})
	v.SetDefault("fetch_search", false)
	v.SetDefault("per_page", 20)
	v.SetDefault("refresh_interval", time.Duration(0))

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tweet.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("twitter.base_url", "https://api.twitter.com")
	v.SetDefault("twitter.bearer_token", "")
	v.SetDefault("twitter.consumer_key", "")
	v.SetDefault("twitter.consumer_secret", "")
	v.SetDefault("twitter.timeline_count", 200)
	v.SetDefault("twitter.search_count", 100)
	v.SetDefault("twitter.min_interval", time.Second)
	v.SetDefault("twitter.max_retries", 3)
	v.SetDefault("twitter.timeout", 30*time.Second)

	v.SetDefault("arxiv.base_url", "http://export.arxiv.org")
	v.SetDefault("arxiv.min_interval", 3*time.Second)
	v.SetDefault("arxiv.timeout", 30*time.Second)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite or postgres, got %q", ErrInvalid, c.Database.Driver)
	}
	if c.PerPage < 1 {
		return fmt.Errorf("%w: per_page must be positive, got %d", ErrInvalid, c.PerPage)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("%w: refresh_interval must not be negative", ErrInvalid)
	}
	if c.Twitter.TimelineCount < 1 || c.Twitter.TimelineCount > 200 {
		return fmt.Errorf("%w: twitter.timeline_count must be 1-200, got %d", ErrInvalid, c.Twitter.TimelineCount)
	}
	if c.Twitter.SearchCount < 1 || c.Twitter.SearchCount > 100 {
		return fmt.Errorf("%w: twitter.search_count must be 1-100, got %d", ErrInvalid, c.Twitter.SearchCount)
	}
	if c.Twitter.MaxRetries < 0 {
		return fmt.Errorf("%w: twitter.max_retries must not be negative", ErrInvalid)
	}
	return nil
}

// HasTwitterCredentials reports whether an app-only token can be obtained.
func (c *Config) HasTwitterCredentials() bool {
	t := c.Twitter
	return t.BearerToken != "" || (t.ConsumerKey != "" && t.ConsumerSecret != "")
}
