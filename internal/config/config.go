package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App     App     `mapstructure:"app"`
	Gemini  Gemini  `mapstructure:"gemini"`
	Feeds   Feeds   `mapstructure:"feeds"`
	Cluster Cluster `mapstructure:"cluster"`
	Ranking Ranking `mapstructure:"ranking"`
	Social  Social  `mapstructure:"social"`
	Server  Server  `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds generation endpoint configuration
type Gemini struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestLimit   int           `mapstructure:"request_limit"`
	RequestWindow  time.Duration `mapstructure:"request_window"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// Feeds holds RSS ingestion configuration
type Feeds struct {
	URLs     []string      `mapstructure:"urls"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Cluster holds clustering coordinator configuration
type Cluster struct {
	Epsilon   float64 `mapstructure:"epsilon"`
	MinPoints int     `mapstructure:"min_points"`
}

// Ranking holds ranking engine configuration
type Ranking struct {
	Interval time.Duration `mapstructure:"interval"`
	TopK     int           `mapstructure:"top_k"`
}

// Social holds social search configuration
type Social struct {
	Endpoint string        `mapstructure:"endpoint"`
	Limit    int           `mapstructure:"limit"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Server holds read API server configuration
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Load reads configuration from an optional config file, environment
// variables and defaults, in increasing order of precedence for env vars.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".newspulse")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("NEWSPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The API key commonly lives in GEMINI_API_KEY without the prefix.
	_ = v.BindEnv("gemini.api_key", "NEWSPULSE_GEMINI_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".newspulse-data")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("gemini.request_limit", 15)
	v.SetDefault("gemini.request_window", 60*time.Second)
	v.SetDefault("gemini.max_retries", 3)

	v.SetDefault("feeds.urls", []string{
		"https://moxie.foxnews.com/google-publisher/latest.xml",
		"https://feeds.feedburner.com/ndtvnews-world-news",
		"https://www.theguardian.com/world/rss",
	})
	v.SetDefault("feeds.interval", 15*time.Minute)
	v.SetDefault("feeds.timeout", 30*time.Second)

	v.SetDefault("cluster.epsilon", 0.2)
	v.SetDefault("cluster.min_points", 2)

	v.SetDefault("ranking.interval", 300*time.Second)
	v.SetDefault("ranking.top_k", 10)

	v.SetDefault("social.endpoint", "https://public.api.bsky.app/xrpc/app.bsky.feed.searchPosts")
	v.SetDefault("social.limit", 25)
	v.SetDefault("social.timeout", 30*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
}

func validate(cfg *Config) error {
	if cfg.Ranking.TopK <= 0 {
		return fmt.Errorf("ranking.top_k must be positive, got %d", cfg.Ranking.TopK)
	}
	if cfg.Gemini.RequestLimit <= 0 {
		return fmt.Errorf("gemini.request_limit must be positive, got %d", cfg.Gemini.RequestLimit)
	}
	if cfg.Cluster.MinPoints < 1 {
		return fmt.Errorf("cluster.min_points must be at least 1, got %d", cfg.Cluster.MinPoints)
	}
	return nil
}
