package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LJTian/SentimentHub/internal/collector"
	"github.com/LJTian/SentimentHub/internal/sentiment"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoSources       = errors.New("at least one source is required")
	ErrInvalidInterval = errors.New("FETCH_INTERVAL must be at least 1m")
	ErrInvalidTimeout  = errors.New("FETCH_TIMEOUT must be positive")
	ErrMissingDSN      = errors.New("DATABASE_DSN is required")
)

type Config struct {
	AppPort string

	DatabaseDSN string
	RedisAddr   string

	RabbitMQURL   string
	RabbitMQQueue string

	FetchInterval time.Duration
	FetchTimeout  time.Duration

	BasicAuthUser string
	BasicAuthPass string

	LogLevel  string
	LogFormat string

	SourcesFile string
	Sources     []collector.Source
	Lexicon     sentiment.Lexicon
}

// fileConfig SOURCES_FILE 指向的 YAML 文件结构
type fileConfig struct {
	Sources []collector.Source `yaml:"sources"`
	Lexicon *sentiment.Lexicon `yaml:"lexicon"`
}

// DefaultSources 未提供配置文件时使用的数据源
func DefaultSources() []collector.Source {
	return []collector.Source{
		{
			Name: "G1 Economia",
			Kind: collector.KindHTML,
			URL:  "https://g1.globo.com/economia/",
			Selectors: collector.Selectors{
				Article: ".feed-post",
				Title:   ".feed-post-link",
				Summary: ".feed-post-body-resumo",
			},
		},
	}
}

// Load 读取 .env（若存在）与环境变量，再加载可选的 YAML 数据源文件
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "5000"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=localhost user=sentimenthub password=sentimenthub dbname=sentimenthub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue: getEnv("RABBITMQ_QUEUE", "sentiment_articles"),
		FetchInterval: getDuration("FETCH_INTERVAL", time.Hour),
		FetchTimeout:  getDuration("FETCH_TIMEOUT", collector.DefaultTimeout),
		BasicAuthUser: os.Getenv("APP_BASIC_USER"),
		BasicAuthPass: os.Getenv("APP_BASIC_PASS"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		SourcesFile:   os.Getenv("SOURCES_FILE"),
		Sources:       DefaultSources(),
		Lexicon:       sentiment.DefaultLexicon(),
	}

	if cfg.SourcesFile != "" {
		if err := cfg.loadFile(cfg.SourcesFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(fc.Sources) > 0 {
		c.Sources = fc.Sources
	}
	if fc.Lexicon != nil {
		c.Lexicon = *fc.Lexicon
	}
	return nil
}

// Validate 校验配置，返回的错误可用 errors.Is 判断
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return ErrMissingDSN
	}
	if c.FetchInterval < time.Minute {
		return ErrInvalidInterval
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration 解析 time.Duration 格式（如 30m、1h），无法解析时使用默认值
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
