package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	GinMode       string        `mapstructure:"GIN_MODE"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	LogFormat     string        `mapstructure:"LOG_FORMAT"`
	CacheSize     int           `mapstructure:"CACHE_SIZE"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	SlugAttempts  int           `mapstructure:"SLUG_MAX_ATTEMPTS"`
	PageSize      int           `mapstructure:"PAGE_SIZE"`
}

var defaults = map[string]interface{}{
	"PORT":              "8080",
	"GIN_MODE":          "release",
	"DATABASE_URL":      "host=localhost user=postgres password=postgres dbname=quill port=5432 sslmode=disable TimeZone=Europe/Moscow",
	"SESSION_SECRET":    "secret_key_change_me",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "text",
	"CACHE_SIZE":        500,
	"CACHE_TTL":         "5m",
	"SLUG_MAX_ATTEMPTS": 16,
	"PAGE_SIZE":         10,
}

// Load 先读 .env（不存在时忽略），再从环境变量和默认值解析配置
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, reading config from environment")
	}
	return parse(viper.New())
}

func parse(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
