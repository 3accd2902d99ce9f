package shared

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv      string `yaml:"app_env"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Database defaults; per-invocation parameters override these.
	DBHost     string `yaml:"db_host"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	RedisPass string `yaml:"redis_password"`

	SourceBase string `yaml:"source_base_url"`
	SourceRPS  int    `yaml:"source_rps"`
	PageSize   int    `yaml:"page_size"`
	Workers    int    `yaml:"fetch_workers"`
}

// Load reads configuration from the environment, optionally overlaid by a
// YAML file named in REVIEWTOOL_CONFIG.
func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		DBHost:      env("DB_HOST", "localhost:3306"),
		DBUser:      env("DB_USER", "root"),
		DBPassword:  env("DB_PASSWORD", ""),
		DBName:      env("DB_NAME", "wordpress"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		SourceBase:  env("SOURCE_BASE_URL", "https://feedback.aliexpress.com/pc"),
		SourceRPS:   atoi("SOURCE_RPS", 5),
		PageSize:    atoi("PAGE_SIZE", 100),
		// A single worker fetches pages strictly in order and never reads
		// past the first empty page; raise this only for large backfills.
		Workers: atoi("FETCH_WORKERS", 1),
	}
	if path := os.Getenv("REVIEWTOOL_CONFIG"); path != "" {
		if err := overlayFile(&c, path); err != nil {
			log.Warn().Str("path", path).Err(err).Msg("config file ignored")
		}
	}
	return c
}

func overlayFile(c *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// DSN builds a MySQL DSN from the connection parameters of one invocation.
func DSN(host, user, password, dbname string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		user, password, host, dbname)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
