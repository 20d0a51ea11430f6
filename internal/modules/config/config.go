package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config is the static process configuration, decoded from YAML with env
// overrides. Per-strategy settings live in the strategies file (see watcher.go)
// so they can hot-reload.
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	// durations come from env (see NewConfig); yaml.v2 has no duration syntax
	Providers struct {
		BaseURL        string        `yaml:"base_url"`
		QuoteStreamURL string        `yaml:"quote_stream_url"`
		QuoteMaxAge    time.Duration `yaml:"-"`
		Timeout        time.Duration `yaml:"-"`
	} `yaml:"providers"`

	Runner struct {
		Interval     time.Duration `yaml:"-"`
		Parallelism  int           `yaml:"parallelism"`
		Timeframe    string        `yaml:"timeframe"`
		HistoryLimit int           `yaml:"history_limit"`
		FetchTimeout time.Duration `yaml:"-"`
	} `yaml:"runner"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	StrategiesFile string `yaml:"strategies_file"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()

	config := Config{
		StrategiesFile: getenvDefault("STRATEGIES_FILE", "configs/strategies.yaml"),
	}
	config.Providers.Timeout = durationFromEnv("PROVIDER_TIMEOUT", "10s")
	config.Providers.QuoteMaxAge = durationFromEnv("QUOTE_MAX_AGE", "1m")
	config.Runner.Interval = durationFromEnv("CYCLE_INTERVAL", "1h")
	config.Runner.Parallelism = intFromEnv("CYCLE_PARALLELISM", 8)
	config.Runner.Timeframe = getenvDefault("TIMEFRAME", "1d")
	config.Runner.HistoryLimit = intFromEnv("HISTORY_LIMIT", 300)
	config.Runner.FetchTimeout = durationFromEnv("FETCH_TIMEOUT", "15s")
	config.Health.Addr = getenvDefault("HEALTH_ADDR", ":8080")

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
