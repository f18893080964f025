package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings of the integrity service and CLI.
type Config struct {
	HTTPPort             int
	StoreDriver          string
	SQLiteDSN            string
	PostgresDSN          string
	Timezone             string
	LongSessionThreshold time.Duration
	SweepInterval        time.Duration
	ScanTimeout          time.Duration
	LogLevel             string
	LogFormat            string
}

// fileConfig mirrors Config in the YAML file. Durations stay strings so that
// file and environment values go through the same validation.
type fileConfig struct {
	HTTPPort             *int   `yaml:"http_port"`
	StoreDriver          string `yaml:"store_driver"`
	SQLiteDSN            string `yaml:"sqlite_dsn"`
	PostgresDSN          string `yaml:"postgres_dsn"`
	Timezone             string `yaml:"timezone"`
	LongSessionThreshold string `yaml:"long_session_threshold"`
	SweepInterval        string `yaml:"sweep_interval"`
	ScanTimeout          string `yaml:"scan_timeout"`
	LogLevel             string `yaml:"log_level"`
	LogFormat            string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:             8080,
		StoreDriver:          "sqlite",
		SQLiteDSN:            "file:integrity.db?_pragma=foreign_keys(1)",
		Timezone:             "Local",
		LongSessionThreshold: 5 * time.Hour,
		ScanTimeout:          2 * time.Minute,
		LogLevel:             "info",
		LogFormat:            "json",
	}
}

// Load reads the optional YAML file named by INTEGRITY_CONFIG_FILE and then
// applies INTEGRITY_* environment variables on top. Every missing or invalid
// value is reported in one error.
func Load() (Config, error) {
	cfg := Defaults()
	var problems []error

	if path := strings.TrimSpace(os.Getenv("INTEGRITY_CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		problems = append(problems, file.apply(&cfg)...)
	}

	problems = append(problems, applyEnv(&cfg)...)
	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func (f fileConfig) apply(cfg *Config) []error {
	var problems []error
	if f.HTTPPort != nil {
		cfg.HTTPPort = *f.HTTPPort
	}
	setString(&cfg.StoreDriver, f.StoreDriver)
	setString(&cfg.SQLiteDSN, f.SQLiteDSN)
	setString(&cfg.PostgresDSN, f.PostgresDSN)
	setString(&cfg.Timezone, f.Timezone)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogFormat, f.LogFormat)
	problems = appendErr(problems, setDuration(&cfg.LongSessionThreshold, "long_session_threshold", f.LongSessionThreshold))
	problems = appendErr(problems, setDuration(&cfg.SweepInterval, "sweep_interval", f.SweepInterval))
	problems = appendErr(problems, setDuration(&cfg.ScanTimeout, "scan_timeout", f.ScanTimeout))
	return problems
}

func applyEnv(cfg *Config) []error {
	var problems []error
	if value := env("INTEGRITY_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			problems = append(problems, fmt.Errorf("INTEGRITY_HTTP_PORT: %q is not a number", value))
		} else {
			cfg.HTTPPort = port
		}
	}
	setString(&cfg.StoreDriver, env("INTEGRITY_STORE_DRIVER"))
	setString(&cfg.SQLiteDSN, env("INTEGRITY_SQLITE_DSN"))
	setString(&cfg.PostgresDSN, env("INTEGRITY_POSTGRES_DSN"))
	setString(&cfg.Timezone, env("INTEGRITY_TIMEZONE"))
	setString(&cfg.LogLevel, env("INTEGRITY_LOG_LEVEL"))
	setString(&cfg.LogFormat, env("INTEGRITY_LOG_FORMAT"))
	problems = appendErr(problems, setDuration(&cfg.LongSessionThreshold, "INTEGRITY_LONG_SESSION_THRESHOLD", env("INTEGRITY_LONG_SESSION_THRESHOLD")))
	problems = appendErr(problems, setDuration(&cfg.SweepInterval, "INTEGRITY_SWEEP_INTERVAL", env("INTEGRITY_SWEEP_INTERVAL")))
	problems = appendErr(problems, setDuration(&cfg.ScanTimeout, "INTEGRITY_SCAN_TIMEOUT", env("INTEGRITY_SCAN_TIMEOUT")))
	return problems
}

func (cfg *Config) validate() []error {
	var problems []error
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		problems = append(problems, fmt.Errorf("http_port: %d is out of range", cfg.HTTPPort))
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	switch cfg.StoreDriver {
	case "memory":
	case "sqlite":
		if cfg.SQLiteDSN == "" {
			problems = append(problems, errors.New("sqlite_dsn: required when store_driver is sqlite"))
		}
	case "postgres":
		if cfg.PostgresDSN == "" {
			problems = append(problems, errors.New("INTEGRITY_POSTGRES_DSN: required when store_driver is postgres"))
		}
	default:
		problems = append(problems, fmt.Errorf("store_driver: %q is not one of memory, sqlite, postgres", cfg.StoreDriver))
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil && !strings.EqualFold(cfg.Timezone, "local") {
		problems = append(problems, fmt.Errorf("timezone: %q is not a known zone", cfg.Timezone))
	}
	if cfg.LongSessionThreshold <= 0 {
		problems = append(problems, errors.New("long_session_threshold: must be positive"))
	}
	if cfg.SweepInterval < 0 {
		problems = append(problems, errors.New("sweep_interval: must not be negative"))
	}
	if cfg.ScanTimeout <= 0 {
		problems = append(problems, errors.New("scan_timeout: must be positive"))
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("log_level: %q is not one of debug, info, warn, error", cfg.LogLevel))
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		problems = append(problems, fmt.Errorf("log_format: %q is not json or text", cfg.LogFormat))
	}
	return problems
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration", name, value)
	}
	*dst = d
	return nil
}

func appendErr(problems []error, err error) []error {
	if err != nil {
		return append(problems, err)
	}
	return problems
}
