package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr         string        `yaml:"listen_addr" json:"listen_addr"`
	DataDir            string        `yaml:"data_dir" json:"data_dir"`
	StateDSN           string        `yaml:"state_dsn" json:"-"`
	TrustProxy         bool          `yaml:"trust_proxy" json:"trust_proxy"`
	AllowInsecure      bool          `yaml:"allow_insecure" json:"allow_insecure"`
	TLSCert            string        `yaml:"tls_cert" json:"tls_cert"`
	TLSKey             string        `yaml:"tls_key" json:"-"`
	LogLevel           string        `yaml:"log_level" json:"log_level"`
	LogFormat          string        `yaml:"log_format" json:"log_format"`
	SweepCheckInterval time.Duration `yaml:"sweep_check_interval" json:"sweep_check_interval"`
}

const (
	defaultListenAddr = ":8080"
	defaultDataDir    = "./data"
	defaultLogLevel   = "info"
	defaultLogFormat  = "json"
	defaultSweepCheck = time.Hour
)

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		ListenAddr:         defaultListenAddr,
		DataDir:            defaultDataDir,
		LogLevel:           defaultLogLevel,
		LogFormat:          defaultLogFormat,
		SweepCheckInterval: defaultSweepCheck,
	}
}

// Load читает YAML-конфигурацию, применяет ENV-переопределения и возвращает актуальную структуру.
// Отсутствующий файл не ошибка: используются значения по умолчанию.
func Load() (*Config, error) {
	c := Default()

	path := getenv("CONFIG_PATH", "./config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// ENV override
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STATE_DSN"); v != "" {
		c.StateDSN = v
	}
	if v := os.Getenv("TLS_CERT"); v != "" {
		c.TLSCert = v
	}
	if v := os.Getenv("TLS_KEY"); v != "" {
		c.TLSKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v, ok := envBool("TRUST_PROXY"); ok {
		c.TrustProxy = v
	}
	if v, ok := envBool("ALLOW_INSECURE"); ok {
		c.AllowInsecure = v
	}
	if v := os.Getenv("SWEEP_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SWEEP_CHECK_INTERVAL: %w", err)
		}
		c.SweepCheckInterval = d
	}

	if c.StateDSN == "" {
		c.StateDSN = "bolt://" + filepath.Join(c.DataDir, "state.db")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is not configured")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen_addr is not configured")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}
	return nil
}

// ObjectsDir: каталог, в котором лежат шарды объектов.
func (c *Config) ObjectsDir() string {
	return filepath.Join(c.DataDir, "objects")
}

func envBool(k string) (bool, bool) {
	v := os.Getenv(k)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
