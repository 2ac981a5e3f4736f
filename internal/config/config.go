// internal/config/config.go
//
// 應用程式設定：先套用預設值，再讀取（可選的）YAML 設定檔，
// 最後以 TXENGINE_* 環境變數覆寫。

package config

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// 日誌輸出格式。
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZapLevel 解析 Level；日誌等級只在這裡檢查。
func (c LogConfig) ZapLevel() (zapcore.Level, error) {
	switch c.Level {
	case "debug", "info", "warn", "error":
		return zapcore.ParseLevel(c.Level)
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", c.Level)
}

type InputConfig struct {
	// SkipMalformed 為 true 時，格式錯誤的列只記錄警告並略過；否則中止處理。
	SkipMalformed bool `yaml:"skip_malformed"`
}

type OutputConfig struct {
	// SnapshotPath 非空時，處理完成後另外寫出 JSON 快照。
	SnapshotPath string `yaml:"snapshot_path"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// Default 回傳預設設定。
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: FormatConsole},
		Server: ServerConfig{Addr: ":8080", MaxBodyBytes: 32 << 20},
	}
}

// Load 讀取設定；path 為空時只使用預設值與環境變數。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Log.Level = getEnv("TXENGINE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TXENGINE_LOG_FORMAT", c.Log.Format)
	c.Output.SnapshotPath = getEnv("TXENGINE_SNAPSHOT_PATH", c.Output.SnapshotPath)
	c.Server.Addr = getEnv("TXENGINE_SERVER_ADDR", c.Server.Addr)

	if v := os.Getenv("TXENGINE_SKIP_MALFORMED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: TXENGINE_SKIP_MALFORMED: %w", err)
		}
		c.Input.SkipMalformed = b
	}
	if v := os.Getenv("TXENGINE_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: TXENGINE_MAX_BODY_BYTES: %w", err)
		}
		c.Server.MaxBodyBytes = n
	}
	return nil
}

// Validate 檢查設定值是否合法。
func (c Config) Validate() error {
	if _, err := c.Log.ZapLevel(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: server.max_body_bytes must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
