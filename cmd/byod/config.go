package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/byod/internal/imagechan"
	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/poller"
	"github.com/tinytelemetry/byod/internal/trmnl"
)

const (
	surfaceWindow   = "window"
	surfaceTerminal = "terminal"
	surfaceHeadless = "headless"

	defaultAPIAddr        = "127.0.0.1:2300"
	defaultScale          = 1.0
	defaultRequestTimeout = 30 * time.Second
	defaultSuccessMode    = poller.SuccessNotServerError

	// Credentials are taken from these variables only when both are set.
	envAPIKey  = "TRMNL_API_KEY"
	envBaseURL = "TRMNL_BASE_URL"
)

// appConfig is the immutable runtime configuration of the client.
type appConfig struct {
	BaseURL           string        `mapstructure:"base-url" yaml:"base-url"`
	APIKey            string        `mapstructure:"api-key" yaml:"api-key"`
	DefaultRefresh    time.Duration `mapstructure:"default-refresh" yaml:"default-refresh"`
	TickInterval      time.Duration `mapstructure:"tick-interval" yaml:"tick-interval"`
	ImageQueueSize    int           `mapstructure:"image-queue-size" yaml:"image-queue-size"`
	QueueOverflow     string        `mapstructure:"queue-overflow" yaml:"queue-overflow"`
	Surface           string        `mapstructure:"surface" yaml:"surface"`
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	Scale             float64       `mapstructure:"scale" yaml:"scale"`
	RefreshKeys       []string      `mapstructure:"refresh-keys" yaml:"refresh-keys"`
	SuccessMode       string        `mapstructure:"success-mode" yaml:"success-mode"`
	ServerErrorStatus int           `mapstructure:"server-error-status" yaml:"server-error-status"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout" yaml:"request-timeout"`
	UserAgent         string        `mapstructure:"user-agent" yaml:"user-agent"`
	APIEnabled        bool          `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIAddr           string        `mapstructure:"api-addr" yaml:"api-addr"`
	HistoryEnabled    bool          `mapstructure:"history-enabled" yaml:"history-enabled"`
	DBPath            string        `mapstructure:"db-path" yaml:"db-path"`
	HistoryRetention  time.Duration `mapstructure:"history-retention" yaml:"history-retention"`
	SnapshotPath      string        `mapstructure:"snapshot-path" yaml:"snapshot-path"`
	ConfigPath        string        `mapstructure:"-" yaml:"-"`
}

// cliOverrides are the command line values that win over file and env.
type cliOverrides struct {
	APIKey  string
	BaseURL string
	Surface string
}

func loadConfig(configPath string, flags cliOverrides) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BYOD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", model.DefaultBaseURL)
	v.SetDefault("api-key", "")
	v.SetDefault("default-refresh", model.DefaultRefreshInterval)
	v.SetDefault("tick-interval", model.DefaultTickInterval)
	v.SetDefault("image-queue-size", model.DefaultImageQueueSize)
	v.SetDefault("queue-overflow", string(imagechan.Block))
	v.SetDefault("surface", surfaceWindow)
	v.SetDefault("width", model.DefaultWidth)
	v.SetDefault("height", model.DefaultHeight)
	v.SetDefault("scale", defaultScale)
	v.SetDefault("refresh-keys", []string{model.DefaultRefreshKey})
	v.SetDefault("success-mode", defaultSuccessMode)
	v.SetDefault("server-error-status", model.DefaultServerErrorCode)
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("user-agent", trmnl.DefaultUserAgent)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("history-enabled", true)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "byod", "byod.duckdb"))
	v.SetDefault("history-retention", time.Duration(0))
	v.SetDefault("snapshot-path", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "byod", "config.yml"))
	}

	fileUsed := true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
		fileUsed = false
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if fileUsed {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	applyCredentials(&cfg, flags)
	if flags.Surface != "" {
		cfg.Surface = flags.Surface
	}

	// Expand ~ in paths
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.SnapshotPath = expandHome(cfg.SnapshotPath, home)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyCredentials picks the API key and base URL. The TRMNL_* pair wins
// when both variables are set; otherwise non-empty flags override the
// loaded values.
func applyCredentials(cfg *appConfig, flags cliOverrides) {
	key, keyOK := os.LookupEnv(envAPIKey)
	base, baseOK := os.LookupEnv(envBaseURL)
	if keyOK && baseOK && key != "" && base != "" {
		cfg.APIKey = key
		cfg.BaseURL = base
		return
	}
	if flags.APIKey != "" {
		cfg.APIKey = flags.APIKey
	}
	if flags.BaseURL != "" {
		cfg.BaseURL = flags.BaseURL
	}
}

func (c appConfig) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api key required (set %s and %s, -api-key, or api-key in the config file)", envAPIKey, envBaseURL)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base-url must not be empty")
	}
	if c.DefaultRefresh <= 0 {
		return fmt.Errorf("invalid default-refresh: %s", c.DefaultRefresh)
	}
	if c.TickInterval < model.MinTickInterval || c.TickInterval > model.MaxTickInterval {
		return fmt.Errorf("invalid tick-interval: %s (allowed %s to %s)", c.TickInterval, model.MinTickInterval, model.MaxTickInterval)
	}
	if c.ImageQueueSize < 1 {
		return fmt.Errorf("invalid image-queue-size: %d", c.ImageQueueSize)
	}
	if _, err := imagechan.ParseOverflow(c.QueueOverflow); err != nil {
		return err
	}
	switch c.Surface {
	case surfaceWindow, surfaceTerminal, surfaceHeadless:
	default:
		return fmt.Errorf("invalid surface %q (want %s, %s or %s)", c.Surface, surfaceWindow, surfaceTerminal, surfaceHeadless)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid surface size: %dx%d", c.Width, c.Height)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("invalid scale: %v", c.Scale)
	}
	if len(c.RefreshKeys) == 0 {
		return errors.New("refresh-keys must name at least one key")
	}
	if _, err := poller.ParseSuccessMode(c.SuccessMode, c.ServerErrorStatus); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request-timeout: %s", c.RequestTimeout)
	}
	if c.APIEnabled && c.APIAddr == "" {
		return errors.New("api-addr must not be empty when api-enabled is set")
	}
	if c.HistoryEnabled && c.DBPath == "" {
		return errors.New("db-path must not be empty when history-enabled is set")
	}
	return nil
}

// redacted returns a copy that is safe to print.
func (c appConfig) redacted() appConfig {
	if n := len(c.APIKey); n > 4 {
		c.APIKey = strings.Repeat("*", n-4) + c.APIKey[n-4:]
	} else if n > 0 {
		c.APIKey = "****"
	}
	return c
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
