package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPageSize     = 50
	defaultBindHost     = "127.0.0.1"
	defaultAPIPort      = 3400
	defaultQueryTimeout = 30 * time.Second
	defaultChunkSize    = 64 * 1024
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	ServerURL    string        `mapstructure:"server-url"`
	AuthKey      string        `mapstructure:"auth-key"`
	Dataset      string        `mapstructure:"dataset"`
	File         string        `mapstructure:"file"`
	SourceURL    string        `mapstructure:"source-url"`
	DBPath       string        `mapstructure:"db-path"`
	PrefsPath    string        `mapstructure:"prefs-path"`
	PageSize     int           `mapstructure:"page-size"`
	Headless     bool          `mapstructure:"headless"`
	APIEnabled   bool          `mapstructure:"api-enabled"`
	APIPort      int           `mapstructure:"api-port"`
	APIAddr      string        `mapstructure:"api-addr"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
	ChunkSize    int           `mapstructure:"decode-chunk-size"`
	ConfigPath   string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultPrefsPath := filepath.Join(home, ".local", "share", "lumberview", "prefs.json")

	v := viper.New()
	v.SetEnvPrefix("LUMBERVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", "")
	v.SetDefault("prefs-path", defaultPrefsPath)
	v.SetDefault("page-size", defaultPageSize)
	v.SetDefault("headless", false)
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("decode-chunk-size", defaultChunkSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "lumberview", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Dataset == "" || cfg.File == "" {
		return cfg, fmt.Errorf("dataset and file are required")
	}
	if cfg.ServerURL == "" && cfg.SourceURL == "" {
		return cfg, fmt.Errorf("one of server-url or source-url is required")
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.PageSize <= 0 {
		return cfg, fmt.Errorf("invalid page-size: %d", cfg.PageSize)
	}

	// Expand ~ in paths.
	for _, p := range []*string{&cfg.DBPath, &cfg.PrefsPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	// The stream endpoint derives from the server unless given explicitly.
	if cfg.SourceURL == "" {
		cfg.SourceURL = fmt.Sprintf("%s/logs/%s/%s",
			strings.TrimRight(cfg.ServerURL, "/"), cfg.Dataset, cfg.File)
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}
