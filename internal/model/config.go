package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the REST gateway.
type APIConfig struct {
	// BaseURL is prefixed to every REST path (e.g. http://localhost:5173/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RequestsPerSec paces outgoing requests; 0 disables pacing.
	RequestsPerSec float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`

	// MaxRetries bounds retries on HTTP 429.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// GraphQLConfig maps service names to GraphQL endpoints and operation
// names to services.
type GraphQLConfig struct {
	DefaultService string            `mapstructure:"default_service" yaml:"default_service"`
	Endpoints      map[string]string `mapstructure:"endpoints" yaml:"endpoints"`
	Operations     map[string]string `mapstructure:"operations" yaml:"operations"`
}

// RealtimeConfig holds settings for the notification subscription.
type RealtimeConfig struct {
	BrokerURL       string `mapstructure:"broker_url" yaml:"broker_url"`
	TopicPrefix     string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	ToastTTLSec     int    `mapstructure:"toast_ttl_sec" yaml:"toast_ttl_sec"`
	ReconnectMinMs  int    `mapstructure:"reconnect_min_ms" yaml:"reconnect_min_ms"`
	ReconnectMaxSec int    `mapstructure:"reconnect_max_sec" yaml:"reconnect_max_sec"`
	HeartbeatSec    int    `mapstructure:"heartbeat_sec" yaml:"heartbeat_sec"`
}

// StorageConfig controls where client state is persisted.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// UseKeyring stores the bearer credential in the OS keyring instead of
	// the local database.
	UseKeyring bool `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// Theme is "dark", "light" or empty to follow the persisted preference.
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ProxyRoute maps a path prefix to a backend address.
type ProxyRoute struct {
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
	Target      string `mapstructure:"target" yaml:"target"`
	StripPrefix bool   `mapstructure:"strip_prefix" yaml:"strip_prefix"`
}

// ProxyConfig configures the development reverse proxy.
type ProxyConfig struct {
	Listen         string       `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins []string     `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Routes         []ProxyRoute `mapstructure:"routes" yaml:"routes"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	GraphQL  GraphQLConfig  `mapstructure:"graphql" yaml:"graphql"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Proxy    ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
}

// configDir returns ~/.config/socialterm, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "socialterm")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/socialterm/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultProxyRoutes mirrors the development server routing table.
func DefaultProxyRoutes() []ProxyRoute {
	return []ProxyRoute{
		{Prefix: "/api/auth", Target: "http://localhost:8080", StripPrefix: true},
		{Prefix: "/api/user", Target: "http://localhost:8081", StripPrefix: true},
		{Prefix: "/api/feed", Target: "http://localhost:8082", StripPrefix: true},
		{Prefix: "/api/media", Target: "http://localhost:8085"},
		{Prefix: "/ws", Target: "http://localhost:8084"},
	}
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:        "http://localhost:5173/api",
			TimeoutSec:     30,
			RequestsPerSec: 10,
			MaxRetries:     3,
		},
		GraphQL: GraphQLConfig{
			DefaultService: "feed",
			Endpoints: map[string]string{
				"feed": "http://localhost:8082/graphql",
				"user": "http://localhost:8081/graphql",
			},
			Operations: map[string]string{
				"me":            "user",
				"getUser":       "user",
				"createProfile": "user",
			},
		},
		Realtime: RealtimeConfig{
			BrokerURL:       "ws://localhost:5173/ws",
			TopicPrefix:     "/topic/notifications/",
			ToastTTLSec:     5,
			ReconnectMinMs:  500,
			ReconnectMaxSec: 30,
			HeartbeatSec:    10,
		},
		Storage: StorageConfig{
			DBPath:     filepath.Join(dir, "state.db"),
			UseKeyring: true,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "socialterm.log"),
		},
		Proxy: ProxyConfig{
			Listen:         ":5173",
			AllowedOrigins: []string{"*"},
			Routes:         DefaultProxyRoutes(),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with SOCIALTERM_ override file values
// (e.g. SOCIALTERM_API_BASE_URL). If the file does not exist, it returns the
// defaults with environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("socialterm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	def := defaultAppConfig()
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.requests_per_sec", def.API.RequestsPerSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("graphql.default_service", def.GraphQL.DefaultService)
	v.SetDefault("realtime.broker_url", def.Realtime.BrokerURL)
	v.SetDefault("realtime.topic_prefix", def.Realtime.TopicPrefix)
	v.SetDefault("realtime.toast_ttl_sec", def.Realtime.ToastTTLSec)
	v.SetDefault("realtime.reconnect_min_ms", def.Realtime.ReconnectMinMs)
	v.SetDefault("realtime.reconnect_max_sec", def.Realtime.ReconnectMaxSec)
	v.SetDefault("realtime.heartbeat_sec", def.Realtime.HeartbeatSec)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("storage.use_keyring", def.Storage.UseKeyring)
	v.SetDefault("display.theme", def.Display.Theme)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("proxy.listen", def.Proxy.Listen)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, ok := err.(*os.PathError); !ok && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Maps and lists replace rather than merge; fall back to defaults when
	// the file leaves them empty.
	if len(cfg.GraphQL.Endpoints) == 0 {
		cfg.GraphQL.Endpoints = def.GraphQL.Endpoints
	}
	if cfg.GraphQL.Operations == nil {
		cfg.GraphQL.Operations = def.GraphQL.Operations
	}
	if len(cfg.Proxy.Routes) == 0 {
		cfg.Proxy.Routes = def.Proxy.Routes
	}
	if len(cfg.Proxy.AllowedOrigins) == 0 {
		cfg.Proxy.AllowedOrigins = def.Proxy.AllowedOrigins
	}
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("graphql", cfg.GraphQL)
	v.Set("realtime", cfg.Realtime)
	v.Set("storage", cfg.Storage)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("proxy", cfg.Proxy)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
