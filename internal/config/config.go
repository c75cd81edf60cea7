// Package config provides configuration management for clashapi
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/alexbotov/clashapi/pkg/clash"
)

// ErrMissingCredentials is returned when neither the environment nor the
// config file provides a developer account
var ErrMissingCredentials = errors.New("no developer credentials configured (set CLASH_EMAIL and CLASH_PASSWORD)")

// noScope disables the key scope so the portal receives null
const noScope = "none"

// Config holds all configuration for clashapi
type Config struct {
	Credentials []Credential   `yaml:"credentials"`
	Portal      PortalConfig   `yaml:"portal"`
	API         APIConfig      `yaml:"api"`
	IP          IPConfig       `yaml:"ip"`
	Log         LogConfig      `yaml:"log"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	HTTPTimeout time.Duration  `yaml:"http_timeout"`
}

// Credential is one developer portal account
type Credential struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// PortalConfig holds developer portal and key settings
type PortalConfig struct {
	URL            string `yaml:"url"`
	KeyName        string `yaml:"key_name"`
	KeyScope       string `yaml:"key_scope"`
	KeyDescription string `yaml:"key_description"`
	MaxKeys        int    `yaml:"max_keys"`
}

// APIConfig holds statistics API settings
type APIConfig struct {
	URL string `yaml:"url"`
}

// IPConfig selects how the public address is discovered. StaticIP wins over URL.
type IPConfig struct {
	URL      string `yaml:"url"`
	StaticIP string `yaml:"static"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ServerConfig holds management API configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AdminTokenHash string        `yaml:"admin_token_hash"`
	// TrustedProxies lists the peer addresses whose X-Forwarded-For header
	// is believed
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig holds the audit store configuration. An empty DSN keeps
// the audit trail in memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig holds the response cache configuration. An empty address
// disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load reads .env files, then the environment, then the optional YAML file
// named by CLASH_CONFIG
func Load() (*Config, error) {
	if err := loadDotEnv(envPaths()); err != nil {
		return nil, err
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path := os.Getenv("CLASH_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from environment variables with defaults
func FromEnv() (*Config, error) {
	maxKeys, err := getEnvInt("CLASH_MAX_KEYS", 10)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvDuration("CLASH_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("CLASH_REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Portal: PortalConfig{
			URL:            getEnv("CLASH_PORTAL_URL", clash.DefaultPortalURL),
			KeyName:        getEnv("CLASH_KEY_NAME", "clashapi"),
			KeyScope:       getEnv("CLASH_KEY_SCOPE", clash.ScopeClash),
			KeyDescription: getEnv("CLASH_KEY_DESCRIPTION", "Created by clashapi"),
			MaxKeys:        maxKeys,
		},
		API: APIConfig{
			URL: getEnv("CLASH_API_URL", clash.DefaultAPIURL),
		},
		IP: IPConfig{
			URL:      getEnv("CLASH_IP_URL", clash.DefaultIPResolverURL),
			StaticIP: os.Getenv("CLASH_STATIC_IP"),
		},
		Log: LogConfig{
			Level:  getEnv("CLASH_LOG_LEVEL", "info"),
			Format: getEnv("CLASH_LOG_FORMAT", "console"),
			File:   os.Getenv("CLASH_LOG_FILE"),
		},
		Server: ServerConfig{
			Port:           getEnv("CLASH_SERVER_PORT", "8080"),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AdminTokenHash: os.Getenv("CLASH_ADMIN_TOKEN_HASH"),
			TrustedProxies: getEnvList("CLASH_TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    os.Getenv("CLASH_DB_DSN"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("CLASH_REDIS_ADDR"),
			Password: os.Getenv("CLASH_REDIS_PASSWORD"),
			DB:       redisDB,
		},
		HTTPTimeout: timeout,
	}

	email := getEnv("CLASH_EMAIL", os.Getenv("EMAIL"))
	password := getEnv("CLASH_PASSWORD", os.Getenv("PASSWORD"))
	if email != "" || password != "" {
		cfg.Credentials = append(cfg.Credentials, Credential{Email: email, Password: password})
	}

	return cfg, nil
}

// ApplyFile overlays a YAML file. Non-empty file values replace the current
// ones and file credentials are appended after the environment's.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	c.Credentials = append(c.Credentials, file.Credentials...)
	overlay(&c.Portal.URL, file.Portal.URL)
	overlay(&c.Portal.KeyName, file.Portal.KeyName)
	overlay(&c.Portal.KeyScope, file.Portal.KeyScope)
	overlay(&c.Portal.KeyDescription, file.Portal.KeyDescription)
	overlay(&c.API.URL, file.API.URL)
	overlay(&c.IP.URL, file.IP.URL)
	overlay(&c.IP.StaticIP, file.IP.StaticIP)
	overlay(&c.Log.Level, file.Log.Level)
	overlay(&c.Log.Format, file.Log.Format)
	overlay(&c.Log.File, file.Log.File)
	overlay(&c.Server.Port, file.Server.Port)
	overlay(&c.Server.AdminTokenHash, file.Server.AdminTokenHash)
	overlay(&c.Database.DSN, file.Database.DSN)
	overlay(&c.Redis.Addr, file.Redis.Addr)
	overlay(&c.Redis.Password, file.Redis.Password)
	if len(file.Server.TrustedProxies) > 0 {
		c.Server.TrustedProxies = file.Server.TrustedProxies
	}
	if file.Portal.MaxKeys > 0 {
		c.Portal.MaxKeys = file.Portal.MaxKeys
	}
	if file.Redis.DB > 0 {
		c.Redis.DB = file.Redis.DB
	}
	if file.HTTPTimeout > 0 {
		c.HTTPTimeout = file.HTTPTimeout
	}
	if file.Server.ReadTimeout > 0 {
		c.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout > 0 {
		c.Server.WriteTimeout = file.Server.WriteTimeout
	}

	return nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if len(c.Credentials) == 0 {
		return ErrMissingCredentials
	}
	for i, cred := range c.Credentials {
		if cred.Email == "" || cred.Password == "" {
			return fmt.Errorf("credential %d: email and password are both required", i)
		}
	}
	if c.Portal.MaxKeys <= 0 {
		return fmt.Errorf("max keys must be positive, got %d", c.Portal.MaxKeys)
	}
	if c.Portal.KeyName == "" {
		return fmt.Errorf("key name is empty")
	}
	return nil
}

// ClashCredentials returns the configured accounts in order
func (c *Config) ClashCredentials() *clash.Credentials {
	b := clash.NewCredentialsBuilder()
	for _, cred := range c.Credentials {
		b.Add(cred.Email, cred.Password)
	}
	return b.Build()
}

// PortalConfig converts the portal settings for the session manager
func (c *Config) PortalConfig(logger *zap.Logger) *clash.PortalConfig {
	scope := c.Portal.KeyScope
	if strings.EqualFold(scope, noScope) {
		scope = ""
	}
	return &clash.PortalConfig{
		BaseURL:        c.Portal.URL,
		Timeout:        c.HTTPTimeout,
		KeyDescription: c.Portal.KeyDescription,
		KeyScope:       scope,
		MaxKeys:        c.Portal.MaxKeys,
		Logger:         logger,
	}
}

// ClientConfig converts the statistics settings. The token is filled in
// once a key is available.
func (c *Config) ClientConfig(logger *zap.Logger, cache clash.Cache) *clash.ClientConfig {
	return &clash.ClientConfig{
		BaseURL: c.API.URL,
		Timeout: c.HTTPTimeout,
		Cache:   cache,
		Logger:  logger,
	}
}

// IPResolver returns the configured public address resolver
func (c *Config) IPResolver() clash.IPResolver {
	if c.IP.StaticIP != "" {
		return clash.StaticIP(c.IP.StaticIP)
	}
	return clash.NewIpifyResolver(c.IP.URL, c.HTTPTimeout)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadDotEnv loads the first existing file of paths. Variables already set
// in the environment are kept.
func loadDotEnv(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// envPaths returns the .env locations in lookup order
func envPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clashapi", ".env"))
	}
	return paths
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getEnvDuration accepts "30s" style durations or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return time.Duration(secs) * time.Second, nil
}
