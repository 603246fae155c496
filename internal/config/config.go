package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for PillPal
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Tracking      TrackingConfig      `mapstructure:"tracking"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Security      SecurityConfig      `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// LLMConfig holds language model settings
type LLMConfig struct {
	DefaultProvider string              `mapstructure:"default_provider"`
	Providers       map[string]Provider `mapstructure:"providers"`
}

// Provider holds individual LLM provider configuration
type Provider struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Timeout   int    `mapstructure:"timeout"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	Driver     string `mapstructure:"driver"` // badger, sqlite, memory
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
	SeedFile   string `mapstructure:"seed_file"`
}

// SchedulerConfig holds the periodic trigger settings
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RefreshSpec  string `mapstructure:"refresh_spec"`
	ReminderSpec string `mapstructure:"reminder_spec"`
}

// TrackingConfig holds dose bookkeeping policy
type TrackingConfig struct {
	AutoSkipPastDue bool `mapstructure:"auto_skip_past_due"`
	AutoSkipGrace   int  `mapstructure:"auto_skip_grace"` // minutes
}

// NotificationsConfig holds notification channel settings
type NotificationsConfig struct {
	Log           bool            `mapstructure:"log"`
	RatePerMinute int             `mapstructure:"rate_per_minute"`
	Telegram      TelegramConfig  `mapstructure:"telegram"`
	Discord       DiscordConfig   `mapstructure:"discord"`
	WebSocket     WebSocketConfig `mapstructure:"websocket"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	BotToken string  `mapstructure:"bot_token"`
	ChatIDs  []int64 `mapstructure:"chat_ids"`
}

// DiscordConfig holds Discord bot settings
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// WebSocketConfig controls browser notifications pushed over /ws
type WebSocketConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	AdminPassword string   `mapstructure:"admin_password"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	if err := LoadEnvFiles(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load .env files: %w", err)
	}

	v, err := newViper(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configPath, dataDir string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "pillpal.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))

	if configPath == "" {
		configPath = ConfigPath(dataDir)
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (PILLPAL_SERVER_PORT, PILLPAL_STORAGE_DRIVER, etc.)
	v.SetEnvPrefix("PILLPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper doesn't handle nested maps well with env vars
	loadEnvOverrides(&cfg)

	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Storage.BadgerPath = expandPath(cfg.Storage.BadgerPath)
	cfg.Storage.SeedFile = expandPath(cfg.Storage.SeedFile)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigPath is the default config file location inside dataDir
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "pillpal.yaml")
}

// Watch reloads the config file whenever it changes and hands the result to
// onChange. Invalid edits are logged and ignored.
func Watch(configPath, dataDir string, logger *zap.Logger, onChange func(*Config)) error {
	v, err := newViper(configPath, dataDir)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.openai.timeout", 60)
	v.SetDefault("llm.providers.openai.max_tokens", 1024)

	v.SetDefault("storage.driver", "badger")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.refresh_spec", "@every 1m")
	v.SetDefault("scheduler.reminder_spec", "* * * * *")

	v.SetDefault("tracking.auto_skip_past_due", false)
	v.SetDefault("tracking.auto_skip_grace", 60)

	v.SetDefault("notifications.log", true)
	v.SetDefault("notifications.rate_per_minute", 30)
	v.SetDefault("notifications.websocket.enabled", true)

	v.SetDefault("security.allow_origins", []string{"*"})
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pillpal")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "pillpal")
}

// loadEnvOverrides loads specific env vars that Viper doesn't handle well with nested maps
func loadEnvOverrides(cfg *Config) {
	cfg.LLM.DefaultProvider = GetEnvDefault("PILLPAL_LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]Provider)
	}

	for _, name := range []string{"openai", "openrouter", "kimi"} {
		prefix := "PILLPAL_LLM_PROVIDERS_" + strings.ToUpper(name)
		apiKey := ResolveEnvWithAliases(prefix + "_API_KEY")
		if apiKey == "" {
			continue
		}
		p := cfg.LLM.Providers[name]
		p.APIKey = apiKey
		p.BaseURL = GetEnvDefault(prefix+"_BASE_URL", p.BaseURL)
		p.Model = GetEnvDefault(prefix+"_MODEL", p.Model)
		cfg.LLM.Providers[name] = p
	}

	cfg.Server.Address = GetEnvDefault("PILLPAL_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("PILLPAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if token := ResolveEnvWithAliases("PILLPAL_NOTIFICATIONS_TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Notifications.Telegram.BotToken = token
	}
	if token := ResolveEnvWithAliases("PILLPAL_NOTIFICATIONS_DISCORD_TOKEN"); token != "" {
		cfg.Notifications.Discord.Token = token
	}

	cfg.Security.JWTSecret = GetEnvDefault("PILLPAL_SECURITY_JWT_SECRET", cfg.Security.JWTSecret)
	cfg.Security.AdminPassword = GetEnvDefault("PILLPAL_SECURITY_ADMIN_PASSWORD", cfg.Security.AdminPassword)
}

func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.driver must be badger, sqlite or memory, got %q", cfg.Storage.Driver)
	}

	if cfg.Tracking.AutoSkipGrace < 0 {
		return fmt.Errorf("tracking.auto_skip_grace must not be negative")
	}

	if cfg.Notifications.Telegram.Enabled && cfg.Notifications.Telegram.BotToken == "" {
		return fmt.Errorf("notifications.telegram.bot_token is required when telegram is enabled")
	}
	if cfg.Notifications.Discord.Enabled && (cfg.Notifications.Discord.Token == "" || cfg.Notifications.Discord.ChannelID == "") {
		return fmt.Errorf("notifications.discord.token and channel_id are required when discord is enabled")
	}

	if cfg.Security.JWTSecret == "" {
		secret, err := generateSecret(32)
		if err != nil {
			return err
		}
		cfg.Security.JWTSecret = secret
	}

	return nil
}

// generateSecret returns n random bytes, hex encoded.
func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GetProvider returns the provider configuration by name
func (c *Config) GetProvider(name string) (Provider, bool) {
	p, ok := c.LLM.Providers[name]
	return p, ok
}

// DefaultProvider returns the default provider configuration
func (c *Config) DefaultProvider() (Provider, error) {
	p, ok := c.LLM.Providers[c.LLM.DefaultProvider]
	if !ok {
		return Provider{}, fmt.Errorf("default provider %s not found", c.LLM.DefaultProvider)
	}
	if p.APIKey == "" {
		return Provider{}, fmt.Errorf("llm.providers.%s.api_key is required", c.LLM.DefaultProvider)
	}
	return p, nil
}

// Grace returns the auto-skip grace period as a duration
func (t TrackingConfig) Grace() time.Duration {
	return time.Duration(t.AutoSkipGrace) * time.Minute
}
