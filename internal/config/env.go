package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envFiles lists the .env files read before the environment is consulted,
// in order of precedence.
func envFiles(dataDir string) []string {
	return []string{".env", filepath.Join(dataDir, ".env")}
}

// LoadEnvFiles exports the variables of every .env file found for dataDir.
// Variables already set in the process win over file values.
func LoadEnvFiles(dataDir string) error {
	for _, path := range envFiles(dataDir) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := loadEnvFile(path); err != nil {
			return err
		}
	}
	return nil
}

func loadEnvFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Viper lower-cases keys; environment names are upper case.
	for key, val := range v.AllSettings() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(val)); err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
	}
	return nil
}

func GetEnvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

var envAliases = map[string][]string{
	"PILLPAL_LLM_PROVIDERS_OPENAI_API_KEY":     {"OPENAI_API_KEY"},
	"PILLPAL_LLM_PROVIDERS_OPENROUTER_API_KEY": {"OPENROUTER_API_KEY"},
	"PILLPAL_LLM_PROVIDERS_KIMI_API_KEY":       {"KIMI_API_KEY", "MOONSHOT_API_KEY"},
	"PILLPAL_NOTIFICATIONS_TELEGRAM_BOT_TOKEN": {"TELEGRAM_BOT_TOKEN"},
	"PILLPAL_NOTIFICATIONS_DISCORD_TOKEN":      {"DISCORD_BOT_TOKEN", "DISCORD_TOKEN"},
}

// ResolveEnvWithAliases reads canonicalKey, then the conventional names
// other tools use for the same secret.
func ResolveEnvWithAliases(canonicalKey string) string {
	if val := os.Getenv(canonicalKey); val != "" {
		return val
	}
	for _, alias := range envAliases[canonicalKey] {
		if val := os.Getenv(alias); val != "" {
			return val
		}
	}
	return ""
}
