package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultTemplate is the commented starter config written by WriteDefault.
const DefaultTemplate = `# PillPal configuration
server:
  address: 127.0.0.1
  port: 8080

llm:
  default_provider: openai
  providers:
    openai:
      # api_key is read from OPENAI_API_KEY when empty
      base_url: https://api.openai.com/v1
      model: gpt-4o-mini

storage:
  driver: badger # badger, sqlite or memory
  # seed_file: ~/.local/share/pillpal/seed.yaml

scheduler:
  enabled: true
  refresh_spec: "@every 1m"
  reminder_spec: "* * * * *"

tracking:
  # Mark doses skipped once they are this many minutes overdue.
  auto_skip_past_due: false
  auto_skip_grace: 60

notifications:
  log: true
  rate_per_minute: 30
  websocket:
    enabled: true
  telegram:
    enabled: false
    # bot_token is read from TELEGRAM_BOT_TOKEN when empty
    chat_ids: []
  discord:
    enabled: false
    channel_id: ""

security:
  # Leave empty to disable API login.
  admin_password: ""
  allow_origins: ["*"]
`

// WriteDefault writes DefaultTemplate to path. It refuses to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
