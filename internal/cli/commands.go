// Package cli implements the pillpal subcommands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/config"
	"github.com/gmsas95/pillpal/internal/store"
)

var Version = "dev"

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath string
	DataDir    string
	Verbose    bool
}

// NewLogger builds the process logger. CLI commands stay quiet unless
// verbose; the server always logs.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

// OpenApp loads configuration and storage and restores the tracker.
func OpenApp(opts Options, logger *zap.Logger) (*app.App, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a, err := app.New(cfg, st, logger, Version, app.WithConfigPath(opts.ConfigPath))
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// withApp opens the app, runs fn and exits non-zero on failure.
func withApp(opts Options, fn func(a *app.App) error) {
	logger, err := NewLogger(opts.Verbose)
	if err != nil {
		fail(err)
	}
	defer logger.Sync()

	a, err := OpenApp(opts, logger)
	if err != nil {
		fail(err)
	}

	err = fn(a)
	if cerr := a.Close(); cerr != nil {
		logger.Warn("Failed to close store", zap.Error(cerr))
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func HandleServeCommand(opts Options) {
	logger, err := NewLogger(true)
	if err != nil {
		fail(err)
	}
	defer logger.Sync()

	logger.Info("Starting PillPal", zap.String("version", Version))

	a, err := OpenApp(opts, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := a.RunServer(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

func HandleMedsCommand(opts Options, args []string) {
	withApp(opts, func(a *app.App) error {
		return MedsCommand(os.Stdout, a, args)
	})
}

func HandleDosesCommand(opts Options, args []string) {
	withApp(opts, func(a *app.App) error {
		return DosesCommand(os.Stdout, a, args)
	})
}

func HandleAdherenceCommand(opts Options) {
	withApp(opts, func(a *app.App) error {
		return AdherenceCommand(os.Stdout, a)
	})
}

func HandleVisitCommand(opts Options, args []string) {
	withApp(opts, func(a *app.App) error {
		return VisitCommand(os.Stdout, os.Stdin, a, args)
	})
}

func HandleNotifyCommand(opts Options, args []string) {
	withApp(opts, func(a *app.App) error {
		return NotifyCommand(os.Stdout, a, args)
	})
}

func HandleDashboardCommand(opts Options) {
	withApp(opts, RunDashboard)
}

func HandleConfigCommand(opts Options, args []string) {
	if len(args) == 0 {
		PrintConfigHelp()
		return
	}

	if err := ConfigCommand(os.Stdout, opts, args); err != nil {
		fail(err)
	}
}

// ConfigCommand inspects or initialises the config file.
func ConfigCommand(w io.Writer, opts Options, args []string) error {
	path := opts.ConfigPath

	switch args[0] {
	case "path":
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		if path == "" {
			path = config.ConfigPath(cfg.Storage.DataDir)
		}
		fmt.Fprintln(w, path)

	case "init":
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		if path == "" {
			path = config.ConfigPath(cfg.Storage.DataDir)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Wrote %s\n", path)

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: pillpal config get <key>")
		}
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		return printConfigValue(w, cfg, args[1])

	case "show", "view":
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		printConfig(w, cfg)

	default:
		return fmt.Errorf("unknown config command %q", args[0])
	}
	return nil
}

var configKeys = []string{
	"server.address", "server.port", "llm.default_provider", "storage.driver",
	"storage.data_dir", "tracking.auto_skip_past_due", "tracking.auto_skip_grace",
	"notifications.telegram.enabled", "notifications.discord.enabled",
}

func printConfigValue(w io.Writer, cfg *config.Config, key string) error {
	switch key {
	case "server.address":
		fmt.Fprintln(w, cfg.Server.Address)
	case "server.port":
		fmt.Fprintln(w, cfg.Server.Port)
	case "llm.default_provider":
		fmt.Fprintln(w, cfg.LLM.DefaultProvider)
	case "storage.driver":
		fmt.Fprintln(w, cfg.Storage.Driver)
	case "storage.data_dir":
		fmt.Fprintln(w, cfg.Storage.DataDir)
	case "tracking.auto_skip_past_due":
		fmt.Fprintln(w, cfg.Tracking.AutoSkipPastDue)
	case "tracking.auto_skip_grace":
		fmt.Fprintln(w, cfg.Tracking.AutoSkipGrace)
	case "notifications.telegram.enabled":
		fmt.Fprintln(w, cfg.Notifications.Telegram.Enabled)
	case "notifications.discord.enabled":
		fmt.Fprintln(w, cfg.Notifications.Discord.Enabled)
	default:
		return fmt.Errorf("unknown key %q (available: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, titleStyle.Render("PillPal configuration"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Server:    %s:%d\n", cfg.Server.Address, cfg.Server.Port)
	fmt.Fprintf(w, "Data:      %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(w, "Storage:   %s\n", cfg.Storage.Driver)
	fmt.Fprintf(w, "Auto-skip: %v (grace %s)\n", cfg.Tracking.AutoSkipPastDue, cfg.Tracking.Grace())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "LLM providers:")
	for name, p := range cfg.LLM.Providers {
		marker := " "
		if name == cfg.LLM.DefaultProvider {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-10s %-20s key %s\n", marker, name, p.Model, maskToken(p.APIKey))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notifications:")
	fmt.Fprintf(w, "  Log:       %s\n", channelStatus(cfg.Notifications.Log))
	fmt.Fprintf(w, "  WebSocket: %s\n", channelStatus(cfg.Notifications.WebSocket.Enabled))
	fmt.Fprintf(w, "  Telegram:  %s\n", channelStatus(cfg.Notifications.Telegram.Enabled))
	if cfg.Notifications.Telegram.Enabled {
		fmt.Fprintf(w, "    Bot Token: %s\n", maskToken(cfg.Notifications.Telegram.BotToken))
		fmt.Fprintf(w, "    Chats: %d\n", len(cfg.Notifications.Telegram.ChatIDs))
	}
	fmt.Fprintf(w, "  Discord:   %s\n", channelStatus(cfg.Notifications.Discord.Enabled))
	if cfg.Notifications.Discord.Enabled {
		fmt.Fprintf(w, "    Token: %s\n", maskToken(cfg.Notifications.Discord.Token))
	}
}

func channelStatus(enabled bool) string {
	if enabled {
		return "✅ enabled"
	}
	return "❌ disabled"
}

func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
