package notify

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramConfig holds Telegram notifier configuration
type TelegramConfig struct {
	Token   string
	ChatIDs []int64 // Chats subscribed at start
}

// TelegramNotifier sends reminders to subscribed Telegram chats. Chats
// subscribe with /start and leave with /stop.
type TelegramNotifier struct {
	api    telegramAPI
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	chats map[int64]bool
	today func() string
}

// NewTelegramNotifier connects to the Bot API with cfg.Token
func NewTelegramNotifier(cfg TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = false

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	return newTelegramNotifier(api, cfg.ChatIDs, logger), nil
}

func newTelegramNotifier(api telegramAPI, chatIDs []int64, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	chats := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		chats[id] = true
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramNotifier{
		api:    api,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		chats:  chats,
	}
}

// SetTodaySummary sets the text source for the /today command.
func (t *TelegramNotifier) SetTodaySummary(fn func() string) {
	t.mu.Lock()
	t.today = fn
	t.mu.Unlock()
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// RequestPermission is granted once at least one chat is subscribed. Telegram
// cannot prompt a user, so an empty subscription list stays default.
func (t *TelegramNotifier) RequestPermission(context.Context) (Permission, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.chats) == 0 {
		return PermissionDefault, nil
	}
	return PermissionGranted, nil
}

func (t *TelegramNotifier) Show(_ context.Context, n Notification) error {
	text := fmt.Sprintf("💊 *%s*\n%s", n.Title, n.Body)

	var firstErr error
	for _, chatID := range t.subscribers() {
		if err := t.sendMessage(chatID, text); err != nil {
			t.logger.Warn("Failed to send telegram reminder", zap.Int64("chat_id", chatID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (t *TelegramNotifier) subscribers() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int64, 0, len(t.chats))
	for id := range t.chats {
		out = append(out, id)
	}
	return out
}

// Start listens for subscription commands
func (t *TelegramNotifier) Start() {
	t.wg.Add(1)
	go t.run()
}

// Stop stops listening for updates
func (t *TelegramNotifier) Stop() {
	t.cancel()
	t.api.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *TelegramNotifier) run() {
	defer t.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-t.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := t.handleUpdate(update); err != nil {
				t.logger.Error("Failed to handle update", zap.Error(err))
			}
		}
	}
}

func (t *TelegramNotifier) handleUpdate(update tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}

	chatID := update.Message.Chat.ID

	switch update.Message.Command() {
	case "start":
		t.mu.Lock()
		t.chats[chatID] = true
		t.mu.Unlock()
		t.logger.Info("Telegram chat subscribed", zap.Int64("chat_id", chatID))
		return t.sendMessage(chatID, "🔔 *PillPal*\n\nYou will get a message here whenever a dose is due. Send /stop to unsubscribe.")

	case "stop":
		t.mu.Lock()
		delete(t.chats, chatID)
		t.mu.Unlock()
		t.logger.Info("Telegram chat unsubscribed", zap.Int64("chat_id", chatID))
		return t.sendMessage(chatID, "🔕 Reminders stopped. Send /start to subscribe again.")

	case "today":
		t.mu.RLock()
		fn := t.today
		t.mu.RUnlock()
		if fn == nil {
			return t.sendMessage(chatID, "Today's schedule is not available.")
		}
		return t.sendMessage(chatID, fn())

	case "help":
		return t.sendMessage(chatID, `*Available Commands:*

/start - Subscribe to dose reminders
/stop - Unsubscribe
/today - Show today's doses
/help - Show this help`)

	default:
		return t.sendMessage(chatID, "❓ Unknown command. Use /help for available commands.")
	}
}

func (t *TelegramNotifier) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.api.Send(msg); err != nil {
		// Try without markdown if it fails
		msg.ParseMode = ""
		if _, err := t.api.Send(msg); err != nil {
			return err
		}
	}
	return nil
}
