package infrastructure

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"wacontacts/internal/interfaces"
)

// TelegramNotifier posts sync reports to one Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewNotifier returns a TelegramNotifier when a token and chat are
// configured, otherwise a notifier that does nothing. A bad token is
// logged and also falls back to the no-op notifier.
func NewNotifier(token string, chatID int64, logger *zap.Logger) interfaces.Notifier {
	if token == "" || chatID == 0 {
		return NopNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Warn("telegram bot token rejected, sync reports disabled", zap.Error(err))
		return NopNotifier{}
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: logger}
}

func (t *TelegramNotifier) NotifySync(ctx context.Context, report interfaces.SyncReport) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSyncReport(report))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send sync report: %w", err)
	}
	return nil
}

func FormatSyncReport(r interfaces.SyncReport) string {
	return fmt.Sprintf("*Contact sync* user %d (%s)\nTotal: %d\nSaved: %d\nFailed: %d\nSkipped: %d\nPromoted: %d\nDuration: %s",
		r.UserID, r.Session, r.Total, r.Saved, r.Failed, r.Skipped, r.Promoted, r.Duration.Round(time.Millisecond))
}

type NopNotifier struct{}

func (NopNotifier) NotifySync(context.Context, interfaces.SyncReport) error { return nil }
