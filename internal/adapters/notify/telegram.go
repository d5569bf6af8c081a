package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramTimeout = 10 * time.Second
	// Telegram rechaza mensajes de más de 4096 caracteres.
	telegramMaxLen = 4096
)

// Telegram implementa ports.Notifier enviando mensajes a un chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram conecta con la Bot API de producción. Valida el token con getMe.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, chatID)
}

// NewTelegramWithEndpoint permite apuntar a otro endpoint ("<base>/bot%s/%s"), p.ej. en tests.
func NewTelegramWithEndpoint(token, endpoint string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: telegramTimeout})
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify envía el mensaje como texto plano.
func (t *Telegram) Notify(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg = truncate(msg, telegramMaxLen)
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
		return fmt.Errorf("notify.Telegram: send: %w", err)
	}
	return nil
}

// truncate recorta msg a limit runas, terminando en "..." si hubo corte.
func truncate(msg string, limit int) string {
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	n := 0
	for i := range msg {
		if n == limit-3 {
			return msg[:i] + "..."
		}
		n++
	}
	return msg
}
