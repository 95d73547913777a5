package notify

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	maxAttempts    = 5
	defaultBackoff = 3 * time.Second
)

// Notifier доставляет готовые MarkdownV2-сообщения в чат Telegram.
// Доставка best-effort: после пятой неудачной попытки сообщение теряется.
type Notifier struct {
	bot       *bot.Bot
	chatID    string
	threadID  int
	backoff   time.Duration
	serverURL string
	logger    *zap.Logger
}

type Option func(*Notifier)

// WithBackoff меняет паузу между попытками отправки.
func WithBackoff(d time.Duration) Option {
	return func(n *Notifier) {
		n.backoff = d
	}
}

// WithServerURL направляет запросы на нестандартный Bot API сервер.
func WithServerURL(url string) Option {
	return func(n *Notifier) {
		n.serverURL = url
	}
}

// New создаёт нотификатор. Если threadID равен нулю, сообщения идут
// в чат без привязки к теме.
func New(token, chatID string, threadID int, logger *zap.Logger, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		chatID:   chatID,
		threadID: threadID,
		backoff:  defaultBackoff,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}

	botOpts := []bot.Option{bot.WithSkipGetMe()}
	if n.serverURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(n.serverURL))
	}

	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, err
	}
	n.bot = b

	return n, nil
}

// Send отправляет текст с ограниченным числом повторов. Возвращённая
// ошибка — последняя из наблюдавшихся; вызывающая сторона только
// логирует её, неудача доставки не должна останавливать мониторинг.
func (n *Notifier) Send(ctx context.Context, text string) error {
	params := &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	}
	if n.threadID != 0 {
		params.MessageThreadID = n.threadID
	}

	attempt := 0
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewConstant(n.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, err := n.bot.SendMessage(ctx, params); err != nil {
			n.logger.Error("Failed to send notification",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		n.logger.Error("Giving up on notification",
			zap.Int("attempts", attempt),
			zap.Error(err))
		return err
	}

	n.logger.Info("Notification sent",
		zap.String("chat_id", n.chatID),
		zap.Int("thread_id", n.threadID))
	return nil
}
