// bot.go — главная структура бота: зависимости, цикл приёма обновлений
// и его остановка.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/bot/middleware"
	"birzha-bot/internal/config"
	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/users"
	"birzha-bot/internal/telegram"
)

// updatesSource — источник обновлений (клиент Telegram; в тестах фейк).
type updatesSource interface {
	GetUpdates(ctx context.Context) ([]tgbotapi.Update, error)
	Advance(updates []tgbotapi.Update)
	SendText(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Bot принимает обновления Telegram и маршрутизирует их к игре
// и админ-панели.
type Bot struct {
	client      updatesSource
	cfg         *config.Config
	userService *users.Service
	gameService *game.Service
	registry    *game.Registry
	rateLimiter *middleware.RateLimiter
	admin       *AdminPanel

	done chan struct{} // Закрывается при выходе из Run
}

// New создаёт бота со всеми зависимостями.
func New(
	client *telegram.Client,
	cfg *config.Config,
	userService *users.Service,
	gameService *game.Service,
	registry *game.Registry,
	admin *AdminPanel,
) *Bot {
	return &Bot{
		client:      client,
		cfg:         cfg,
		userService: userService,
		gameService: gameService,
		registry:    registry,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second),
		admin:       admin,
		done:        make(chan struct{}),
	}
}

// Run запускает цикл приёма обновлений. Пачка обрабатывается
// последовательно; курсор сдвигается только после её обработки,
// поэтому при падении необработанные обновления придут повторно.
func (b *Bot) Run(ctx context.Context) {
	defer close(b.done)
	defer b.rateLimiter.Close()

	log.WithField("timeout_sec", b.cfg.BotPollTimeoutSeconds).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx)
		if err != nil {
			log.WithError(err).Error("Ошибка получения обновлений, пауза перед повтором")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			ev, ok := FromUpdate(update)
			if !ok {
				continue
			}
			b.handleEvent(ctx, ev)
		}
		b.client.Advance(updates)
	}
}

// Stop ждёт, пока цикл приёма дообработает текущую пачку и выйдет.
// Вызывается после отмены контекста, переданного в Run.
func (b *Bot) Stop() {
	<-b.done
}

func (b *Bot) handleEvent(ctx context.Context, ev Event) {
	defer middleware.RecoverFromPanic()

	middleware.LogIncoming(ev.From.TelegramID, ev.ChatID, ev.From.Username, eventKindName(ev.Kind), ev.Text)

	switch ev.Kind {
	case EventPollAnswer:
		b.handlePollAnswer(ctx, ev)
	case EventCallback:
		b.handleCallback(ctx, ev)
	case EventText:
		b.handleText(ctx, ev)
	}
}

func eventKindName(kind EventKind) string {
	switch kind {
	case EventText:
		return "text"
	case EventCallback:
		return "callback"
	case EventPollAnswer:
		return "poll_answer"
	}
	return "unknown"
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	if err := b.client.SendText(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
