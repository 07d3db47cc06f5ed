// dispatcher.go — маршрутизация типизированных событий: текстовые
// команды, торговые кнопки и ответы на опрос набора игроков.
package bot

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/common"
	"birzha-bot/internal/features/game"
	"birzha-bot/internal/telegram"
)

// Текстовые команды бота. Регистр не учитывается.
const (
	cmdGreeting = "привет биржа"
	cmdRecruit  = "кто будет играть?"
	cmdStart    = "начать игру"
	cmdFinish   = "завершить игру"
	cmdLeave    = "покинуть игру"
	cmdRules    = "правила игры"
	cmdAbout    = "о боте"
)

func (b *Bot) handleText(ctx context.Context, ev Event) {
	text := strings.ToLower(strings.TrimSpace(ev.Text))

	// Панель администратора живёт в личных сообщениях
	if ev.IsPrivate && b.admin.Handle(ctx, ev) {
		return
	}

	if !isKnownCommand(text) {
		return
	}

	if !b.rateLimiter.Allow(ev.From.TelegramID) {
		log.WithField("user_id", ev.From.TelegramID).Debug("rate limited")
		return
	}

	if err := b.userService.EnsureUserIfNamed(ctx, ev.From.TelegramID, ev.From.Username, ev.From.FirstName); err != nil {
		log.WithError(err).WithField("user_id", ev.From.TelegramID).Warn("Не удалось зарегистрировать пользователя")
	}

	switch text {
	case cmdGreeting:
		b.sendText(ctx, ev.ChatID, telegram.MsgGreeting)

	case cmdRules:
		b.sendText(ctx, ev.ChatID, telegram.MsgRules)

	case cmdAbout:
		b.sendText(ctx, ev.ChatID, telegram.MsgAbout)

	case cmdRecruit:
		if ev.IsPrivate {
			b.sendText(ctx, ev.ChatID, telegram.MsgUnknownChat)
			return
		}
		if err := b.gameService.CreateGame(ctx, ev.ChatID); err != nil {
			log.WithError(err).WithField("chat_id", ev.ChatID).Error("Ошибка создания игры")
		}

	case cmdStart:
		err := b.registry.Start(ctx, ev.ChatID)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrNotEnoughPlayers):
			// Сообщение о нехватке игроков уже отправлено сервисом
		case errors.Is(err, common.ErrGameNotFound):
			log.WithField("chat_id", ev.ChatID).Debug("Старт без созданной игры")
		default:
			log.WithError(err).WithField("chat_id", ev.ChatID).Error("Ошибка старта игры")
		}

	case cmdFinish:
		if b.registry.Dispatch(ev.ChatID, game.Action{Kind: game.ActionFinish}) {
			return
		}
		// Контроллера нет: игра ещё в наборе игроков, завершаем напрямую
		if err := b.gameService.Finish(ctx, ev.ChatID); err != nil && !errors.Is(err, common.ErrGameNotFound) {
			log.WithError(err).WithField("chat_id", ev.ChatID).Error("Ошибка завершения игры")
		}

	case cmdLeave:
		b.registry.Dispatch(ev.ChatID, game.Action{Kind: game.ActionLeave, TelegramID: ev.From.TelegramID})
	}
}

func isKnownCommand(text string) bool {
	switch text {
	case cmdGreeting, cmdRecruit, cmdStart, cmdFinish, cmdLeave, cmdRules, cmdAbout:
		return true
	}
	return false
}

func (b *Bot) handleCallback(ctx context.Context, ev Event) {
	// «Часики» убираются сразу: и принятые, и тихо отклонённые действия
	// выглядят для Telegram одинаково
	if err := b.client.AnswerCallback(ctx, ev.CallbackID); err != nil {
		log.WithError(err).Debug("Ошибка подтверждения callback")
	}

	// Кнопки меню настроек живут в личных сообщениях
	if b.admin.HandleCallback(ctx, ev) {
		return
	}

	parsed, ok := ParseTradeCallback(ev.CallbackData)
	if !ok {
		log.WithField("data", ev.CallbackData).Debug("Неизвестный callback")
		return
	}

	var act game.Action
	switch {
	case parsed.Buy:
		act = game.Action{Kind: game.ActionBuy, TelegramID: ev.From.TelegramID, ShareID: parsed.ShareID}
	case parsed.Sell:
		act = game.Action{Kind: game.ActionSell, TelegramID: ev.From.TelegramID, ShareID: parsed.ShareID}
	case parsed.Leave:
		act = game.Action{Kind: game.ActionLeave, TelegramID: ev.From.TelegramID}
	case parsed.Finish:
		act = game.Action{Kind: game.ActionFinish}
	}

	if !b.registry.Dispatch(ev.ChatID, act) {
		log.WithField("chat_id", ev.ChatID).Debug("Кнопка от завершённой игры")
	}
}

func (b *Bot) handlePollAnswer(ctx context.Context, ev Event) {
	err := b.gameService.RegisterPollAnswer(ctx, ev.PollID, ev.From.TelegramID, ev.From.Username, ev.From.FirstName, ev.OptionIDs)
	if err != nil {
		log.WithError(err).WithField("poll_id", ev.PollID).Error("Ошибка регистрации ответа на опрос")
	}
}
