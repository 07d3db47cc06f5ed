// Package telegram — тонкий клиент Telegram Bot API.
// Отвечает только за транспорт: отправку сообщений, опросов и клавиатур
// и получение обновлений. Никакой игровой логики здесь нет.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/features/game"
)

// Client оборачивает tgbotapi.BotAPI.
//
// Обновления запрашиваются вручную через GetUpdates с явным курсором:
// offset сдвигается методом Advance только после того, как пачка
// обработана. При падении процесса необработанные обновления придут
// повторно (доставка "хотя бы один раз").
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	offset      int
}

// NewClient авторизуется в Bot API.
func NewClient(token string, pollTimeoutSeconds int) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.WithField("username", api.Self.UserName).Info("Бот авторизован в Telegram")
	return &Client{api: api, pollTimeout: pollTimeoutSeconds}, nil
}

// Self возвращает username бота.
func (c *Client) Self() string {
	return c.api.Self.UserName
}

// GetUpdates запрашивает очередную пачку обновлений (long polling).
// Курсор не сдвигается: после обработки пачки нужно вызвать Advance.
func (c *Client) GetUpdates(_ context.Context) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(c.offset)
	cfg.Timeout = c.pollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query", "poll_answer"}

	return c.api.GetUpdates(cfg)
}

// Advance сдвигает курсор за обработанную пачку.
func (c *Client) Advance(updates []tgbotapi.Update) {
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
	}
}

// SendText отправляет текстовое сообщение.
func (c *Client) SendText(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

// SendRecruitPoll отправляет неанонимный опрос набора игроков
// и возвращает его идентификатор.
func (c *Client) SendRecruitPoll(_ context.Context, chatID int64) (string, error) {
	poll := tgbotapi.NewPoll(chatID, RecruitPollQuestion, RecruitPollYes, RecruitPollNo)
	poll.IsAnonymous = false
	poll.OpenPeriod = recruitPollOpenSeconds

	sent, err := c.api.Send(poll)
	if err != nil {
		return "", fmt.Errorf("ошибка отправки опроса: %w", err)
	}
	if sent.Poll == nil {
		return "", fmt.Errorf("ответ Telegram не содержит опроса")
	}
	return sent.Poll.ID, nil
}

// SendMarket отправляет трансляцию рынка с торговой клавиатурой.
func (c *Client) SendMarket(_ context.Context, chatID int64, text string, buttons []game.MarketButton) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = marketKeyboard(buttons)

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("ошибка отправки трансляции: %w", err)
	}
	return sent.MessageID, nil
}

// EditMarket обновляет текст и клавиатуру трансляции на месте.
func (c *Client) EditMarket(_ context.Context, chatID int64, messageID int, text string, buttons []game.MarketButton) error {
	kb := marketKeyboard(buttons)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := c.api.Send(edit); err != nil {
		// "message is not modified" приходит, когда трансляция не изменилась
		// после тихого отказа; это не сбой
		if isNotModified(err) {
			log.WithField("chat_id", chatID).Debug("Трансляция не изменилась")
			return nil
		}
		return fmt.Errorf("ошибка обновления трансляции: %w", err)
	}
	return nil
}

// isNotModified распознаёт ответ Bot API "message is not modified".
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}

// SendSettingsMenu отправляет текст с меню настроек администратора.
func (c *Client) SendSettingsMenu(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = settingsKeyboard()
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки меню настроек: %w", err)
	}
	return nil
}

// AnswerCallback подтверждает нажатие кнопки (убирает «часики»).
func (c *Client) AnswerCallback(_ context.Context, callbackID string) error {
	cb := tgbotapi.NewCallback(callbackID, "")
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("ошибка ответа на callback: %w", err)
	}
	return nil
}
