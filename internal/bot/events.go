// Package bot — приём обновлений Telegram и маршрутизация к игре.
// events.go переводит сырые tgbotapi.Update в типизированные события:
// дальше по конвейеру идут только они.
package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"birzha-bot/internal/telegram"
)

// EventKind — вид входящего события.
type EventKind int

const (
	// EventText — текстовое сообщение в чате
	EventText EventKind = iota
	// EventCallback — нажатие инлайн-кнопки
	EventCallback
	// EventPollAnswer — ответ на опрос набора игроков
	EventPollAnswer
)

// Sender — отправитель события.
type Sender struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// Event — одно типизированное входящее событие.
type Event struct {
	Kind      EventKind
	ChatID    int64
	IsPrivate bool
	From      Sender

	// EventText
	Text string

	// EventCallback
	CallbackID   string
	CallbackData string

	// EventPollAnswer
	PollID    string
	OptionIDs []int
}

// FromUpdate переводит обновление Telegram в событие.
// Обновления без полезной нагрузки (редактирования, сервисные
// сообщения) отбрасываются: вторым значением возвращается false.
func FromUpdate(u tgbotapi.Update) (Event, bool) {
	switch {
	case u.Message != nil && u.Message.Text != "" && u.Message.From != nil:
		return Event{
			Kind:      EventText,
			ChatID:    u.Message.Chat.ID,
			IsPrivate: u.Message.Chat.IsPrivate(),
			From: Sender{
				TelegramID: u.Message.From.ID,
				Username:   u.Message.From.UserName,
				FirstName:  u.Message.From.FirstName,
			},
			Text: u.Message.Text,
		}, true

	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		ev := Event{
			Kind: EventCallback,
			From: Sender{
				TelegramID: u.CallbackQuery.From.ID,
				Username:   u.CallbackQuery.From.UserName,
				FirstName:  u.CallbackQuery.From.FirstName,
			},
			CallbackID:   u.CallbackQuery.ID,
			CallbackData: u.CallbackQuery.Data,
		}
		if u.CallbackQuery.Message != nil {
			ev.ChatID = u.CallbackQuery.Message.Chat.ID
		}
		return ev, true

	case u.PollAnswer != nil:
		return Event{
			Kind: EventPollAnswer,
			From: Sender{
				TelegramID: u.PollAnswer.User.ID,
				Username:   u.PollAnswer.User.UserName,
				FirstName:  u.PollAnswer.User.FirstName,
			},
			PollID:    u.PollAnswer.PollID,
			OptionIDs: u.PollAnswer.OptionIDs,
		}, true
	}
	return Event{}, false
}

// TradeCallback — разобранные данные торговой кнопки.
type TradeCallback struct {
	Buy     bool
	Sell    bool
	Leave   bool
	Finish  bool
	ShareID int64
}

// ParseTradeCallback разбирает данные callback-кнопки рынка.
// Неизвестные данные возвращают false.
func ParseTradeCallback(data string) (TradeCallback, bool) {
	switch data {
	case telegram.CallbackLeave:
		return TradeCallback{Leave: true}, true
	case telegram.CallbackFinish:
		return TradeCallback{Finish: true}, true
	}

	fields := strings.Fields(data)
	if len(fields) != 2 {
		return TradeCallback{}, false
	}
	shareID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return TradeCallback{}, false
	}

	switch fields[0] {
	case telegram.CallbackBuyPrefix:
		return TradeCallback{Buy: true, ShareID: shareID}, true
	case telegram.CallbackSellPrefix:
		return TradeCallback{Sell: true, ShareID: shareID}, true
	}
	return TradeCallback{}, false
}
