package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestFromUpdate(t *testing.T) {
	t.Run("текстовое сообщение", func(t *testing.T) {
		u := tgbotapi.Update{Message: &tgbotapi.Message{
			Text: "Привет биржа",
			Chat: &tgbotapi.Chat{ID: -100, Type: "group"},
			From: &tgbotapi.User{ID: 11, UserName: "alice", FirstName: "Алиса"},
		}}
		ev, ok := FromUpdate(u)
		if !ok {
			t.Fatal("сообщение должно стать событием")
		}
		if ev.Kind != EventText || ev.ChatID != -100 || ev.From.TelegramID != 11 {
			t.Errorf("неожиданное событие: %+v", ev)
		}
		if ev.IsPrivate {
			t.Error("групповой чат помечен как личный")
		}
	})

	t.Run("нажатие кнопки", func(t *testing.T) {
		u := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			Data: "купить 5",
			From: &tgbotapi.User{ID: 22},
			Message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: -100},
			},
		}}
		ev, ok := FromUpdate(u)
		if !ok {
			t.Fatal("callback должен стать событием")
		}
		if ev.Kind != EventCallback || ev.CallbackData != "купить 5" || ev.ChatID != -100 {
			t.Errorf("неожиданное событие: %+v", ev)
		}
	})

	t.Run("ответ на опрос", func(t *testing.T) {
		u := tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{
			PollID:    "poll-1",
			User:      tgbotapi.User{ID: 33, UserName: "bob"},
			OptionIDs: []int{0},
		}}
		ev, ok := FromUpdate(u)
		if !ok {
			t.Fatal("ответ на опрос должен стать событием")
		}
		if ev.Kind != EventPollAnswer || ev.PollID != "poll-1" || len(ev.OptionIDs) != 1 {
			t.Errorf("неожиданное событие: %+v", ev)
		}
	})

	t.Run("пустое обновление отбрасывается", func(t *testing.T) {
		if _, ok := FromUpdate(tgbotapi.Update{}); ok {
			t.Error("пустое обновление не должно давать событие")
		}
	})
}

func TestParseTradeCallback(t *testing.T) {
	tests := []struct {
		data string
		ok   bool
		want TradeCallback
	}{
		{"купить 5", true, TradeCallback{Buy: true, ShareID: 5}},
		{"продать 7", true, TradeCallback{Sell: true, ShareID: 7}},
		{"покинуть", true, TradeCallback{Leave: true}},
		{"завершить", true, TradeCallback{Finish: true}},
		{"купить", false, TradeCallback{}},
		{"купить пять", false, TradeCallback{}},
		{"что-то ещё", false, TradeCallback{}},
		{"", false, TradeCallback{}},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, ok := ParseTradeCallback(tt.data)
			if ok != tt.ok {
				t.Fatalf("ok=%v, ожидали %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("разбор %q: %+v, ожидали %+v", tt.data, got, tt.want)
			}
		})
	}
}
