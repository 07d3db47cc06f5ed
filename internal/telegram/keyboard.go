// keyboard.go — инлайн-клавиатуры бота.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"birzha-bot/internal/features/game"
)

// Данные callback-кнопок. Идентификатор акции дописывается через пробел.
const (
	CallbackBuyPrefix  = "купить"
	CallbackSellPrefix = "продать"
	CallbackLeave      = "покинуть"
	CallbackFinish     = "завершить"

	// Кнопки меню настроек; название настройки дописывается через пробел
	CallbackSettingPrefix = "настройка"
)

// marketKeyboard строит торговую клавиатуру: по строке «купить/продать»
// на каждую акцию игры плюс строка управления игрой.
func marketKeyboard(buttons []game.MarketButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons)+1)
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Купить %s", b.Name),
				fmt.Sprintf("%s %d", CallbackBuyPrefix, b.ShareID),
			),
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("Продать %s", b.Name),
				fmt.Sprintf("%s %d", CallbackSellPrefix, b.ShareID),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Покинуть игру", CallbackLeave),
		tgbotapi.NewInlineKeyboardButtonData("Завершить игру", CallbackFinish),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// settingsKeyboard строит меню настроек панели администратора.
func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	row := func(label, key string) []tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, CallbackSettingPrefix+" "+key),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row("Таймер хода", "таймер"),
		row("Число ходов", "ходы"),
		row("Стартовый баланс", "баланс"),
		row("Минимальная цена акции", "минимум"),
		row("Максимальная цена акции", "максимум"),
	)
}
