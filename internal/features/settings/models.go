// Package settings хранит игровые настройки — единственную строку
// таблицы game_settings.
package settings

// Settings — настройки игры.
// Таймер и количество ходов, стартовый баланс игрока и границы цен акций.
// Запись одна на всю систему (id = 1), создаётся миграцией.
type Settings struct {
	TurnTimer          int   `db:"turn_timer"`           // Длительность хода, секунды
	TurnCounter        int   `db:"turn_counter"`         // Количество ходов в игре
	PlayerBalance      int64 `db:"player_balance"`       // Стартовый баланс игрока
	SharesMinimalPrice int64 `db:"shares_minimal_price"` // Нижняя граница цены акции
	SharesMaximumPrice int64 `db:"shares_maximum_price"` // Верхняя граница цены акции
}
