// Package game — ядро бота: сущности биржевой игры, правила торговли
// и контроллер ходов.
// models.go описывает структуры таблиц games, players, shares,
// game_inventory, player_inventory и polls.
package game

import "time"

// Status — состояние жизненного цикла игры.
type Status string

const (
	// StatusRecruiting — опрос отправлен, идёт набор игроков
	StatusRecruiting Status = "recruiting"
	// StatusActive — ходы идут, торговля открыта
	StatusActive Status = "active"
	// StatusFinished — терминальное состояние
	StatusFinished Status = "finished"
)

// Game — одна игровая сессия в чате.
// В чате может быть не больше одной активной игры; повторное создание
// при активной игре — no-op.
type Game struct {
	ID        int64      `db:"id"`
	ChatID    int64      `db:"chat_id"`
	StartedAt time.Time  `db:"started_at"`
	FinishAt  *time.Time `db:"finish_at"` // nil, пока игра не завершена
	IsActive  bool       `db:"is_active"`
	LastTurn  int        `db:"last_turn"` // Номер последнего сыгранного хода
}

// Status выводит состояние жизненного цикла из полей записи:
// активная игра без сыгранных ходов ещё набирает игроков.
func (g *Game) Status() Status {
	switch {
	case !g.IsActive:
		return StatusFinished
	case g.LastTurn == 0:
		return StatusRecruiting
	default:
		return StatusActive
	}
}

// Player — участник конкретной игры.
// Баланс меняется только операциями increase/decrease и никогда
// не опускается ниже нуля. Запись не удаляется: выход из игры
// ставит alive=false.
type Player struct {
	ID      int64 `db:"id"`
	UserID  int64 `db:"user_id"` // Внутренний id пользователя
	GameID  int64 `db:"game_id"`
	Balance int64 `db:"balance"`
	Alive   bool  `db:"alive"`
}

// Share — акция в глобальном каталоге.
// Каталог управляется администратором и не зависит от игр.
type Share struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"` // Уникальное название
	StartPrice int64  `db:"start_price"`
}

// GameInventoryItem — текущая цена акции в рамках одной игры.
// По строке на пару (акция, игра); цена меняется каждый ход
// случайно в границах настроек.
type GameInventoryItem struct {
	ShareID int64 `db:"share_id"`
	GameID  int64 `db:"game_id"`
	Price   int64 `db:"price"`
}

// PlayerInventoryItem — одна купленная единица акции.
// Количество акций игрока = числу строк для пары (игрок, акция).
type PlayerInventoryItem struct {
	ID         int64 `db:"id"`
	ShareID    int64 `db:"share_id"`
	ShareOwner int64 `db:"share_owner"` // id игрока
}

// Poll связывает опрос Telegram с игрой, ждущей набора игроков.
type Poll struct {
	PollID string `db:"poll_id"`
	GameID int64  `db:"game_id"`
}

// RejectReason — причина отклонения действия игрока.
// Внешне отклонение остаётся тихим no-op (состояние в трансляции
// просто не меняется), но внутри причина именована — для логов и тестов.
type RejectReason string

const (
	ReasonNone              RejectReason = ""
	ReasonNoGame            RejectReason = "no_active_game"
	ReasonNoPlayer          RejectReason = "player_not_in_game"
	ReasonNoSuchItem        RejectReason = "share_not_in_game"
	ReasonInsufficientFunds RejectReason = "insufficient_funds"
	ReasonNotOwned          RejectReason = "share_not_owned"
)

// Outcome — результат действия купить/продать/выйти.
type Outcome struct {
	OK     bool
	Reason RejectReason
}

// Accepted — успешный результат.
func Accepted() Outcome { return Outcome{OK: true} }

// Rejected — именованный отказ.
func Rejected(reason RejectReason) Outcome { return Outcome{OK: false, Reason: reason} }

// MarketButton — данные для кнопки «купить/продать» в клавиатуре рынка.
type MarketButton struct {
	ShareID int64
	Name    string
}

// Winner — итог игры.
type Winner struct {
	PlayerID   int64
	FirstName  string
	TotalValue int64 // Баланс + стоимость портфеля по текущим ценам игры
}
