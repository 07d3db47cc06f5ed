// Package game — repository.go выполняет все операции с игровыми таблицами.
// Денежные операции (покупка, продажа) выполняются в транзакциях БД
// для целостности данных.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"birzha-bot/internal/common"
)

// Repository предоставляет методы для работы с играми, игроками,
// акциями и инвентарями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий игры.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// --- Игры ---

// CreateGame создаёт новую игру в чате.
func (r *Repository) CreateGame(ctx context.Context, chatID int64) (*Game, error) {
	query := `
		INSERT INTO games (chat_id, started_at, is_active, last_turn)
		VALUES ($1, NOW(), TRUE, 0)
		RETURNING id, chat_id, started_at, finish_at, is_active, last_turn
	`
	var g Game
	err := r.db.QueryRow(ctx, query, chatID).Scan(
		&g.ID, &g.ChatID, &g.StartedAt, &g.FinishAt, &g.IsActive, &g.LastTurn,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания игры: %w", err)
	}
	return &g, nil
}

// GetGameByID возвращает игру по id.
func (r *Repository) GetGameByID(ctx context.Context, gameID int64) (*Game, error) {
	return r.getGame(ctx,
		`SELECT id, chat_id, started_at, finish_at, is_active, last_turn FROM games WHERE id = $1`, gameID)
}

// GetActiveGameByChat возвращает активную игру чата.
// Если активной игры нет — common.ErrGameNotFound.
func (r *Repository) GetActiveGameByChat(ctx context.Context, chatID int64) (*Game, error) {
	return r.getGame(ctx,
		`SELECT id, chat_id, started_at, finish_at, is_active, last_turn FROM games WHERE chat_id = $1 AND is_active`, chatID)
}

func (r *Repository) getGame(ctx context.Context, query string, arg any) (*Game, error) {
	var g Game
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&g.ID, &g.ChatID, &g.StartedAt, &g.FinishAt, &g.IsActive, &g.LastTurn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrGameNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игры: %w", err)
	}
	return &g, nil
}

// GetAllActiveGames возвращает все активные игры системы.
// Используется как guard при изменении настроек и при рестарте.
func (r *Repository) GetAllActiveGames(ctx context.Context) ([]*Game, error) {
	return r.listGames(ctx,
		`SELECT id, chat_id, started_at, finish_at, is_active, last_turn FROM games WHERE is_active ORDER BY id`)
}

// GetAllFinishedGames возвращает все завершённые игры.
func (r *Repository) GetAllFinishedGames(ctx context.Context) ([]*Game, error) {
	return r.listGames(ctx,
		`SELECT id, chat_id, started_at, finish_at, is_active, last_turn FROM games WHERE NOT is_active ORDER BY id`)
}

// GetLastChatGame возвращает последнюю завершённую игру чата.
func (r *Repository) GetLastChatGame(ctx context.Context, chatID int64) (*Game, error) {
	return r.getGame(ctx, `
		SELECT id, chat_id, started_at, finish_at, is_active, last_turn
		FROM games
		WHERE chat_id = $1 AND NOT is_active
		ORDER BY finish_at DESC
		LIMIT 1
	`, chatID)
}

func (r *Repository) listGames(ctx context.Context, query string) ([]*Game, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка игр: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.ChatID, &g.StartedAt, &g.FinishAt, &g.IsActive, &g.LastTurn); err != nil {
			return nil, fmt.Errorf("ошибка сканирования игры: %w", err)
		}
		games = append(games, &g)
	}
	return games, rows.Err()
}

// IncreaseGameTurn увеличивает счётчик ходов игры на единицу.
func (r *Repository) IncreaseGameTurn(ctx context.Context, gameID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE games SET last_turn = last_turn + 1 WHERE id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("ошибка увеличения хода: %w", err)
	}
	return nil
}

// FinishGame помечает игру завершённой.
// finish_at и last_turn после этого не меняются.
func (r *Repository) FinishGame(ctx context.Context, gameID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE games SET finish_at = NOW(), is_active = FALSE WHERE id = $1 AND is_active`, gameID)
	if err != nil {
		return fmt.Errorf("ошибка завершения игры: %w", err)
	}
	return nil
}

// --- Игроки ---

// CreatePlayer добавляет игрока в игру со стартовым балансом.
func (r *Repository) CreatePlayer(ctx context.Context, userID, gameID, balance int64) (*Player, error) {
	query := `
		INSERT INTO players (user_id, game_id, balance, alive)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, user_id, game_id, balance, alive
	`
	var p Player
	err := r.db.QueryRow(ctx, query, userID, gameID, balance).Scan(
		&p.ID, &p.UserID, &p.GameID, &p.Balance, &p.Alive,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания игрока: %w", err)
	}
	return &p, nil
}

// GetPlayerByID возвращает игрока по id.
func (r *Repository) GetPlayerByID(ctx context.Context, playerID int64) (*Player, error) {
	var p Player
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, game_id, balance, alive FROM players WHERE id = $1`, playerID,
	).Scan(&p.ID, &p.UserID, &p.GameID, &p.Balance, &p.Alive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игрока: %w", err)
	}
	return &p, nil
}

// GetPlayerByUserAndGame возвращает игрока по паре (пользователь, игра).
func (r *Repository) GetPlayerByUserAndGame(ctx context.Context, userID, gameID int64) (*Player, error) {
	var p Player
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, game_id, balance, alive FROM players WHERE user_id = $1 AND game_id = $2`,
		userID, gameID,
	).Scan(&p.ID, &p.UserID, &p.GameID, &p.Balance, &p.Alive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игрока: %w", err)
	}
	return &p, nil
}

// GetAlivePlayers возвращает живых игроков игры по порядку id.
// Порядок важен: при равенстве итоговых сумм побеждает первый.
func (r *Repository) GetAlivePlayers(ctx context.Context, gameID int64) ([]*Player, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, game_id, balance, alive FROM players WHERE game_id = $1 AND alive ORDER BY id`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения игроков: %w", err)
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.UserID, &p.GameID, &p.Balance, &p.Alive); err != nil {
			return nil, fmt.Errorf("ошибка сканирования игрока: %w", err)
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

// IncreasePlayerBalance увеличивает баланс игрока.
func (r *Repository) IncreasePlayerBalance(ctx context.Context, playerID, value int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE players SET balance = balance + $2 WHERE id = $1`, playerID, value)
	if err != nil {
		return fmt.Errorf("ошибка увеличения баланса: %w", err)
	}
	return nil
}

// DecreasePlayerBalance уменьшает баланс игрока.
// Баланс никогда не уходит в минус: списание ограничено нулём.
func (r *Repository) DecreasePlayerBalance(ctx context.Context, playerID, value int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE players SET balance = GREATEST(balance - $2, 0) WHERE id = $1`, playerID, value)
	if err != nil {
		return fmt.Errorf("ошибка уменьшения баланса: %w", err)
	}
	return nil
}

// MarkPlayerDead помечает игрока выбывшим (alive = false).
func (r *Repository) MarkPlayerDead(ctx context.Context, playerID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE players SET alive = FALSE WHERE id = $1`, playerID)
	if err != nil {
		return fmt.Errorf("ошибка пометки игрока: %w", err)
	}
	return nil
}

// --- Каталог акций ---

// CreateShare добавляет акцию в каталог.
func (r *Repository) CreateShare(ctx context.Context, name string, startPrice int64) (*Share, error) {
	var s Share
	err := r.db.QueryRow(ctx,
		`INSERT INTO shares (name, start_price) VALUES ($1, $2) RETURNING id, name, start_price`,
		name, startPrice,
	).Scan(&s.ID, &s.Name, &s.StartPrice)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания акции: %w", err)
	}
	return &s, nil
}

// GetShares возвращает весь каталог по порядку id.
func (r *Repository) GetShares(ctx context.Context) ([]*Share, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, start_price FROM shares ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога акций: %w", err)
	}
	defer rows.Close()
	return scanShares(rows)
}

// GetShareByID возвращает акцию по id.
func (r *Repository) GetShareByID(ctx context.Context, shareID int64) (*Share, error) {
	return r.getShare(ctx, `SELECT id, name, start_price FROM shares WHERE id = $1`, shareID)
}

// GetShareByName возвращает акцию по названию.
func (r *Repository) GetShareByName(ctx context.Context, name string) (*Share, error) {
	return r.getShare(ctx, `SELECT id, name, start_price FROM shares WHERE name = $1`, name)
}

func (r *Repository) getShare(ctx context.Context, query string, arg any) (*Share, error) {
	var s Share
	err := r.db.QueryRow(ctx, query, arg).Scan(&s.ID, &s.Name, &s.StartPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrShareNotFound
		}
		return nil, fmt.Errorf("ошибка чтения акции: %w", err)
	}
	return &s, nil
}

// DeleteShare удаляет акцию из каталога.
// Строки game_inventory и player_inventory прошлых игр удаляются каскадом
// на уровне схемы — осиротевших ссылок не остаётся.
func (r *Repository) DeleteShare(ctx context.Context, shareID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM shares WHERE id = $1`, shareID)
	if err != nil {
		return fmt.Errorf("ошибка удаления акции: %w", err)
	}
	return nil
}

// UpdateShareStartPrice обновляет стартовую цену акции.
func (r *Repository) UpdateShareStartPrice(ctx context.Context, shareID, price int64) error {
	_, err := r.db.Exec(ctx, `UPDATE shares SET start_price = $2 WHERE id = $1`, shareID, price)
	if err != nil {
		return fmt.Errorf("ошибка обновления стартовой цены: %w", err)
	}
	return nil
}

// --- Инвентарь игры (цены текущего хода) ---

// GetGameInventory возвращает все позиции игры по порядку акций.
func (r *Repository) GetGameInventory(ctx context.Context, gameID int64) ([]*GameInventoryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT share_id, game_id, price FROM game_inventory WHERE game_id = $1 ORDER BY share_id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря игры: %w", err)
	}
	defer rows.Close()

	var items []*GameInventoryItem
	for rows.Next() {
		var it GameInventoryItem
		if err := rows.Scan(&it.ShareID, &it.GameID, &it.Price); err != nil {
			return nil, fmt.Errorf("ошибка сканирования позиции: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// GetGameInventoryItem возвращает позицию по паре (игра, акция).
func (r *Repository) GetGameInventoryItem(ctx context.Context, gameID, shareID int64) (*GameInventoryItem, error) {
	var it GameInventoryItem
	err := r.db.QueryRow(ctx,
		`SELECT share_id, game_id, price FROM game_inventory WHERE game_id = $1 AND share_id = $2`,
		gameID, shareID,
	).Scan(&it.ShareID, &it.GameID, &it.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrShareNotFound
		}
		return nil, fmt.Errorf("ошибка чтения позиции: %w", err)
	}
	return &it, nil
}

// AddShareToGameInventory создаёт позицию акции в игре.
func (r *Repository) AddShareToGameInventory(ctx context.Context, gameID, shareID, price int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO game_inventory (share_id, game_id, price) VALUES ($1, $2, $3)`,
		shareID, gameID, price)
	if err != nil {
		return fmt.Errorf("ошибка добавления позиции: %w", err)
	}
	return nil
}

// ChangeItemPrice устанавливает новую цену позиции.
func (r *Repository) ChangeItemPrice(ctx context.Context, gameID, shareID, price int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE game_inventory SET price = $3 WHERE game_id = $1 AND share_id = $2`,
		gameID, shareID, price)
	if err != nil {
		return fmt.Errorf("ошибка изменения цены: %w", err)
	}
	return nil
}

// --- Инвентарь игрока ---

// BuyShare атомарно добавляет единицу акции игроку и списывает цену
// с его баланса (с ограничением нулём).
func (r *Repository) BuyShare(ctx context.Context, playerID, shareID, price int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO player_inventory (share_id, share_owner) VALUES ($1, $2)`,
		shareID, playerID); err != nil {
		return fmt.Errorf("ошибка добавления акции игроку: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE players SET balance = GREATEST(balance - $2, 0) WHERE id = $1`,
		playerID, price); err != nil {
		return fmt.Errorf("ошибка списания за покупку: %w", err)
	}

	return tx.Commit(ctx)
}

// SellShare атомарно удаляет ровно одну единицу акции у игрока
// и начисляет цену на его баланс.
func (r *Repository) SellShare(ctx context.Context, playerID, shareID, price int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Удаляем одну строку инвентаря (любую из принадлежащих паре)
	tag, err := tx.Exec(ctx, `
		DELETE FROM player_inventory
		WHERE id = (
			SELECT id FROM player_inventory
			WHERE share_id = $1 AND share_owner = $2
			LIMIT 1
		)
	`, shareID, playerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления акции игрока: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrShareNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE players SET balance = balance + $2 WHERE id = $1`,
		playerID, price); err != nil {
		return fmt.Errorf("ошибка начисления за продажу: %w", err)
	}

	return tx.Commit(ctx)
}

// GetPlayerInventory возвращает все единицы акций игрока.
func (r *Repository) GetPlayerInventory(ctx context.Context, playerID int64) ([]*PlayerInventoryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, share_id, share_owner FROM player_inventory WHERE share_owner = $1 ORDER BY id`,
		playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря игрока: %w", err)
	}
	defer rows.Close()

	var items []*PlayerInventoryItem
	for rows.Next() {
		var it PlayerInventoryItem
		if err := rows.Scan(&it.ID, &it.ShareID, &it.ShareOwner); err != nil {
			return nil, fmt.Errorf("ошибка сканирования инвентаря: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// CountPlayerShares возвращает число единиц акции у игрока.
func (r *Repository) CountPlayerShares(ctx context.Context, playerID, shareID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM player_inventory WHERE share_owner = $1 AND share_id = $2`,
		playerID, shareID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта акций: %w", err)
	}
	return count, nil
}

// GetPlayerShares возвращает различные акции, которыми владеет игрок.
func (r *Repository) GetPlayerShares(ctx context.Context, playerID int64) ([]*Share, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT s.id, s.name, s.start_price
		FROM shares s
		JOIN player_inventory pi ON s.id = pi.share_id
		WHERE pi.share_owner = $1
		ORDER BY s.id
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения акций игрока: %w", err)
	}
	defer rows.Close()
	return scanShares(rows)
}

func scanShares(rows pgx.Rows) ([]*Share, error) {
	var shares []*Share
	for rows.Next() {
		var s Share
		if err := rows.Scan(&s.ID, &s.Name, &s.StartPrice); err != nil {
			return nil, fmt.Errorf("ошибка сканирования акции: %w", err)
		}
		shares = append(shares, &s)
	}
	return shares, rows.Err()
}

// --- Опросы набора игроков ---

// CreatePoll сохраняет связь опроса Telegram с игрой.
func (r *Repository) CreatePoll(ctx context.Context, pollID string, gameID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO polls (poll_id, game_id) VALUES ($1, $2) ON CONFLICT (poll_id) DO NOTHING`,
		pollID, gameID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения опроса: %w", err)
	}
	return nil
}

// GetPoll возвращает связь опроса с игрой.
func (r *Repository) GetPoll(ctx context.Context, pollID string) (*Poll, error) {
	var p Poll
	err := r.db.QueryRow(ctx,
		`SELECT poll_id, game_id FROM polls WHERE poll_id = $1`, pollID,
	).Scan(&p.PollID, &p.GameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrGameNotFound
		}
		return nil, fmt.Errorf("ошибка чтения опроса: %w", err)
	}
	return &p, nil
}
