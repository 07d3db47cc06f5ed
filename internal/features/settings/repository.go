// Package settings — repository.go выполняет операции над таблицей game_settings.
// Геттеры возвращают скалярные значения полей, а не всю строку.
package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetAll возвращает все настройки одной строкой.
func (r *Repository) GetAll(ctx context.Context) (*Settings, error) {
	query := `
		SELECT turn_timer, turn_counter, player_balance, shares_minimal_price, shares_maximum_price
		FROM game_settings
		WHERE id = 1
	`
	var s Settings
	err := r.db.QueryRow(ctx, query).Scan(
		&s.TurnTimer, &s.TurnCounter, &s.PlayerBalance,
		&s.SharesMinimalPrice, &s.SharesMaximumPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения настроек: %w", err)
	}
	return &s, nil
}

// GetTurnTimer возвращает длительность хода в секундах.
func (r *Repository) GetTurnTimer(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRow(ctx, `SELECT turn_timer FROM game_settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения turn_timer: %w", err)
	}
	return v, nil
}

// UpdateTurnTimer обновляет длительность хода.
func (r *Repository) UpdateTurnTimer(ctx context.Context, turnTimer int) error {
	return r.update(ctx, `UPDATE game_settings SET turn_timer = $1 WHERE id = 1`, turnTimer)
}

// GetTurnCounter возвращает количество ходов в игре.
func (r *Repository) GetTurnCounter(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRow(ctx, `SELECT turn_counter FROM game_settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения turn_counter: %w", err)
	}
	return v, nil
}

// UpdateTurnCounter обновляет количество ходов.
func (r *Repository) UpdateTurnCounter(ctx context.Context, turnCounter int) error {
	return r.update(ctx, `UPDATE game_settings SET turn_counter = $1 WHERE id = 1`, turnCounter)
}

// GetPlayerBalance возвращает стартовый баланс игрока.
func (r *Repository) GetPlayerBalance(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRow(ctx, `SELECT player_balance FROM game_settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения player_balance: %w", err)
	}
	return v, nil
}

// UpdatePlayerBalance обновляет стартовый баланс игрока.
func (r *Repository) UpdatePlayerBalance(ctx context.Context, balance int64) error {
	return r.update(ctx, `UPDATE game_settings SET player_balance = $1 WHERE id = 1`, balance)
}

// GetSharesMinimalPrice возвращает нижнюю границу цены акции.
func (r *Repository) GetSharesMinimalPrice(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRow(ctx, `SELECT shares_minimal_price FROM game_settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения shares_minimal_price: %w", err)
	}
	return v, nil
}

// UpdateSharesMinimalPrice обновляет нижнюю границу цены.
func (r *Repository) UpdateSharesMinimalPrice(ctx context.Context, price int64) error {
	return r.update(ctx, `UPDATE game_settings SET shares_minimal_price = $1 WHERE id = 1`, price)
}

// GetSharesMaximumPrice возвращает верхнюю границу цены акции.
func (r *Repository) GetSharesMaximumPrice(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRow(ctx, `SELECT shares_maximum_price FROM game_settings WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения shares_maximum_price: %w", err)
	}
	return v, nil
}

// UpdateSharesMaximumPrice обновляет верхнюю границу цены.
func (r *Repository) UpdateSharesMaximumPrice(ctx context.Context, price int64) error {
	return r.update(ctx, `UPDATE game_settings SET shares_maximum_price = $1 WHERE id = 1`, price)
}

func (r *Repository) update(ctx context.Context, query string, arg any) error {
	_, err := r.db.Exec(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("ошибка обновления настроек: %w", err)
	}
	return nil
}
