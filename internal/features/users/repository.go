// Package users — repository.go отвечает за все операции с таблицами users,
// admin_sessions и admin_login_attempts в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"birzha-bot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет нового пользователя.
// На конфликте по telegram_id обновляет только имя/username
// (не трогает is_admin и пароль).
func (r *Repository) Create(ctx context.Context, telegramID int64, nickname, firstName string) (*User, error) {
	query := `
		INSERT INTO users (telegram_id, nickname, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE
		SET nickname = EXCLUDED.nickname,
		    first_name = EXCLUDED.first_name
		RETURNING id, telegram_id, nickname, first_name, is_admin, password
	`
	var u User
	err := r.db.QueryRow(ctx, query, telegramID, nickname, firstName).Scan(
		&u.ID, &u.TelegramID, &u.Nickname, &u.FirstName, &u.IsAdmin, &u.Password,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return &u, nil
}

// CreateAdmin создаёт администратора с хешем пароля.
// Используется при бутстрапе из конфигурации.
func (r *Repository) CreateAdmin(ctx context.Context, telegramID int64, nickname, firstName, passwordHash string) error {
	query := `
		INSERT INTO users (telegram_id, nickname, first_name, is_admin, password)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (telegram_id) DO UPDATE
		SET is_admin = TRUE, password = EXCLUDED.password
	`
	_, err := r.db.Exec(ctx, query, telegramID, nickname, firstName, passwordHash)
	if err != nil {
		return fmt.Errorf("ошибка создания администратора: %w", err)
	}
	return nil
}

// GetByID возвращает пользователя по внутреннему id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `SELECT id, telegram_id, nickname, first_name, is_admin, password FROM users WHERE id = $1`, id)
}

// GetByTelegramID возвращает пользователя по Telegram ID.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return r.getOne(ctx, `SELECT id, telegram_id, nickname, first_name, is_admin, password FROM users WHERE telegram_id = $1`, telegramID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.TelegramID, &u.Nickname, &u.FirstName, &u.IsAdmin, &u.Password,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return &u, nil
}

// List возвращает всех пользователей по порядку id.
func (r *Repository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, telegram_id, nickname, first_name, is_admin, password FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Nickname, &u.FirstName, &u.IsAdmin, &u.Password); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// IsAdmin проверяет флаг администратора по Telegram ID.
func (r *Repository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var isAdmin bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1 AND is_admin)`, telegramID,
	).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки администратора: %w", err)
	}
	return isAdmin, nil
}

// --- Сессии админ-панели ---

// CreateSession сохраняет новую сессию администратора.
func (r *Repository) CreateSession(ctx context.Context, s *AdminSession) error {
	query := `
		INSERT INTO admin_sessions (user_id, session_token, expires_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.Exec(ctx, query, s.UserID, s.SessionToken, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// GetSessionByToken возвращает действующую сессию по токену.
func (r *Repository) GetSessionByToken(ctx context.Context, token string) (*AdminSession, error) {
	query := `
		SELECT id, user_id, session_token, expires_at
		FROM admin_sessions
		WHERE session_token = $1 AND expires_at > NOW()
	`
	var s AdminSession
	err := r.db.QueryRow(ctx, query, token).Scan(&s.ID, &s.UserID, &s.SessionToken, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrSessionExpired
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// PurgeExpiredSessions удаляет истёкшие сессии и старые попытки входа.
// Вызывается планировщиком раз в час.
func (r *Repository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM admin_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", err)
	}
	_, err = r.db.Exec(ctx, `DELETE FROM admin_login_attempts WHERE attempt_time <= NOW() - INTERVAL '24 hours'`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки попыток входа: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Попытки входа (защита от brute-force) ---

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, telegramID int64, success bool) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_login_attempts (user_id, success) VALUES ($1, $2)`,
		telegramID, success,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// GetRecentFailedAttempts возвращает число неудачных попыток за окно.
func (r *Repository) GetRecentFailedAttempts(ctx context.Context, telegramID int64, window time.Duration) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND NOT success AND attempt_time > $2
	`, telegramID, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return count, nil
}
