// Package users управляет пользователями бота и администраторами.
// models.go описывает структуры для таблиц users и admin_sessions.
package users

import "time"

// User представляет пользователя Telegram, известного боту.
// Запись создаётся лениво: при первом ответе на опрос о наборе игроков
// или при бутстрапе администратора на старте.
type User struct {
	ID         int64   `db:"id"`          // ID записи
	TelegramID int64   `db:"telegram_id"` // Telegram user ID (уникальный)
	Nickname   string  `db:"nickname"`    // username в Telegram
	FirstName  string  `db:"first_name"`  // Имя
	IsAdmin    bool    `db:"is_admin"`    // Флаг администратора
	Password   *string `db:"password"`    // Argon2id-хеш пароля (nil для обычных пользователей)
}

// AdminSession — сессия администратора в HTTP-панели.
type AdminSession struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`       // Telegram user ID администратора
	SessionToken string    `db:"session_token"` // Bearer-токен
	ExpiresAt    time.Time `db:"expires_at"`    // Истечение (24 часа после входа)
}
