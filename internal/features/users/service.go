// Package users — service.go содержит логику аутентификации администраторов
// и ленивой регистрации пользователей.
package users

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"birzha-bot/internal/common"
	"birzha-bot/internal/config"
)

// Store — операции хранилища, нужные сервису пользователей.
// Реализуется *Repository; в тестах подменяется фейком.
type Store interface {
	Create(ctx context.Context, telegramID int64, nickname, firstName string) (*User, error)
	CreateAdmin(ctx context.Context, telegramID int64, nickname, firstName, passwordHash string) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	List(ctx context.Context) ([]*User, error)
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	CreateSession(ctx context.Context, s *AdminSession) error
	GetSessionByToken(ctx context.Context, token string) (*AdminSession, error)
	PurgeExpiredSessions(ctx context.Context) (int64, error)
	LogAttempt(ctx context.Context, telegramID int64, success bool) error
	GetRecentFailedAttempts(ctx context.Context, telegramID int64, window time.Duration) (int, error)
}

// Service управляет пользователями и администраторами.
type Service struct {
	store Store
	cfg   *config.Config
}

// NewService создаёт сервис пользователей.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// Bootstrap создаёт первого администратора из конфигурации, если его ещё нет.
// Вызывается один раз при старте приложения.
func (s *Service) Bootstrap(ctx context.Context) error {
	admin, err := s.store.GetByTelegramID(ctx, s.cfg.AdminTelegramID)
	if err == nil && admin.IsAdmin {
		return nil
	}
	if err := s.store.CreateAdmin(ctx,
		s.cfg.AdminTelegramID, s.cfg.AdminNickname, s.cfg.AdminFirstName, s.cfg.AdminPasswordHash,
	); err != nil {
		return err
	}
	log.WithField("telegram_id", s.cfg.AdminTelegramID).Info("Администратор создан")
	return nil
}

// EnsureUser регистрирует пользователя, если его ещё нет.
// Повторные вызовы лишь обновляют имя — дублей не возникает.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, nickname, firstName string) (*User, error) {
	return s.store.Create(ctx, telegramID, nickname, firstName)
}

// EnsureUserIfNamed — как EnsureUser, но пользователи без username
// молча пропускаются: для них регистрация невозможна.
func (s *Service) EnsureUserIfNamed(ctx context.Context, telegramID int64, nickname, firstName string) error {
	if nickname == "" {
		return nil
	}
	_, err := s.EnsureUser(ctx, telegramID, nickname, firstName)
	return err
}

// GetByID возвращает пользователя по внутреннему id.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// GetByTelegramID возвращает пользователя по Telegram ID.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return s.store.GetByTelegramID(ctx, telegramID)
}

// List возвращает всех пользователей.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// IsAdmin проверяет флаг администратора.
func (s *Service) IsAdmin(ctx context.Context, telegramID int64) bool {
	isAdmin, err := s.store.IsAdmin(ctx, telegramID)
	if err != nil {
		log.WithError(err).WithField("telegram_id", telegramID).Warn("Проверка администратора не удалась")
		return false
	}
	return isAdmin
}

// Login проверяет пароль администратора и выдаёт токен сессии.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, telegramID int64, password string) (string, error) {
	user, err := s.store.GetByTelegramID(ctx, telegramID)
	if err != nil || !user.IsAdmin || user.Password == nil {
		return "", common.ErrNotAdmin
	}

	attempts, err := s.store.GetRecentFailedAttempts(ctx, telegramID, 1*time.Hour)
	if err != nil {
		return "", err
	}
	if attempts >= 3 {
		return "", common.ErrTooManyAttempts
	}

	match := VerifyArgon2id(password, *user.Password)
	if err := s.store.LogAttempt(ctx, telegramID, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		return "", common.ErrWrongPassword
	}

	// Создаём сессию (24 часа)
	token := generateSecureToken()
	session := &AdminSession{
		UserID:       telegramID,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", err
	}

	log.WithField("telegram_id", telegramID).Info("Администратор вошёл в панель")
	return token, nil
}

// Authenticate проверяет токен сессии.
func (s *Service) Authenticate(ctx context.Context, token string) (*AdminSession, error) {
	return s.store.GetSessionByToken(ctx, token)
}

// PurgeExpiredSessions чистит истёкшие сессии (вызывается планировщиком).
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredSessions(ctx)
}

// --- Криптографические утилиты ---

// Параметры Argon2id, общие для генерации и проверки.
const (
	argonMemory      uint32 = 65536 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
)

// GenerateArgon2idHash хеширует пароль в стандартном формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
func GenerateArgon2idHash(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyArgon2id проверяет пароль по хешу Argon2id.
func VerifyArgon2id(password, encodedHash string) bool {
	// Парсим хеш
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	// Извлекаем параметры
	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	// Декодируем соль
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	// Декодируем хеш
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	// Вычисляем хеш введённого пароля
	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
