// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// клиент Telegram, реестр игр, HTTP-панель и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/bot"
	"birzha-bot/internal/config"
	"birzha-bot/internal/db/postgres"
	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
	"birzha-bot/internal/httpapi"
	"birzha-bot/internal/jobs"
	"birzha-bot/internal/telegram"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	HTTP      *httpapi.Server
	Scheduler *jobs.Scheduler
	Registry  *game.Registry
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram ===
	client, err := telegram.NewClient(cfg.TelegramBotToken, cfg.BotPollTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool)
	settingsRepo := settings.NewRepository(pool)
	gameRepo := game.NewRepository(pool)

	// === 4. Сервисы ===
	userService := users.NewService(userRepo, cfg)
	settingsService := settings.NewService(settingsRepo)
	gameService := game.NewService(gameRepo, client, userService, settingsService)

	// Первый администратор из конфигурации
	if err := userService.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("ошибка создания администратора: %w", err)
	}

	// === 5. Реестр игр ===
	registry := game.NewRegistry(gameService, cfg.GameActionQueueSize)
	if err := registry.ResumeActive(ctx); err != nil {
		return nil, fmt.Errorf("ошибка возобновления игр: %w", err)
	}

	// === 6. Бот, HTTP-панель, планировщик ===
	adminPanel := bot.NewAdminPanel(client, userService, settingsService, gameRepo)
	b := bot.New(client, cfg, userService, gameService, registry, adminPanel)
	httpServer := httpapi.New(userService, settingsService, gameRepo)
	scheduler := jobs.NewScheduler(cfg.AppTimezone, userService, gameService, registry)

	log.Info("Приложение собрано")

	return &App{
		Bot:       b,
		HTTP:      httpServer,
		Scheduler: scheduler,
		Registry:  registry,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции по порядку.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Settings},
		{3, migration003Games},
		{4, migration004Shares},
		{5, migration005Inventories},
		{6, migration006Polls},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}
