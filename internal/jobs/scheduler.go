// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасная чистка истёкших
// админ-сессий и ежеминутный надзор за зависшими играми.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/users"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron        *cron.Cron
	loc         *time.Location
	userService *users.Service
	gameService *game.Service
	registry    *game.Registry
}

// NewScheduler создаёт планировщик задач в часовом поясе из конфигурации
// (APP_TIMEZONE). Неизвестный пояс откатывается на UTC+3.
func NewScheduler(timezone string, userService *users.Service, gameService *game.Service, registry *game.Registry) *Scheduler {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", timezone).Warn("Не удалось загрузить часовой пояс, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		loc:         loc,
		userService: userService,
		gameService: gameService,
		registry:    registry,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Чистка истёкших админ-сессий каждый час
	s.cron.AddFunc("0 * * * *", func() {
		purged, err := s.userService.PurgeExpiredSessions(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка чистки сессий")
			return
		}
		if purged > 0 {
			log.WithField("purged", purged).Info("[CRON] Истёкшие сессии удалены")
		}
	})

	// Надзор за играми каждую минуту: активная игра в БД без контроллера
	// в памяти означает, что её таймер потерян (например после паники).
	// Задача только сигналит в лог, решение за оператором.
	s.cron.AddFunc("* * * * *", func() {
		games, err := s.gameService.Store().GetAllActiveGames(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка проверки активных игр")
			return
		}
		for _, g := range games {
			if g.Status() == game.StatusActive && !s.registry.Attached(g.ChatID) {
				log.WithFields(log.Fields{
					"game_id": g.ID,
					"chat_id": g.ChatID,
					"turn":    g.LastTurn,
				}).Warn("[CRON] Активная игра без контроллера")
			}
		}
	})

	s.cron.Start()
	log.WithField("timezone", s.loc.String()).Info("Планировщик задач запущен")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
