// controller.go — контроллер ходов и реестр активных игр.
//
// Каждая активная игра обслуживается одной горутиной-контроллером:
// все действия игроков и тики таймера хода выполняются последовательно
// в её цикле, поэтому покупка никогда не пересекается с пересчётом цен.
package game

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ActionKind — вид действия игрока.
type ActionKind int

const (
	ActionBuy ActionKind = iota
	ActionSell
	ActionLeave
	ActionFinish
)

// Action — действие игрока, поставленное в очередь контроллера.
type Action struct {
	Kind       ActionKind
	TelegramID int64
	ShareID    int64 // Только для покупки/продажи
}

// Controller ведёт одну игру: таймер ходов и последовательная
// обработка действий.
type Controller struct {
	svc  *Service
	game *Game
	cfg  *TurnConfig

	actions chan Action
	done    chan struct{}

	marketMsgID int
}

func newController(svc *Service, game *Game, cfg *TurnConfig, queueSize int) *Controller {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Controller{
		svc:     svc,
		game:    game,
		cfg:     cfg,
		actions: make(chan Action, queueSize),
		done:    make(chan struct{}),
	}
}

// Enqueue ставит действие в очередь контроллера.
// Возвращает false, если игра уже остановлена или очередь переполнена.
func (c *Controller) Enqueue(act Action) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.actions <- act:
		return true
	default:
		log.WithField("game_id", c.game.ID).Warn("Очередь действий переполнена, действие отброшено")
		return false
	}
}

// run — цикл жизни игры. Вызывается в отдельной горутине;
// onStop вызывается ровно один раз при любом пути завершения.
func (c *Controller) run(ctx context.Context, onStop func()) {
	defer close(c.done)
	defer onStop()

	logger := log.WithFields(log.Fields{"game_id": c.game.ID, "chat_id": c.game.ChatID})
	logger.WithField("turns", c.cfg.TurnCounter).Info("Игра стартовала")

	c.broadcast(ctx, true)

	timer := time.NewTimer(c.cfg.TurnTimer)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Контроллер игры остановлен")
			return

		case act := <-c.actions:
			if c.handleAction(ctx, act) {
				return
			}

		case <-timer.C:
			if c.tick(ctx) {
				return
			}
			timer.Reset(c.cfg.TurnTimer)
		}
	}
}

// handleAction выполняет действие игрока. Возвращает true,
// если игра завершилась.
func (c *Controller) handleAction(ctx context.Context, act Action) bool {
	logger := log.WithFields(log.Fields{
		"game_id":     c.game.ID,
		"telegram_id": act.TelegramID,
	})

	switch act.Kind {
	case ActionBuy:
		outcome, err := c.svc.Buy(ctx, c.game, act.TelegramID, act.ShareID)
		if err != nil {
			logger.WithError(err).Error("Ошибка покупки")
		} else if !outcome.OK {
			logger.WithField("reason", outcome.Reason).Debug("Покупка отклонена")
		}

	case ActionSell:
		outcome, err := c.svc.Sell(ctx, c.game, act.TelegramID, act.ShareID)
		if err != nil {
			logger.WithError(err).Error("Ошибка продажи")
		} else if !outcome.OK {
			logger.WithField("reason", outcome.Reason).Debug("Продажа отклонена")
		}

	case ActionLeave:
		alive, outcome, err := c.svc.Leave(ctx, c.game, act.TelegramID)
		if err != nil {
			logger.WithError(err).Error("Ошибка выхода из игры")
		}
		if err == nil && outcome.OK && alive < 2 {
			c.finish(ctx)
			return true
		}

	case ActionFinish:
		c.finish(ctx)
		return true
	}

	// Состояние транслируется после каждого действия, включая тихие отказы
	c.broadcast(ctx, false)
	return false
}

// tick — один ход: пересчёт цен, инкремент счётчика, проверка условий
// завершения, трансляция. Возвращает true, если игра завершилась.
func (c *Controller) tick(ctx context.Context) bool {
	logger := log.WithField("game_id", c.game.ID)

	if err := c.svc.RepriceShares(ctx, c.game.ID, c.cfg.MinPrice, c.cfg.MaxPrice); err != nil {
		logger.WithError(err).Error("Ошибка пересчёта цен")
	}

	game, err := c.svc.AdvanceTurn(ctx, c.game.ID)
	if err != nil {
		logger.WithError(err).Error("Ошибка смены хода")
		return false
	}
	c.game = game

	// Сбой чтения не завершает игру: порог живых игроков
	// перепроверится на следующем ходу
	aliveKnown := true
	alive, err := c.svc.AliveCount(ctx, c.game.ID)
	if err != nil {
		logger.WithError(err).Error("Ошибка подсчёта игроков")
		aliveKnown = false
	}

	if c.game.LastTurn >= c.cfg.TurnCounter || (aliveKnown && alive < 2) {
		c.finish(ctx)
		return true
	}

	c.broadcast(ctx, false)
	logger.WithField("turn", c.game.LastTurn).Debug("Новый ход")
	return false
}

func (c *Controller) finish(ctx context.Context) {
	if _, err := c.svc.FinishWithWinner(ctx, c.game.ID); err != nil {
		log.WithError(err).WithField("game_id", c.game.ID).Error("Ошибка завершения игры")
	}
}

// broadcast отправляет или редактирует сообщение о состоянии рынка.
func (c *Controller) broadcast(ctx context.Context, initial bool) {
	text, buttons, err := c.svc.MarketView(ctx, c.game.ID)
	if err != nil {
		log.WithError(err).WithField("game_id", c.game.ID).Error("Ошибка построения трансляции")
		return
	}

	if initial || c.marketMsgID == 0 {
		msgID, err := c.svc.messenger.SendMarket(ctx, c.game.ChatID, text, buttons)
		if err != nil {
			log.WithError(err).WithField("chat_id", c.game.ChatID).Error("Ошибка отправки трансляции")
			return
		}
		c.marketMsgID = msgID
		return
	}

	if err := c.svc.messenger.EditMarket(ctx, c.game.ChatID, c.marketMsgID, text, buttons); err != nil {
		log.WithError(err).WithField("chat_id", c.game.ChatID).Error("Ошибка обновления трансляции")
	}
}

// Registry — реестр контроллеров активных игр, по одному на чат.
type Registry struct {
	svc       *Service
	queueSize int

	mu          sync.Mutex
	controllers map[int64]*Controller // chat_id -> контроллер
}

// NewRegistry создаёт реестр контроллеров.
func NewRegistry(svc *Service, queueSize int) *Registry {
	return &Registry{
		svc:         svc,
		queueSize:   queueSize,
		controllers: make(map[int64]*Controller),
	}
}

// Start запускает ходы игры в чате. Если контроллер уже работает
// или игроков меньше двух — ничего не запускается.
func (r *Registry) Start(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	if _, ok := r.controllers[chatID]; ok {
		r.mu.Unlock()
		log.WithField("chat_id", chatID).Debug("Игра уже запущена")
		return nil
	}
	r.mu.Unlock()

	game, cfg, err := r.svc.StartGame(ctx, chatID)
	if err != nil {
		return err
	}

	r.attach(ctx, game, cfg)
	return nil
}

// ResumeActive возобновляет контроллеры для игр, оставшихся активными
// после перезапуска процесса. Игры продолжаются с сохранённого хода.
func (r *Registry) ResumeActive(ctx context.Context) error {
	games, err := r.svc.Store().GetAllActiveGames(ctx)
	if err != nil {
		return err
	}
	for _, game := range games {
		if game.Status() != StatusActive {
			// Набор игроков ещё не завершён командой старта,
			// таймер ходов не возобновляем
			continue
		}
		cfg, err := r.svc.TurnConfig(ctx)
		if err != nil {
			return err
		}
		r.attach(ctx, game, cfg)
		log.WithFields(log.Fields{"game_id": game.ID, "turn": game.LastTurn}).Info("Игра возобновлена после перезапуска")
	}
	return nil
}

func (r *Registry) attach(ctx context.Context, game *Game, cfg *TurnConfig) {
	ctl := newController(r.svc, game, cfg, r.queueSize)

	r.mu.Lock()
	r.controllers[game.ChatID] = ctl
	r.mu.Unlock()

	go ctl.run(ctx, func() {
		r.mu.Lock()
		if r.controllers[game.ChatID] == ctl {
			delete(r.controllers, game.ChatID)
		}
		r.mu.Unlock()
	})
}

// Dispatch передаёт действие контроллеру игры чата.
// Возвращает false, если активной игры в чате нет.
func (r *Registry) Dispatch(chatID int64, act Action) bool {
	r.mu.Lock()
	ctl, ok := r.controllers[chatID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return ctl.Enqueue(act)
}

// Attached сообщает, идёт ли в чате игра с запущенным контроллером.
func (r *Registry) Attached(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.controllers[chatID]
	return ok
}

// Count возвращает число работающих контроллеров.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
