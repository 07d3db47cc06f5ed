// Package game — service.go содержит бизнес-правила биржевой игры:
// создание игры и набор игроков, покупка/продажа/выход, пересчёт цен
// и вычисление победителя.
//
// Сервис потребляет хранилище и шлюз сообщений через узкие интерфейсы:
// в проде это репозиторий поверх PostgreSQL и клиент Telegram,
// в тестах — фейки в памяти.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/common"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
)

// Store — операции хранилища, нужные ядру игры.
type Store interface {
	CreateGame(ctx context.Context, chatID int64) (*Game, error)
	GetGameByID(ctx context.Context, gameID int64) (*Game, error)
	GetActiveGameByChat(ctx context.Context, chatID int64) (*Game, error)
	GetAllActiveGames(ctx context.Context) ([]*Game, error)
	GetAllFinishedGames(ctx context.Context) ([]*Game, error)
	GetLastChatGame(ctx context.Context, chatID int64) (*Game, error)
	IncreaseGameTurn(ctx context.Context, gameID int64) error
	FinishGame(ctx context.Context, gameID int64) error

	CreatePlayer(ctx context.Context, userID, gameID, balance int64) (*Player, error)
	GetPlayerByID(ctx context.Context, playerID int64) (*Player, error)
	GetPlayerByUserAndGame(ctx context.Context, userID, gameID int64) (*Player, error)
	GetAlivePlayers(ctx context.Context, gameID int64) ([]*Player, error)
	IncreasePlayerBalance(ctx context.Context, playerID, value int64) error
	DecreasePlayerBalance(ctx context.Context, playerID, value int64) error
	MarkPlayerDead(ctx context.Context, playerID int64) error

	CreateShare(ctx context.Context, name string, startPrice int64) (*Share, error)
	GetShares(ctx context.Context) ([]*Share, error)
	GetShareByID(ctx context.Context, shareID int64) (*Share, error)
	GetShareByName(ctx context.Context, name string) (*Share, error)
	DeleteShare(ctx context.Context, shareID int64) error
	UpdateShareStartPrice(ctx context.Context, shareID, price int64) error

	GetGameInventory(ctx context.Context, gameID int64) ([]*GameInventoryItem, error)
	GetGameInventoryItem(ctx context.Context, gameID, shareID int64) (*GameInventoryItem, error)
	AddShareToGameInventory(ctx context.Context, gameID, shareID, price int64) error
	ChangeItemPrice(ctx context.Context, gameID, shareID, price int64) error

	BuyShare(ctx context.Context, playerID, shareID, price int64) error
	SellShare(ctx context.Context, playerID, shareID, price int64) error
	GetPlayerInventory(ctx context.Context, playerID int64) ([]*PlayerInventoryItem, error)
	CountPlayerShares(ctx context.Context, playerID, shareID int64) (int, error)
	GetPlayerShares(ctx context.Context, playerID int64) ([]*Share, error)

	CreatePoll(ctx context.Context, pollID string, gameID int64) error
	GetPoll(ctx context.Context, pollID string) (*Poll, error)
}

// Messenger — исходящие операции шлюза сообщений.
// Реализуется клиентом Telegram; результат доставки для ядра непрозрачен.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendRecruitPoll(ctx context.Context, chatID int64) (pollID string, err error)
	SendMarket(ctx context.Context, chatID int64, text string, buttons []MarketButton) (messageID int, err error)
	EditMarket(ctx context.Context, chatID int64, messageID int, text string, buttons []MarketButton) error
}

// UserDirectory — доступ к пользователям (ленивая регистрация и имена).
type UserDirectory interface {
	EnsureUser(ctx context.Context, telegramID int64, nickname, firstName string) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*users.User, error)
}

// SettingsSource — чтение игровых настроек.
type SettingsSource interface {
	GetAll(ctx context.Context) (*settings.Settings, error)
}

// TurnConfig — снимок настроек на момент старта игры.
// Настройки нельзя менять при активной игре, поэтому снимок корректен
// на всё время её жизни.
type TurnConfig struct {
	TurnTimer   time.Duration
	TurnCounter int
	MinPrice    int64
	MaxPrice    int64
}

// Service реализует правила игры.
type Service struct {
	store     Store
	messenger Messenger
	userDir   UserDirectory
	settings  SettingsSource
}

// NewService создаёт сервис игры.
func NewService(store Store, messenger Messenger, userDir UserDirectory, settingsSrc SettingsSource) *Service {
	return &Service{
		store:     store,
		messenger: messenger,
		userDir:   userDir,
		settings:  settingsSrc,
	}
}

// Store открывает хранилище для сопутствующих потребителей (HTTP-панель).
func (s *Service) Store() Store { return s.store }

// TurnConfig строит снимок настроек для контроллера ходов.
func (s *Service) TurnConfig(ctx context.Context) (*TurnConfig, error) {
	st, err := s.settings.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &TurnConfig{
		TurnTimer:   time.Duration(st.TurnTimer) * time.Second,
		TurnCounter: st.TurnCounter,
		MinPrice:    st.SharesMinimalPrice,
		MaxPrice:    st.SharesMaximumPrice,
	}, nil
}

// CreateGame создаёт игру в чате и рассылает опрос о наборе игроков.
// Если в чате уже есть активная игра — тихий no-op.
func (s *Service) CreateGame(ctx context.Context, chatID int64) error {
	if existing, err := s.store.GetActiveGameByChat(ctx, chatID); err == nil && existing.IsActive {
		log.WithField("chat_id", chatID).Debug("Игра уже идёт, создание пропущено")
		return nil
	}

	game, err := s.store.CreateGame(ctx, chatID)
	if err != nil {
		return err
	}

	// Копируем каталог акций в инвентарь игры по стартовым ценам
	shares, err := s.store.GetShares(ctx)
	if err != nil {
		return err
	}
	for _, share := range shares {
		if err := s.store.AddShareToGameInventory(ctx, game.ID, share.ID, share.StartPrice); err != nil {
			return err
		}
	}

	pollID, err := s.messenger.SendRecruitPoll(ctx, chatID)
	if err != nil {
		// Без опроса игроки не соберутся, но состояние БД остаётся
		// авторитетным: игру можно пересоздать после завершения.
		log.WithError(err).WithField("chat_id", chatID).Error("Не удалось отправить опрос")
		return err
	}
	if err := s.store.CreatePoll(ctx, pollID, game.ID); err != nil {
		return err
	}

	log.WithFields(log.Fields{"chat_id": chatID, "game_id": game.ID}).Info("Игра создана, идёт набор игроков")
	return nil
}

// RegisterPollAnswer обрабатывает ответ на опрос набора игроков.
// Регистрируются только ответы «Буду» (вариант 0). Пользователи без
// username отбрасываются молча — ограничение платформы, а не ошибка.
// Повторный ответ того же пользователя игрока не дублирует.
func (s *Service) RegisterPollAnswer(ctx context.Context, pollID string, telegramID int64, nickname, firstName string, options []int) error {
	joined := false
	for _, opt := range options {
		if opt == 0 {
			joined = true
			break
		}
	}
	if !joined {
		return nil
	}

	if nickname == "" {
		log.WithField("telegram_id", telegramID).Debug("Участник без username пропущен")
		return nil
	}

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	game, err := s.store.GetGameByID(ctx, poll.GameID)
	if err != nil {
		return err
	}
	if !game.IsActive {
		return nil
	}

	user, err := s.userDir.EnsureUser(ctx, telegramID, nickname, firstName)
	if err != nil {
		return err
	}

	// Идемпотентность: повторная доставка ответа не создаёт второго игрока
	if _, err := s.store.GetPlayerByUserAndGame(ctx, user.ID, game.ID); err == nil {
		return nil
	}

	st, err := s.settings.GetAll(ctx)
	if err != nil {
		return err
	}
	if _, err := s.store.CreatePlayer(ctx, user.ID, game.ID, st.PlayerBalance); err != nil {
		return err
	}

	log.WithFields(log.Fields{"game_id": game.ID, "telegram_id": telegramID}).Info("Игрок присоединился")
	return nil
}

// StartGame проверяет guard старта: не меньше двух живых игроков.
// При нехватке игроков игра сразу завершается без победителя.
// Возвращает игру и снимок настроек для контроллера ходов.
func (s *Service) StartGame(ctx context.Context, chatID int64) (*Game, *TurnConfig, error) {
	game, err := s.store.GetActiveGameByChat(ctx, chatID)
	if err != nil {
		return nil, nil, common.ErrGameNotFound
	}

	players, err := s.store.GetAlivePlayers(ctx, game.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(players) < 2 {
		if err := s.store.FinishGame(ctx, game.ID); err != nil {
			return nil, nil, err
		}
		if err := s.messenger.SendText(ctx, chatID, msgNotEnoughPlayers); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
		}
		return nil, nil, common.ErrNotEnoughPlayers
	}

	cfg, err := s.TurnConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	return game, cfg, nil
}

// Buy покупает одну единицу акции для игрока.
// Отказы (нет позиции, не хватает денег) — тихие no-op с именованной причиной.
func (s *Service) Buy(ctx context.Context, game *Game, telegramID, shareID int64) (Outcome, error) {
	player, outcome, err := s.resolvePlayer(ctx, game, telegramID)
	if err != nil || !outcome.OK {
		return outcome, err
	}

	item, err := s.store.GetGameInventoryItem(ctx, game.ID, shareID)
	if err != nil {
		return Rejected(ReasonNoSuchItem), nil
	}
	if player.Balance < item.Price {
		return Rejected(ReasonInsufficientFunds), nil
	}

	if err := s.store.BuyShare(ctx, player.ID, shareID, item.Price); err != nil {
		return Rejected(ReasonNone), err
	}
	return Accepted(), nil
}

// Sell продаёт одну единицу акции игрока по текущей цене игры.
// Продажа без владения — тихий no-op.
func (s *Service) Sell(ctx context.Context, game *Game, telegramID, shareID int64) (Outcome, error) {
	player, outcome, err := s.resolvePlayer(ctx, game, telegramID)
	if err != nil || !outcome.OK {
		return outcome, err
	}

	count, err := s.store.CountPlayerShares(ctx, player.ID, shareID)
	if err != nil {
		return Rejected(ReasonNone), err
	}
	if count == 0 {
		return Rejected(ReasonNotOwned), nil
	}

	item, err := s.store.GetGameInventoryItem(ctx, game.ID, shareID)
	if err != nil {
		return Rejected(ReasonNoSuchItem), nil
	}

	if err := s.store.SellShare(ctx, player.ID, shareID, item.Price); err != nil {
		return Rejected(ReasonNone), err
	}
	return Accepted(), nil
}

// Leave помечает игрока выбывшим и возвращает число оставшихся живых.
func (s *Service) Leave(ctx context.Context, game *Game, telegramID int64) (int, Outcome, error) {
	player, outcome, err := s.resolvePlayer(ctx, game, telegramID)
	if err != nil || !outcome.OK {
		return 0, outcome, err
	}

	if err := s.store.MarkPlayerDead(ctx, player.ID); err != nil {
		return 0, Rejected(ReasonNone), err
	}

	alive, err := s.store.GetAlivePlayers(ctx, game.ID)
	if err != nil {
		return 0, Accepted(), err
	}
	log.WithFields(log.Fields{"game_id": game.ID, "telegram_id": telegramID, "alive": len(alive)}).Info("Игрок покинул игру")
	return len(alive), Accepted(), nil
}

func (s *Service) resolvePlayer(ctx context.Context, game *Game, telegramID int64) (*Player, Outcome, error) {
	if game == nil || !game.IsActive {
		return nil, Rejected(ReasonNoGame), nil
	}
	user, err := s.userDir.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, Rejected(ReasonNoPlayer), nil
	}
	player, err := s.store.GetPlayerByUserAndGame(ctx, user.ID, game.ID)
	if err != nil {
		return nil, Rejected(ReasonNoPlayer), nil
	}
	if !player.Alive {
		return nil, Rejected(ReasonNoPlayer), nil
	}
	return player, Accepted(), nil
}

// RepriceShares пересчитывает цену каждой позиции игры:
// равномерно случайное значение в [min, max] включительно.
func (s *Service) RepriceShares(ctx context.Context, gameID int64, minPrice, maxPrice int64) error {
	if maxPrice < minPrice {
		minPrice, maxPrice = maxPrice, minPrice
	}
	items, err := s.store.GetGameInventory(ctx, gameID)
	if err != nil {
		return err
	}
	for _, item := range items {
		newPrice := minPrice + rand.Int64N(maxPrice-minPrice+1)
		if err := s.store.ChangeItemPrice(ctx, gameID, item.ShareID, newPrice); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceTurn увеличивает счётчик ходов и возвращает свежую игру.
func (s *Service) AdvanceTurn(ctx context.Context, gameID int64) (*Game, error) {
	if err := s.store.IncreaseGameTurn(ctx, gameID); err != nil {
		return nil, err
	}
	return s.store.GetGameByID(ctx, gameID)
}

// AliveCount возвращает число живых игроков.
func (s *Service) AliveCount(ctx context.Context, gameID int64) (int, error) {
	players, err := s.store.GetAlivePlayers(ctx, gameID)
	if err != nil {
		return 0, err
	}
	return len(players), nil
}

// ComputeWinner вычисляет победителя среди живых игроков:
// максимум (баланс + стоимость портфеля по текущим ценам игры).
// При равенстве побеждает первый по порядку id. Если живых нет — nil.
func (s *Service) ComputeWinner(ctx context.Context, gameID int64) (*Winner, error) {
	players, err := s.store.GetAlivePlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, nil
	}

	var winner *Winner
	for _, player := range players {
		total, err := s.portfolioValue(ctx, gameID, player)
		if err != nil {
			return nil, err
		}
		if winner == nil || total > winner.TotalValue {
			user, err := s.userDir.GetByID(ctx, player.UserID)
			name := ""
			if err == nil {
				name = user.FirstName
			}
			winner = &Winner{PlayerID: player.ID, FirstName: name, TotalValue: total}
		}
	}
	return winner, nil
}

// portfolioValue — баланс игрока плюс стоимость его акций
// по текущим ценам игры.
func (s *Service) portfolioValue(ctx context.Context, gameID int64, player *Player) (int64, error) {
	total := player.Balance
	shares, err := s.store.GetPlayerShares(ctx, player.ID)
	if err != nil {
		return 0, err
	}
	for _, share := range shares {
		count, err := s.store.CountPlayerShares(ctx, player.ID, share.ID)
		if err != nil {
			return 0, err
		}
		item, err := s.store.GetGameInventoryItem(ctx, gameID, share.ID)
		if err != nil {
			// Позиции нет в игре (акция добавлена в каталог позже) —
			// такие единицы не имеют игровой цены
			continue
		}
		total += int64(count) * item.Price
	}
	return total, nil
}

// FinishWithWinner завершает игру, вычисляет победителя и объявляет итог.
// Завершённая игра неизменяема: finish_at и last_turn больше не меняются.
func (s *Service) FinishWithWinner(ctx context.Context, gameID int64) (*Winner, error) {
	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.IsActive {
		return nil, nil
	}

	winner, err := s.ComputeWinner(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if err := s.store.FinishGame(ctx, gameID); err != nil {
		return nil, err
	}

	text := msgFinishedNoWinner
	if winner != nil {
		text = fmt.Sprintf(msgWinnerFmt, winner.FirstName, common.FormatBalance(winner.TotalValue))
	}
	if err := s.messenger.SendText(ctx, game.ChatID, text); err != nil {
		log.WithError(err).WithField("chat_id", game.ChatID).Error("Ошибка отправки итога игры")
	}

	log.WithFields(log.Fields{"game_id": gameID}).Info("Игра завершена")
	return winner, nil
}

// Finish завершает игру по явной команде (или досрочно).
func (s *Service) Finish(ctx context.Context, chatID int64) error {
	game, err := s.store.GetActiveGameByChat(ctx, chatID)
	if err != nil {
		return common.ErrGameNotFound
	}
	_, err = s.FinishWithWinner(ctx, game.ID)
	return err
}

// MarketView строит текст трансляции рынка и кнопки покупки/продажи.
// Формат: цены позиций текущего хода плюс список живых игроков
// с балансом и содержимым портфеля.
func (s *Service) MarketView(ctx context.Context, gameID int64) (string, []MarketButton, error) {
	game, err := s.store.GetGameByID(ctx, gameID)
	if err != nil {
		return "", nil, err
	}

	items, err := s.store.GetGameInventory(ctx, gameID)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Ход %d. Состояние фондового рынка:\n", game.LastTurn))

	buttons := make([]MarketButton, 0, len(items))
	for _, item := range items {
		share, err := s.store.GetShareByID(ctx, item.ShareID)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s — %s\n", share.Name, common.FormatBalance(item.Price)))
		buttons = append(buttons, MarketButton{ShareID: share.ID, Name: share.Name})
	}

	players, err := s.store.GetAlivePlayers(ctx, gameID)
	if err != nil {
		return "", nil, err
	}

	sb.WriteString("\nСписок игроков:\n")
	for _, player := range players {
		user, err := s.userDir.GetByID(ctx, player.UserID)
		name := "?"
		if err == nil {
			name = user.FirstName
		}
		holdings, err := s.playerHoldings(ctx, player.ID)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(fmt.Sprintf("%s. Баланс: %d. Инвентарь: %s\n", name, player.Balance, holdings))
	}

	return sb.String(), buttons, nil
}

func (s *Service) playerHoldings(ctx context.Context, playerID int64) (string, error) {
	shares, err := s.store.GetPlayerShares(ctx, playerID)
	if err != nil {
		return "", err
	}
	if len(shares) == 0 {
		return "пусто", nil
	}
	parts := make([]string, 0, len(shares))
	for _, share := range shares {
		count, err := s.store.CountPlayerShares(ctx, playerID, share.ID)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", share.Name, count))
	}
	return strings.Join(parts, ", "), nil
}

// Тексты итогов игры.
const (
	msgNotEnoughPlayers = "К сожалению игра не может быть начата. Недостаточное количество игроков."
	msgWinnerFmt        = "Игра завершена! Победитель — %s, итоговый капитал: %s. Поздравляем!"
	msgFinishedNoWinner = "Игра завершена. Победитель не определён."
)
