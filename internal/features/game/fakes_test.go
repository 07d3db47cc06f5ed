package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"birzha-bot/internal/common"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
)

// errStoreDown имитирует временный сбой хранилища.
var errStoreDown = errors.New("временный сбой хранилища")

// memStore — хранилище в памяти, реализует Store для тестов.
type memStore struct {
	mu sync.Mutex

	nextID int64

	games         map[int64]*Game
	players       map[int64]*Player
	shares        map[int64]*Share
	gameInventory map[string]*GameInventoryItem // "gameID/shareID"
	playerItems   map[int64]*PlayerInventoryItem
	polls         map[string]*Poll

	// Сколько ближайших вызовов GetAlivePlayers вернут ошибку
	failAliveCalls int
	// Порядок торговых операций: "buy <shareID>" / "sell <shareID>"
	trades []string
}

func (m *memStore) failNextAlive(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAliveCalls = n
}

func (m *memStore) tradeLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.trades...)
}

func newMemStore() *memStore {
	return &memStore{
		games:         make(map[int64]*Game),
		players:       make(map[int64]*Player),
		shares:        make(map[int64]*Share),
		gameInventory: make(map[string]*GameInventoryItem),
		playerItems:   make(map[int64]*PlayerInventoryItem),
		polls:         make(map[string]*Poll),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func invKey(gameID, shareID int64) string {
	return fmt.Sprintf("%d/%d", gameID, shareID)
}

func (m *memStore) CreateGame(_ context.Context, chatID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &Game{ID: m.id(), ChatID: chatID, StartedAt: time.Now(), IsActive: true}
	m.games[g.ID] = g
	cp := *g
	return &cp, nil
}

func (m *memStore) GetGameByID(_ context.Context, gameID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, common.ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) GetActiveGameByChat(_ context.Context, chatID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.ChatID == chatID && g.IsActive {
			cp := *g
			return &cp, nil
		}
	}
	return nil, common.ErrGameNotFound
}

func (m *memStore) GetAllActiveGames(_ context.Context) ([]*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Game
	for _, g := range m.games {
		if g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetAllFinishedGames(_ context.Context) ([]*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Game
	for _, g := range m.games {
		if !g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetLastChatGame(_ context.Context, chatID int64) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *Game
	for _, g := range m.games {
		if g.ChatID != chatID || g.FinishAt == nil {
			continue
		}
		if last == nil || g.FinishAt.After(*last.FinishAt) {
			last = g
		}
	}
	if last == nil {
		return nil, common.ErrGameNotFound
	}
	cp := *last
	return &cp, nil
}

func (m *memStore) IncreaseGameTurn(_ context.Context, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return common.ErrGameNotFound
	}
	g.LastTurn++
	return nil
}

func (m *memStore) FinishGame(_ context.Context, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok || !g.IsActive {
		return nil
	}
	now := time.Now()
	g.IsActive = false
	g.FinishAt = &now
	return nil
}

func (m *memStore) CreatePlayer(_ context.Context, userID, gameID, balance int64) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Player{ID: m.id(), UserID: userID, GameID: gameID, Balance: balance, Alive: true}
	m.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPlayerByID(_ context.Context, playerID int64) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, common.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPlayerByUserAndGame(_ context.Context, userID, gameID int64) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.UserID == userID && p.GameID == gameID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrPlayerNotFound
}

func (m *memStore) GetAlivePlayers(_ context.Context, gameID int64) ([]*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAliveCalls > 0 {
		m.failAliveCalls--
		return nil, errStoreDown
	}
	var out []*Player
	for _, p := range m.players {
		if p.GameID == gameID && p.Alive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) IncreasePlayerBalance(_ context.Context, playerID, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return common.ErrPlayerNotFound
	}
	p.Balance += value
	return nil
}

func (m *memStore) DecreasePlayerBalance(_ context.Context, playerID, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return common.ErrPlayerNotFound
	}
	p.Balance -= value
	if p.Balance < 0 {
		p.Balance = 0
	}
	return nil
}

func (m *memStore) MarkPlayerDead(_ context.Context, playerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return common.ErrPlayerNotFound
	}
	p.Alive = false
	return nil
}

func (m *memStore) CreateShare(_ context.Context, name string, startPrice int64) (*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shares {
		if s.Name == name {
			return nil, common.ErrShareExists
		}
	}
	s := &Share{ID: m.id(), Name: name, StartPrice: startPrice}
	m.shares[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *memStore) GetShares(_ context.Context) ([]*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Share
	for _, s := range m.shares {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetShareByID(_ context.Context, shareID int64) (*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[shareID]
	if !ok {
		return nil, common.ErrShareNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetShareByName(_ context.Context, name string) (*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shares {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, common.ErrShareNotFound
}

func (m *memStore) DeleteShare(_ context.Context, shareID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[shareID]; !ok {
		return common.ErrShareNotFound
	}
	delete(m.shares, shareID)
	for k, item := range m.gameInventory {
		if item.ShareID == shareID {
			delete(m.gameInventory, k)
		}
	}
	for id, item := range m.playerItems {
		if item.ShareID == shareID {
			delete(m.playerItems, id)
		}
	}
	return nil
}

func (m *memStore) UpdateShareStartPrice(_ context.Context, shareID, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[shareID]
	if !ok {
		return common.ErrShareNotFound
	}
	s.StartPrice = price
	return nil
}

func (m *memStore) GetGameInventory(_ context.Context, gameID int64) ([]*GameInventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*GameInventoryItem
	for _, item := range m.gameInventory {
		if item.GameID == gameID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShareID < out[j].ShareID })
	return out, nil
}

func (m *memStore) GetGameInventoryItem(_ context.Context, gameID, shareID int64) (*GameInventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.gameInventory[invKey(gameID, shareID)]
	if !ok {
		return nil, common.ErrShareNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *memStore) AddShareToGameInventory(_ context.Context, gameID, shareID, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameInventory[invKey(gameID, shareID)] = &GameInventoryItem{GameID: gameID, ShareID: shareID, Price: price}
	return nil
}

func (m *memStore) ChangeItemPrice(_ context.Context, gameID, shareID, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.gameInventory[invKey(gameID, shareID)]
	if !ok {
		return common.ErrShareNotFound
	}
	item.Price = price
	return nil
}

func (m *memStore) BuyShare(_ context.Context, playerID, shareID, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return common.ErrPlayerNotFound
	}
	item := &PlayerInventoryItem{ID: m.id(), ShareID: shareID, ShareOwner: playerID}
	m.playerItems[item.ID] = item
	p.Balance -= price
	if p.Balance < 0 {
		p.Balance = 0
	}
	m.trades = append(m.trades, fmt.Sprintf("buy %d", shareID))
	return nil
}

func (m *memStore) SellShare(_ context.Context, playerID, shareID, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, item := range m.playerItems {
		if item.ShareOwner == playerID && item.ShareID == shareID {
			delete(m.playerItems, id)
			m.players[playerID].Balance += price
			m.trades = append(m.trades, fmt.Sprintf("sell %d", shareID))
			return nil
		}
	}
	return common.ErrShareNotFound
}

func (m *memStore) GetPlayerInventory(_ context.Context, playerID int64) ([]*PlayerInventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PlayerInventoryItem
	for _, item := range m.playerItems {
		if item.ShareOwner == playerID {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CountPlayerShares(_ context.Context, playerID, shareID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.playerItems {
		if item.ShareOwner == playerID && item.ShareID == shareID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetPlayerShares(_ context.Context, playerID int64) ([]*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var out []*Share
	for _, item := range m.playerItems {
		if item.ShareOwner != playerID || seen[item.ShareID] {
			continue
		}
		seen[item.ShareID] = true
		if s, ok := m.shares[item.ShareID]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreatePoll(_ context.Context, pollID string, gameID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[pollID]; ok {
		return nil
	}
	m.polls[pollID] = &Poll{PollID: pollID, GameID: gameID}
	return nil
}

func (m *memStore) GetPoll(_ context.Context, pollID string) (*Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[pollID]
	if !ok {
		return nil, common.ErrGameNotFound
	}
	cp := *p
	return &cp, nil
}

// fakeMessenger запоминает отправленные сообщения.
type fakeMessenger struct {
	mu       sync.Mutex
	texts    []string
	markets  []string
	edits    []string
	nextMsg  int
	nextPoll int
}

func (f *fakeMessenger) SendText(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendRecruitPoll(_ context.Context, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPoll++
	return fmt.Sprintf("poll-%d", f.nextPoll), nil
}

func (f *fakeMessenger) SendMarket(_ context.Context, _ int64, text string, _ []MarketButton) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets = append(f.markets, text)
	f.nextMsg++
	return f.nextMsg, nil
}

func (f *fakeMessenger) EditMarket(_ context.Context, _ int64, _ int, text string, _ []MarketButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

// fakeUsers — справочник пользователей в памяти.
type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byTg   map[int64]*users.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byTg: make(map[int64]*users.User)}
}

func (f *fakeUsers) EnsureUser(_ context.Context, telegramID int64, nickname, firstName string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byTg[telegramID]; ok {
		cp := *u
		return &cp, nil
	}
	f.nextID++
	u := &users.User{ID: f.nextID, TelegramID: telegramID, Nickname: nickname, FirstName: firstName}
	f.byTg[telegramID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byTg {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, telegramID int64) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byTg[telegramID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// fakeSettings отдаёт фиксированные настройки.
type fakeSettings struct {
	s settings.Settings
}

func defaultFakeSettings() *fakeSettings {
	return &fakeSettings{s: settings.Settings{
		TurnTimer:          30,
		TurnCounter:        4,
		PlayerBalance:      500,
		SharesMinimalPrice: 0,
		SharesMaximumPrice: 500,
	}}
}

func (f *fakeSettings) GetAll(_ context.Context) (*settings.Settings, error) {
	cp := f.s
	return &cp, nil
}
