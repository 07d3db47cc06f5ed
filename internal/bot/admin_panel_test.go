package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"birzha-bot/internal/common"
	"birzha-bot/internal/config"
	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
	"birzha-bot/internal/telegram"
)

// recordingSender собирает ответы панели.
type recordingSender struct {
	texts []string
	menus []string
}

func (s *recordingSender) SendText(_ context.Context, _ int64, text string) error {
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSender) SendSettingsMenu(_ context.Context, _ int64, text string) error {
	s.menus = append(s.menus, text)
	return nil
}

func (s *recordingSender) last() string {
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

// panelUserStore — хранилище пользователей, от которого панели нужна
// только проверка флага администратора.
type panelUserStore struct {
	adminID int64
}

func (s *panelUserStore) Create(_ context.Context, telegramID int64, nickname, firstName string) (*users.User, error) {
	return &users.User{TelegramID: telegramID, Nickname: nickname, FirstName: firstName}, nil
}

func (s *panelUserStore) CreateAdmin(context.Context, int64, string, string, string) error {
	return nil
}

func (s *panelUserStore) GetByID(context.Context, int64) (*users.User, error) {
	return nil, common.ErrUserNotFound
}

func (s *panelUserStore) GetByTelegramID(context.Context, int64) (*users.User, error) {
	return nil, common.ErrUserNotFound
}

func (s *panelUserStore) List(context.Context) ([]*users.User, error) { return nil, nil }

func (s *panelUserStore) IsAdmin(_ context.Context, telegramID int64) (bool, error) {
	return telegramID == s.adminID, nil
}

func (s *panelUserStore) CreateSession(context.Context, *users.AdminSession) error { return nil }

func (s *panelUserStore) GetSessionByToken(context.Context, string) (*users.AdminSession, error) {
	return nil, common.ErrSessionExpired
}

func (s *panelUserStore) PurgeExpiredSessions(context.Context) (int64, error) { return 0, nil }

func (s *panelUserStore) LogAttempt(context.Context, int64, bool) error { return nil }

func (s *panelUserStore) GetRecentFailedAttempts(context.Context, int64, time.Duration) (int, error) {
	return 0, nil
}

// panelSettingsStore хранит настройки в памяти.
type panelSettingsStore struct {
	st settings.Settings
}

func (s *panelSettingsStore) GetAll(context.Context) (*settings.Settings, error) {
	cp := s.st
	return &cp, nil
}

func (s *panelSettingsStore) GetTurnTimer(context.Context) (int, error) { return s.st.TurnTimer, nil }

func (s *panelSettingsStore) UpdateTurnTimer(_ context.Context, v int) error {
	s.st.TurnTimer = v
	return nil
}

func (s *panelSettingsStore) GetTurnCounter(context.Context) (int, error) {
	return s.st.TurnCounter, nil
}

func (s *panelSettingsStore) UpdateTurnCounter(_ context.Context, v int) error {
	s.st.TurnCounter = v
	return nil
}

func (s *panelSettingsStore) GetPlayerBalance(context.Context) (int64, error) {
	return s.st.PlayerBalance, nil
}

func (s *panelSettingsStore) UpdatePlayerBalance(_ context.Context, v int64) error {
	s.st.PlayerBalance = v
	return nil
}

func (s *panelSettingsStore) GetSharesMinimalPrice(context.Context) (int64, error) {
	return s.st.SharesMinimalPrice, nil
}

func (s *panelSettingsStore) UpdateSharesMinimalPrice(_ context.Context, v int64) error {
	s.st.SharesMinimalPrice = v
	return nil
}

func (s *panelSettingsStore) GetSharesMaximumPrice(context.Context) (int64, error) {
	return s.st.SharesMaximumPrice, nil
}

func (s *panelSettingsStore) UpdateSharesMaximumPrice(_ context.Context, v int64) error {
	s.st.SharesMaximumPrice = v
	return nil
}

// panelCatalog — каталог акций + флаг активной игры.
type panelCatalog struct {
	shares     []*game.Share
	nextID     int64
	gameActive bool
}

func (c *panelCatalog) GetShares(context.Context) ([]*game.Share, error) {
	return c.shares, nil
}

func (c *panelCatalog) CreateShare(_ context.Context, name string, startPrice int64) (*game.Share, error) {
	for _, s := range c.shares {
		if s.Name == name {
			return nil, common.ErrShareExists
		}
	}
	c.nextID++
	share := &game.Share{ID: c.nextID, Name: name, StartPrice: startPrice}
	c.shares = append(c.shares, share)
	return share, nil
}

func (c *panelCatalog) GetShareByName(_ context.Context, name string) (*game.Share, error) {
	for _, s := range c.shares {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, common.ErrShareNotFound
}

func (c *panelCatalog) DeleteShare(_ context.Context, shareID int64) error {
	for i, s := range c.shares {
		if s.ID == shareID {
			c.shares = append(c.shares[:i], c.shares[i+1:]...)
			return nil
		}
	}
	return common.ErrShareNotFound
}

func (c *panelCatalog) UpdateShareStartPrice(_ context.Context, shareID, price int64) error {
	for _, s := range c.shares {
		if s.ID == shareID {
			s.StartPrice = price
			return nil
		}
	}
	return common.ErrShareNotFound
}

func (c *panelCatalog) GetAllActiveGames(context.Context) ([]*game.Game, error) {
	if c.gameActive {
		return []*game.Game{{ID: 1, ChatID: 100, IsActive: true}}, nil
	}
	return nil, nil
}

const panelAdminID = 42

func newTestPanel() (*AdminPanel, *recordingSender, *panelSettingsStore, *panelCatalog) {
	sender := &recordingSender{}
	userService := users.NewService(&panelUserStore{adminID: panelAdminID}, &config.Config{})
	settingsStore := &panelSettingsStore{st: settings.Settings{
		TurnTimer:          30,
		TurnCounter:        4,
		PlayerBalance:      500,
		SharesMinimalPrice: 0,
		SharesMaximumPrice: 500,
	}}
	catalog := &panelCatalog{}
	panel := NewAdminPanel(sender, userService, settings.NewService(settingsStore), catalog)
	return panel, sender, settingsStore, catalog
}

func adminEvent(text string) Event {
	return Event{
		Kind:      EventText,
		ChatID:    panelAdminID,
		Text:      text,
		IsPrivate: true,
		From:      Sender{TelegramID: panelAdminID, Username: "admin"},
	}
}

func TestAdminPanelIgnoresNonCommands(t *testing.T) {
	panel, sender, _, _ := newTestPanel()

	if panel.Handle(context.Background(), adminEvent("привет биржа")) {
		t.Fatal("обычная команда не должна обрабатываться панелью")
	}
	if len(sender.texts) != 0 {
		t.Fatalf("панель ответила на чужую команду: %q", sender.texts)
	}
}

func TestAdminPanelRejectsNonAdmin(t *testing.T) {
	panel, sender, _, _ := newTestPanel()

	ev := adminEvent("Акции")
	ev.From.TelegramID = 777

	if !panel.Handle(context.Background(), ev) {
		t.Fatal("команда панели должна считаться обработанной")
	}
	if sender.last() != telegram.MsgAdminOnly {
		t.Fatalf("ответ = %q, ожидался отказ", sender.last())
	}
}

func TestAdminPanelShareCatalog(t *testing.T) {
	panel, sender, _, catalog := newTestPanel()
	ctx := context.Background()

	panel.Handle(ctx, adminEvent("Добавить Северный Поток 120"))
	if sender.last() != telegram.MsgShareAdded {
		t.Fatalf("добавление: ответ = %q", sender.last())
	}
	if len(catalog.shares) != 1 || catalog.shares[0].Name != "Северный Поток" || catalog.shares[0].StartPrice != 120 {
		t.Fatalf("акция не добавлена: %+v", catalog.shares)
	}

	panel.Handle(ctx, adminEvent("Добавить Северный Поток 120"))
	if sender.last() != telegram.MsgShareExists {
		t.Fatalf("дубликат: ответ = %q", sender.last())
	}

	panel.Handle(ctx, adminEvent("Цена Северный Поток 150"))
	if sender.last() != telegram.MsgSettingSaved {
		t.Fatalf("смена цены: ответ = %q", sender.last())
	}
	if catalog.shares[0].StartPrice != 150 {
		t.Fatalf("цена не изменилась: %d", catalog.shares[0].StartPrice)
	}

	panel.Handle(ctx, adminEvent("Цена Лукойл 90"))
	if sender.last() != telegram.MsgShareMissing {
		t.Fatalf("цена несуществующей акции: ответ = %q", sender.last())
	}

	panel.Handle(ctx, adminEvent("Удалить Северный Поток"))
	if sender.last() != telegram.MsgShareRemoved {
		t.Fatalf("удаление: ответ = %q", sender.last())
	}
	if len(catalog.shares) != 0 {
		t.Fatalf("акция не удалена: %+v", catalog.shares)
	}
}

func TestAdminPanelSettingsCommands(t *testing.T) {
	panel, sender, store, _ := newTestPanel()
	ctx := context.Background()

	cases := []struct {
		command string
		check   func() bool
	}{
		{"Таймер 45", func() bool { return store.st.TurnTimer == 45 }},
		{"Ходы 6", func() bool { return store.st.TurnCounter == 6 }},
		{"Баланс 1000", func() bool { return store.st.PlayerBalance == 1000 }},
		{"Минимум 10", func() bool { return store.st.SharesMinimalPrice == 10 }},
		{"Максимум 900", func() bool { return store.st.SharesMaximumPrice == 900 }},
	}
	for _, tc := range cases {
		panel.Handle(ctx, adminEvent(tc.command))
		if sender.last() != telegram.MsgSettingSaved {
			t.Fatalf("%q: ответ = %q", tc.command, sender.last())
		}
		if !tc.check() {
			t.Fatalf("%q: настройка не записана", tc.command)
		}
	}

	for _, bad := range []string{"Таймер тридцать", "Ходы -1", "Баланс много денег"} {
		panel.Handle(ctx, adminEvent(bad))
		if sender.last() != telegram.MsgBadFormat {
			t.Fatalf("%q: ответ = %q, ожидался отказ по формату", bad, sender.last())
		}
	}
}

func TestAdminPanelSettingsMenu(t *testing.T) {
	panel, sender, _, _ := newTestPanel()
	ctx := context.Background()

	panel.Handle(ctx, adminEvent("Настройки"))
	if len(sender.menus) != 1 {
		t.Fatalf("меню настроек не отправлено: %q", sender.menus)
	}
	if !strings.Contains(sender.menus[0], "ход: 30 сек") {
		t.Fatalf("меню без текущих значений: %q", sender.menus[0])
	}

	ev := adminEvent("")
	ev.Kind = EventCallback
	ev.CallbackData = telegram.CallbackSettingPrefix + " таймер"

	if !panel.HandleCallback(ctx, ev) {
		t.Fatal("кнопка настроек должна обрабатываться панелью")
	}
	if !strings.Contains(sender.last(), "Таймер") {
		t.Fatalf("подсказка без команды: %q", sender.last())
	}

	ev.CallbackData = "купить 1"
	if panel.HandleCallback(ctx, ev) {
		t.Fatal("торговая кнопка не принадлежит панели")
	}
}

func TestAdminPanelRefusesDuringGame(t *testing.T) {
	panel, sender, store, catalog := newTestPanel()
	ctx := context.Background()
	catalog.gameActive = true

	for _, cmd := range []string{"Добавить Сбер 250", "Таймер 60"} {
		panel.Handle(ctx, adminEvent(cmd))
		if sender.last() != telegram.MsgGameInProgress {
			t.Fatalf("%q: ответ = %q, ожидался информационный отказ", cmd, sender.last())
		}
	}
	if len(catalog.shares) != 0 {
		t.Fatalf("каталог изменился во время игры: %+v", catalog.shares)
	}
	if store.st.TurnTimer != 30 {
		t.Fatalf("настройка изменилась во время игры: %d", store.st.TurnTimer)
	}
}
