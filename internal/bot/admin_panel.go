// admin_panel.go — панель администратора в личных сообщениях:
// каталог акций и просмотр настроек без входа в HTTP-панель.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/common"
	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
	"birzha-bot/internal/telegram"
)

// textSender — минимум, который нужен панели для ответов.
type textSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendSettingsMenu(ctx context.Context, chatID int64, text string) error
}

// catalogStore — часть хранилища игр, нужная панели: каталог акций
// и проверка активных игр.
type catalogStore interface {
	GetShares(ctx context.Context) ([]*game.Share, error)
	CreateShare(ctx context.Context, name string, startPrice int64) (*game.Share, error)
	GetShareByName(ctx context.Context, name string) (*game.Share, error)
	DeleteShare(ctx context.Context, shareID int64) error
	UpdateShareStartPrice(ctx context.Context, shareID, price int64) error
	GetAllActiveGames(ctx context.Context) ([]*game.Game, error)
}

// AdminPanel обрабатывает команды администратора в личном чате.
type AdminPanel struct {
	sender          textSender
	userService     *users.Service
	settingsService *settings.Service
	gameStore       catalogStore
}

// NewAdminPanel создаёт панель администратора.
func NewAdminPanel(sender textSender, userService *users.Service, settingsService *settings.Service, gameStore catalogStore) *AdminPanel {
	return &AdminPanel{
		sender:          sender,
		userService:     userService,
		settingsService: settingsService,
		gameStore:       gameStore,
	}
}

// Handle пытается обработать сообщение как команду панели.
// Возвращает true, если сообщение было командой панели
// (в том числе отклонённой).
func (p *AdminPanel) Handle(ctx context.Context, ev Event) bool {
	text := strings.TrimSpace(ev.Text)
	lower := strings.ToLower(text)

	isPanelCommand := lower == "админ" || lower == "акции" || lower == "настройки" ||
		strings.HasPrefix(lower, "добавить ") || strings.HasPrefix(lower, "удалить ") ||
		strings.HasPrefix(lower, "цена ") || settingCommand(lower) != ""
	if !isPanelCommand {
		return false
	}

	if !p.userService.IsAdmin(ctx, ev.From.TelegramID) {
		p.reply(ctx, ev.ChatID, telegram.MsgAdminOnly)
		return true
	}

	switch {
	case lower == "админ":
		p.reply(ctx, ev.ChatID, telegram.MsgAdminHelp)

	case lower == "акции":
		p.handleListShares(ctx, ev.ChatID)

	case lower == "настройки":
		p.handleShowSettings(ctx, ev.ChatID)

	case strings.HasPrefix(lower, "добавить "):
		p.handleAddShare(ctx, ev.ChatID, text)

	case strings.HasPrefix(lower, "удалить "):
		p.handleDeleteShare(ctx, ev.ChatID, text)

	case strings.HasPrefix(lower, "цена "):
		p.handleUpdateSharePrice(ctx, ev.ChatID, text)

	default:
		p.handleUpdateSetting(ctx, ev.ChatID, settingCommand(lower), text)
	}
	return true
}

// Подсказки для кнопок меню настроек.
var settingPrompts = map[string]string{
	"таймер":   "Таймер <сек>",
	"ходы":     "Ходы <число>",
	"баланс":   "Баланс <число>",
	"минимум":  "Минимум <число>",
	"максимум": "Максимум <число>",
}

// HandleCallback обрабатывает нажатие кнопки меню настроек.
// Возвращает true, если callback принадлежит панели.
func (p *AdminPanel) HandleCallback(ctx context.Context, ev Event) bool {
	key, ok := strings.CutPrefix(ev.CallbackData, telegram.CallbackSettingPrefix+" ")
	if !ok {
		return false
	}

	if !p.userService.IsAdmin(ctx, ev.From.TelegramID) {
		p.reply(ctx, ev.ChatID, telegram.MsgAdminOnly)
		return true
	}

	prompt, ok := settingPrompts[key]
	if !ok {
		log.WithField("data", ev.CallbackData).Debug("Неизвестная кнопка настроек")
		return true
	}
	p.reply(ctx, ev.ChatID, fmt.Sprintf(telegram.MsgSettingPromptFmt, prompt))
	return true
}

// settingCommand возвращает имя настройки для команды вида «Таймер 30»,
// или пустую строку, если команда не про настройки.
func settingCommand(lower string) string {
	for _, name := range []string{"таймер", "ходы", "баланс", "минимум", "максимум"} {
		if strings.HasPrefix(lower, name+" ") {
			return name
		}
	}
	return ""
}

func (p *AdminPanel) handleListShares(ctx context.Context, chatID int64) {
	shares, err := p.gameStore.GetShares(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения каталога акций")
		return
	}
	if len(shares) == 0 {
		p.reply(ctx, chatID, "Каталог пуст.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Акции каталога:\n")
	for _, s := range shares {
		sb.WriteString(fmt.Sprintf("%s — стартовая цена %d\n", s.Name, s.StartPrice))
	}
	p.reply(ctx, chatID, sb.String())
}

func (p *AdminPanel) handleShowSettings(ctx context.Context, chatID int64) {
	st, err := p.settingsService.GetAll(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения настроек")
		return
	}
	text := fmt.Sprintf(
		"Настройки игры:\nход: %d сек\nходов в игре: %d\nстартовый баланс: %d\nцена акции: от %d до %d",
		st.TurnTimer, st.TurnCounter, st.PlayerBalance, st.SharesMinimalPrice, st.SharesMaximumPrice,
	)
	if err := p.sender.SendSettingsMenu(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки меню настроек")
	}
}

// handleAddShare разбирает «Добавить <имя> <цена>».
// Каталог не меняется, пока идёт игра: цены внутри активных игр
// должны оставаться согласованными с каталогом на момент старта.
func (p *AdminPanel) handleAddShare(ctx context.Context, chatID int64, text string) {
	if p.gamesInProgress(ctx) {
		p.reply(ctx, chatID, telegram.MsgGameInProgress)
		return
	}

	fields := strings.Fields(text)
	if len(fields) < 3 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	price, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil || price <= 0 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	name := strings.Join(fields[1:len(fields)-1], " ")

	if _, err := p.gameStore.CreateShare(ctx, name, price); err != nil {
		if errors.Is(err, common.ErrShareExists) {
			p.reply(ctx, chatID, telegram.MsgShareExists)
			return
		}
		log.WithError(err).WithField("name", name).Error("Ошибка добавления акции")
		return
	}
	p.reply(ctx, chatID, telegram.MsgShareAdded)
}

func (p *AdminPanel) handleDeleteShare(ctx context.Context, chatID int64, text string) {
	if p.gamesInProgress(ctx) {
		p.reply(ctx, chatID, telegram.MsgGameInProgress)
		return
	}

	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "Удалить"), "удалить"))
	if name == "" {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}

	share, err := p.gameStore.GetShareByName(ctx, name)
	if err != nil {
		p.reply(ctx, chatID, telegram.MsgShareMissing)
		return
	}
	if err := p.gameStore.DeleteShare(ctx, share.ID); err != nil {
		log.WithError(err).WithField("name", name).Error("Ошибка удаления акции")
		return
	}
	p.reply(ctx, chatID, telegram.MsgShareRemoved)
}

// handleUpdateSharePrice разбирает «Цена <имя> <цена>» и меняет
// стартовую цену акции каталога.
func (p *AdminPanel) handleUpdateSharePrice(ctx context.Context, chatID int64, text string) {
	if p.gamesInProgress(ctx) {
		p.reply(ctx, chatID, telegram.MsgGameInProgress)
		return
	}

	fields := strings.Fields(text)
	if len(fields) < 3 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	price, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil || price <= 0 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	name := strings.Join(fields[1:len(fields)-1], " ")

	share, err := p.gameStore.GetShareByName(ctx, name)
	if err != nil {
		p.reply(ctx, chatID, telegram.MsgShareMissing)
		return
	}
	if err := p.gameStore.UpdateShareStartPrice(ctx, share.ID, price); err != nil {
		log.WithError(err).WithField("name", name).Error("Ошибка изменения цены акции")
		return
	}
	p.reply(ctx, chatID, telegram.MsgSettingSaved)
}

// handleUpdateSetting обрабатывает команды «Таймер 30», «Ходы 4»,
// «Баланс 500», «Минимум 0», «Максимум 500».
func (p *AdminPanel) handleUpdateSetting(ctx context.Context, chatID int64, name, text string) {
	if p.gamesInProgress(ctx) {
		p.reply(ctx, chatID, telegram.MsgGameInProgress)
		return
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	value, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || value < 0 {
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}

	switch name {
	case "таймер":
		err = p.settingsService.UpdateTurnTimer(ctx, int(value))
	case "ходы":
		err = p.settingsService.UpdateTurnCounter(ctx, int(value))
	case "баланс":
		err = p.settingsService.UpdatePlayerBalance(ctx, value)
	case "минимум":
		err = p.settingsService.UpdateSharesMinimalPrice(ctx, value)
	case "максимум":
		err = p.settingsService.UpdateSharesMaximumPrice(ctx, value)
	default:
		p.reply(ctx, chatID, telegram.MsgBadFormat)
		return
	}
	if err != nil {
		log.WithError(err).WithField("setting", name).Error("Ошибка записи настройки")
		return
	}
	p.reply(ctx, chatID, telegram.MsgSettingSaved)
}

func (p *AdminPanel) gamesInProgress(ctx context.Context) bool {
	games, err := p.gameStore.GetAllActiveGames(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки активных игр")
		return true
	}
	return len(games) > 0
}

func (p *AdminPanel) reply(ctx context.Context, chatID int64, text string) {
	if err := p.sender.SendText(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка ответа панели")
	}
}
