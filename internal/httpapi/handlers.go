// handlers.go — обработчики HTTP-панели администратора.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/common"
)

// Сообщение информационного отказа при активной игре.
const msgGameInProgress = "Сейчас идёт игра. Изменения будут доступны после её завершения."

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TelegramID int64  `json:"telegram_id"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.userService.Login(r.Context(), in.TelegramID, strings.TrimSpace(in.Password))
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	default:
		writeError(w, http.StatusUnauthorized, "неверные учётные данные")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	list, err := s.userService.List(r.Context())
	if err != nil {
		s.internalError(w, err, "ошибка списка пользователей")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list})
}

func (s *Server) handleUserDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}
	user, err := s.userService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "пользователь не найден")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGamesList(w http.ResponseWriter, r *http.Request) {
	active, err := s.gameStore.GetAllActiveGames(r.Context())
	if err != nil {
		s.internalError(w, err, "ошибка списка игр")
		return
	}
	finished, err := s.gameStore.GetAllFinishedGames(r.Context())
	if err != nil {
		s.internalError(w, err, "ошибка списка игр")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   active,
		"finished": finished,
	})
}

func (s *Server) handleGameDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := queryInt64(w, r, "id")
	if !ok {
		return
	}

	g, err := s.gameStore.GetGameByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "игра не найдена")
		return
	}
	players, err := s.gameStore.GetAlivePlayers(r.Context(), g.ID)
	if err != nil {
		s.internalError(w, err, "ошибка игроков игры")
		return
	}
	inventory, err := s.gameStore.GetGameInventory(r.Context(), g.ID)
	if err != nil {
		s.internalError(w, err, "ошибка инвентаря игры")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":      g,
		"players":   players,
		"inventory": inventory,
	})
}

func (s *Server) handleChatLastGame(w http.ResponseWriter, r *http.Request) {
	chatID, ok := queryInt64(w, r, "chat_id")
	if !ok {
		return
	}
	g, err := s.gameStore.GetLastChatGame(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusNotFound, "завершённых игр в чате нет")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settingsService.GetAll(r.Context())
	if err != nil {
		s.internalError(w, err, "ошибка чтения настроек")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSharesList(w http.ResponseWriter, r *http.Request) {
	shares, err := s.gameStore.GetShares(r.Context())
	if err != nil {
		s.internalError(w, err, "ошибка каталога акций")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (s *Server) handleShareAdd(w http.ResponseWriter, r *http.Request) {
	if s.gamesInProgress(r) {
		writeRefusal(w, msgGameInProgress)
		return
	}

	var in struct {
		Name       string `json:"name"`
		StartPrice int64  `json:"start_price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.StartPrice <= 0 {
		writeError(w, http.StatusBadRequest, "нужны name и положительная start_price")
		return
	}

	share, err := s.gameStore.CreateShare(r.Context(), in.Name, in.StartPrice)
	if err != nil {
		if errors.Is(err, common.ErrShareExists) {
			writeError(w, http.StatusConflict, "акция уже существует")
			return
		}
		s.internalError(w, err, "ошибка добавления акции")
		return
	}
	writeJSON(w, http.StatusCreated, share)
}

func (s *Server) handleShareDelete(w http.ResponseWriter, r *http.Request) {
	if s.gamesInProgress(r) {
		writeRefusal(w, msgGameInProgress)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "нужен параметр name")
		return
	}
	share, err := s.gameStore.GetShareByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "акция не найдена")
		return
	}
	if err := s.gameStore.DeleteShare(r.Context(), share.ID); err != nil {
		s.internalError(w, err, "ошибка удаления акции")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": share.Name})
}

func (s *Server) handleUpdateTurnTimer(w http.ResponseWriter, r *http.Request) {
	s.updateIntSetting(w, r, func(v int) error {
		return s.settingsService.UpdateTurnTimer(r.Context(), v)
	})
}

func (s *Server) handleUpdateTurnCounter(w http.ResponseWriter, r *http.Request) {
	s.updateIntSetting(w, r, func(v int) error {
		return s.settingsService.UpdateTurnCounter(r.Context(), v)
	})
}

func (s *Server) handleUpdatePlayerBalance(w http.ResponseWriter, r *http.Request) {
	s.updateInt64Setting(w, r, func(v int64) error {
		return s.settingsService.UpdatePlayerBalance(r.Context(), v)
	})
}

func (s *Server) handleUpdateMinimalPrice(w http.ResponseWriter, r *http.Request) {
	s.updateInt64Setting(w, r, func(v int64) error {
		return s.settingsService.UpdateSharesMinimalPrice(r.Context(), v)
	})
}

func (s *Server) handleUpdateMaximumPrice(w http.ResponseWriter, r *http.Request) {
	s.updateInt64Setting(w, r, func(v int64) error {
		return s.settingsService.UpdateSharesMaximumPrice(r.Context(), v)
	})
}

// updateIntSetting — общий каркас обновления настройки: отказ при
// активной игре, разбор {"value": N}, запись.
func (s *Server) updateIntSetting(w http.ResponseWriter, r *http.Request, update func(int) error) {
	s.updateInt64Setting(w, r, func(v int64) error { return update(int(v)) })
}

func (s *Server) updateInt64Setting(w http.ResponseWriter, r *http.Request, update func(int64) error) {
	if s.gamesInProgress(r) {
		writeRefusal(w, msgGameInProgress)
		return
	}

	var in struct {
		Value int64 `json:"value"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Value < 0 {
		writeError(w, http.StatusBadRequest, "значение не может быть отрицательным")
		return
	}
	if err := update(in.Value); err != nil {
		s.internalError(w, err, "ошибка записи настройки")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": in.Value})
}

// gamesInProgress проверяет, есть ли активные игры.
// Ошибка хранилища трактуется как «есть»: безопаснее отказать.
func (s *Server) gamesInProgress(r *http.Request) bool {
	games, err := s.gameStore.GetAllActiveGames(r.Context())
	if err != nil {
		log.WithError(err).Error("Ошибка проверки активных игр")
		return true
	}
	return len(games) > 0
}

func (s *Server) internalError(w http.ResponseWriter, err error, message string) {
	log.WithError(err).Error(message)
	writeError(w, http.StatusInternalServerError, message)
}

// queryInt64 читает обязательный числовой параметр запроса.
func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "нужен числовой параметр "+name)
		return 0, false
	}
	return v, true
}
