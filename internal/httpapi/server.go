// Package httpapi — HTTP-панель администратора: вход по паролю,
// просмотр пользователей и игр, управление каталогом акций и настройками.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"birzha-bot/internal/features/game"
	"birzha-bot/internal/features/settings"
	"birzha-bot/internal/features/users"
)

// GameStore — часть хранилища игр, нужная панели.
type GameStore interface {
	GetGameByID(ctx context.Context, gameID int64) (*game.Game, error)
	GetAllActiveGames(ctx context.Context) ([]*game.Game, error)
	GetAllFinishedGames(ctx context.Context) ([]*game.Game, error)
	GetLastChatGame(ctx context.Context, chatID int64) (*game.Game, error)
	GetAlivePlayers(ctx context.Context, gameID int64) ([]*game.Player, error)
	GetGameInventory(ctx context.Context, gameID int64) ([]*game.GameInventoryItem, error)
	GetShares(ctx context.Context) ([]*game.Share, error)
	CreateShare(ctx context.Context, name string, startPrice int64) (*game.Share, error)
	GetShareByName(ctx context.Context, name string) (*game.Share, error)
	DeleteShare(ctx context.Context, shareID int64) error
}

// Server — HTTP-сервер панели администратора.
type Server struct {
	userService     *users.Service
	settingsService *settings.Service
	gameStore       GameStore
	mux             *chi.Mux
}

// New собирает сервер и маршруты.
func New(userService *users.Service, settingsService *settings.Service, gameStore GameStore) *Server {
	s := &Server{
		userService:     userService,
		settingsService: settingsService,
		gameStore:       gameStore,
		mux:             chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler возвращает корневой http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/user", func(r chi.Router) {
				r.Get("/user_list", s.handleUserList)
				r.Get("/user_detail", s.handleUserDetail)
			})

			r.Route("/game", func(r chi.Router) {
				r.Get("/games_list", s.handleGamesList)
				r.Get("/game_detail", s.handleGameDetail)
				r.Get("/chat_last_game", s.handleChatLastGame)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", s.handleSettings)
				r.Get("/shares_list", s.handleSharesList)
				r.Post("/share", s.handleShareAdd)
				r.Delete("/share", s.handleShareDelete)
				r.Post("/turn_timer", s.handleUpdateTurnTimer)
				r.Post("/turn_counter", s.handleUpdateTurnCounter)
				r.Post("/player_balance", s.handleUpdatePlayerBalance)
				r.Post("/minimal_share_price", s.handleUpdateMinimalPrice)
				r.Post("/maximum_share_price", s.handleUpdateMaximumPrice)
			})
		})
	})
}

// authMiddleware проверяет Bearer-токен сессии администратора.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "нет токена авторизации")
			return
		}
		if _, err := s.userService.Authenticate(r.Context(), token); err != nil {
			writeError(w, http.StatusUnauthorized, "сессия не найдена или истекла")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run слушает адрес до отмены контекста.
func (s *Server) Run(addr string, stop <-chan struct{}) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP-панель запущена")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeRefusal — информационный отказ: запрос корректен, но изменение
// сейчас недоступно. Это не ошибка, статус 200.
func writeRefusal(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"message": message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
