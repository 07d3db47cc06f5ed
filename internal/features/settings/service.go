// Package settings — service.go тонкая обёртка над хранилищем настроек.
//
// Важно: хранилище НЕ проверяет отсутствие активных игр. Это обязанность
// вызывающей стороны (HTTP-панель и чат-панель проверяют сами) —
// задокументированный контракт, а не упущение.
package settings

import "context"

// Store — операции хранилища настроек.
type Store interface {
	GetAll(ctx context.Context) (*Settings, error)
	GetTurnTimer(ctx context.Context) (int, error)
	UpdateTurnTimer(ctx context.Context, turnTimer int) error
	GetTurnCounter(ctx context.Context) (int, error)
	UpdateTurnCounter(ctx context.Context, turnCounter int) error
	GetPlayerBalance(ctx context.Context) (int64, error)
	UpdatePlayerBalance(ctx context.Context, balance int64) error
	GetSharesMinimalPrice(ctx context.Context) (int64, error)
	UpdateSharesMinimalPrice(ctx context.Context, price int64) error
	GetSharesMaximumPrice(ctx context.Context) (int64, error)
	UpdateSharesMaximumPrice(ctx context.Context, price int64) error
}

// Service предоставляет доступ к игровым настройкам.
type Service struct {
	store Store
}

// NewService создаёт сервис настроек.
func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetAll(ctx context.Context) (*Settings, error) {
	return s.store.GetAll(ctx)
}

func (s *Service) GetTurnTimer(ctx context.Context) (int, error) {
	return s.store.GetTurnTimer(ctx)
}

func (s *Service) UpdateTurnTimer(ctx context.Context, turnTimer int) error {
	return s.store.UpdateTurnTimer(ctx, turnTimer)
}

func (s *Service) GetTurnCounter(ctx context.Context) (int, error) {
	return s.store.GetTurnCounter(ctx)
}

func (s *Service) UpdateTurnCounter(ctx context.Context, turnCounter int) error {
	return s.store.UpdateTurnCounter(ctx, turnCounter)
}

func (s *Service) GetPlayerBalance(ctx context.Context) (int64, error) {
	return s.store.GetPlayerBalance(ctx)
}

func (s *Service) UpdatePlayerBalance(ctx context.Context, balance int64) error {
	return s.store.UpdatePlayerBalance(ctx, balance)
}

func (s *Service) GetSharesMinimalPrice(ctx context.Context) (int64, error) {
	return s.store.GetSharesMinimalPrice(ctx)
}

func (s *Service) UpdateSharesMinimalPrice(ctx context.Context, price int64) error {
	return s.store.UpdateSharesMinimalPrice(ctx, price)
}

func (s *Service) GetSharesMaximumPrice(ctx context.Context) (int64, error) {
	return s.store.GetSharesMaximumPrice(ctx)
}

func (s *Service) UpdateSharesMaximumPrice(ctx context.Context, price int64) error {
	return s.store.UpdateSharesMaximumPrice(ctx, price)
}
