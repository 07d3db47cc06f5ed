// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки игры
var (
	// ErrGameNotFound — активная игра в чате не найдена
	ErrGameNotFound = errors.New("активная игра не найдена")
	// ErrGameAlreadyActive — в чате уже идёт игра
	ErrGameAlreadyActive = errors.New("в этом чате уже идёт игра")
	// ErrPlayerNotFound — игрок не участвует в игре
	ErrPlayerNotFound = errors.New("игрок не найден в этой игре")
	// ErrNotEnoughPlayers — меньше двух живых игроков
	ErrNotEnoughPlayers = errors.New("недостаточное количество игроков")
	// ErrShareNotFound — акция не найдена в каталоге
	ErrShareNotFound = errors.New("акция не найдена")
	// ErrShareExists — акция с таким названием уже есть
	ErrShareExists = errors.New("акция с таким названием уже существует")
)

// Ошибки настроек
var (
	// ErrActiveGameExists — настройки нельзя менять при активной игре
	ErrActiveGameExists = errors.New("есть активная игра, невозможно изменить настройки")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)
