// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки конкурсного движка
var (
	// ErrRoundNotFound — раунд не найден (устаревшая кнопка в чате)
	ErrRoundNotFound = errors.New("раунд не найден")
	// ErrNoActiveRound — у шаблона нет активного раунда
	ErrNoActiveRound = errors.New("активный раунд не найден")
	// ErrTemplateNotFound — шаблон конкурса не найден
	ErrTemplateNotFound = errors.New("шаблон конкурса не найден")
	// ErrUnsupportedGame — неизвестный тип игры в шаблоне
	ErrUnsupportedGame = errors.New("неизвестный тип игры")
	// ErrAttemptExists — у пользователя уже есть попытка в этом раунде
	ErrAttemptExists = errors.New("попытка уже использована")
	// ErrNoPendingAttempt — текстовый ответ пришёл без зарезервированной попытки
	ErrNoPendingAttempt = errors.New("нет ожидающей попытки")
	// ErrContestNotFound — реферальный конкурс не найден
	ErrContestNotFound = errors.New("реферальный конкурс не найден")
)

// Ошибки экономики (копейки, начисления)
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки подписок
var (
	// ErrSubscriptionNotFound — у пользователя нет подписки
	ErrSubscriptionNotFound = errors.New("подписка не найдена")
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
)
