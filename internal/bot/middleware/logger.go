// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// LogIncoming логирует входящее событие.
// Записывает: user_id, chat_id, username, вид события и текст
// (первые 50 символов).
func LogIncoming(userID, chatID int64, username, kind, text string) {
	if len(text) > 50 {
		text = text[:50] + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"chat_id":  chatID,
		"username": username,
		"kind":     kind,
		"text":     text,
		"time":     time.Now().Format("15:04:05"),
	}).Debug("Входящее событие")
}
