// Package filters решает, какие чаты бот обслуживает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает сообщения из основного чата и из личек.
// Личка открыта всем: регистрация и покупка подписки происходят в DM,
// в том числе по реферальной ссылке от ещё не известного боту человека.
// Чужие группы игнорируются.
type ChatFilter struct {
	mainChatID int64
}

func NewChatFilter(mainChatID int64) *ChatFilter {
	return &ChatFilter{mainChatID: mainChatID}
}

func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (сервисное сообщение?)")
		return false
	}
	if f.mainChatID == 0 {
		log.WithField("component", "ChatFilter").Error("mainChatID is 0 (config bug)")
		return false
	}

	if message.Chat.ID == f.mainChatID || message.Chat.IsPrivate() {
		return true
	}

	log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	}).Debug("deny: чужая группа")
	return false
}

// AllowCallback проверяет источник нажатия inline-кнопки.
func (f *ChatFilter) AllowCallback(cq *tgbotapi.CallbackQuery) bool {
	if cq == nil || cq.From == nil {
		return false
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return true // кнопка из inline-режима, чата нет
	}
	return cq.Message.Chat.ID == f.mainChatID || cq.Message.Chat.IsPrivate()
}
