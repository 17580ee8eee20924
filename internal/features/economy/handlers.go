// Package economy — handlers.go обрабатывает команды !баланс и !транзакции.
package economy

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик экономики.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance обрабатывает команду !баланс.
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	balance, err := h.service.GetBalance(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		h.sendMessage(chatID, "❌ Не удалось получить баланс")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("💰 Баланс: %s", common.FormatKopeks(balance)))
}

// HandleTransactions обрабатывает команду !транзакции.
func (h *Handler) HandleTransactions(ctx context.Context, chatID, userID int64) {
	history, err := h.service.GetTransactionHistory(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения истории")
		h.sendMessage(chatID, "❌ Не удалось получить историю транзакций")
		return
	}
	h.sendMessage(chatID, history)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
