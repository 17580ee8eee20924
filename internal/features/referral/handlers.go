// Package referral — handlers.go показывает пользователю его реферальную
// ссылку и статистику приглашений.
package referral

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/members"
)

// Handler обрабатывает реферальные команды пользователей.
type Handler struct {
	service *Service
	members *members.Service
	bot     *tgbotapi.BotAPI
	botName string // username бота для построения ссылки
}

// NewHandler создаёт обработчик реферальных команд.
func NewHandler(service *Service, membersSvc *members.Service, bot *tgbotapi.BotAPI, botName string) *Handler {
	return &Handler{service: service, members: membersSvc, bot: bot, botName: botName}
}

// HandleMyReferrals обрабатывает команду !рефералы:
// персональная ссылка, счётчик приглашённых и список идущих конкурсов.
func (h *Handler) HandleMyReferrals(ctx context.Context, chatID, userID int64) {
	count, err := h.members.ReferralCount(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка подсчёта рефералов")
		h.sendMessage(chatID, "❌ Не удалось получить реферальную статистику")
		return
	}

	text := fmt.Sprintf(
		"👥 Твоя реферальная ссылка:\nhttps://t.me/%s?start=ref%d\n\nПриглашено: %d %s",
		h.botName, userID, count, common.PluralizeReferrals(int64(count)),
	)

	now := time.Now().UTC()
	contests, err := h.service.ActiveContests(ctx)
	if err == nil {
		for _, c := range contests {
			if !c.Running(now) {
				continue
			}
			text += fmt.Sprintf("\n\n🔥 Идёт конкурс «%s» — до %s. Приглашай и попадай в топ!",
				c.Title, common.FormatDate(c.EndAt))
		}
	}

	h.sendMessage(chatID, text)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
