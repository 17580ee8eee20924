// Package admin — handlers.go обрабатывает операторские команды в личных
// сообщениях. Поток: аутентификация по паролю → текстовые команды
// управления конкурсами, оплатами и реферальными соревнованиями.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/contest"
	"nebulavpn.ru/telegram-bot/internal/features/referral"
	"nebulavpn.ru/telegram-bot/internal/features/subscription"
)

// Handler обрабатывает операторские команды.
type Handler struct {
	service        *Service
	contests       *contest.Service
	contestHandler *contest.Handler
	subscriptions  *subscription.Service
	referrals      *referral.Service
	bot            *tgbotapi.BotAPI
	mainChatID     int64
}

// NewHandler создаёт обработчик операторской панели.
func NewHandler(service *Service, contests *contest.Service, contestHandler *contest.Handler,
	subscriptions *subscription.Service, referrals *referral.Service,
	bot *tgbotapi.BotAPI, mainChatID int64) *Handler {
	return &Handler{
		service:        service,
		contests:       contests,
		contestHandler: contestHandler,
		subscriptions:  subscriptions,
		referrals:      referrals,
		bot:            bot,
		mainChatID:     mainChatID,
	}
}

const helpText = `🛠 Операторские команды:
шаблоны — список шаблонов конкурсов
шаблон <slug> вкл|выкл — включить/выключить шаблон
раунд <slug> — открыть раунд сейчас и опубликовать в чат
стоп <round_id> — завершить раунд
сброс <round_id> — удалить попытки раунда
оплата <user_id> <копейки> <дни> — подтвердить оплату подписки
рефконкурс <paid|reg> <дней> <название> — создать реферальный конкурс
конкурсы — список реферальных конкурсов
выход — завершить сессию`

// HandleAdminMessage обрабатывает сообщение от оператора в личке.
// Возвращает true, если сообщение было операторским.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, text string) bool {
	if !h.service.IsConfiguredAdmin(userID) {
		return false
	}

	state := h.service.GetState(userID)
	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	if !h.service.HasActiveSession(ctx, userID) {
		// Без сессии реагируем только на явный запрос входа, остальное
		// уходит в обычную маршрутизацию
		if !isLoginRequest(text) {
			return false
		}
		h.sendMessage(chatID, "🔐 Введите пароль для доступа к панели:")
		h.service.SetState(userID, StateAwaitingPassword)
		return true
	}

	return h.routeCommand(ctx, chatID, userID, strings.TrimSpace(text))
}

func isLoginRequest(text string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd = strings.ToLower(strings.TrimLeft(cmd, "!./"))
	return cmd == "login" || cmd == "войти" || cmd == "панель"
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	h.service.ClearState(userID)
	if err := h.service.VerifyPassword(ctx, userID, password); err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ %s", err.Error()))
		return
	}
	h.sendMessage(chatID, "✅ Аутентификация успешна!\n\n"+helpText)
}

// routeCommand возвращает false для текста, не похожего на операторскую
// команду: тогда сообщение уходит в обычную маршрутизацию бота.
func (h *Handler) routeCommand(ctx context.Context, chatID, userID int64, text string) bool {
	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "помощь", "команды", "help":
		h.sendMessage(chatID, helpText)
	case "шаблоны":
		h.listTemplates(ctx, chatID)
	case "шаблон":
		h.toggleTemplate(ctx, chatID, args)
	case "раунд":
		h.openRound(ctx, chatID, args)
	case "стоп":
		h.finishRound(ctx, chatID, args)
	case "сброс":
		h.resetAttempts(ctx, chatID, args)
	case "оплата":
		h.confirmPayment(ctx, chatID, args)
	case "рефконкурс":
		h.createReferralContest(ctx, chatID, args)
	case "конкурсы":
		h.listReferralContests(ctx, chatID)
	case "выход":
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка завершения сессии")
		}
		h.sendMessage(chatID, "👋 Сессия завершена")
	default:
		return false
	}
	return true
}

func (h *Handler) listTemplates(ctx context.Context, chatID int64) {
	templates, err := h.contests.Templates(ctx)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	if len(templates) == 0 {
		h.sendMessage(chatID, "Шаблонов пока нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Шаблоны конкурсов:\n\n")
	for _, t := range templates {
		mark := "🔴"
		if t.IsEnabled {
			mark = "🟢"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s, игра %s, слоты %s, %d %s\n",
			mark, t.Slug, t.Name, t.Game, t.ScheduleTimes,
			t.MaxWinners, common.PluralizeWinners(int64(t.MaxWinners))))
	}
	h.sendMessage(chatID, sb.String())
}

func (h *Handler) toggleTemplate(ctx context.Context, chatID int64, args string) {
	slug, mode, ok := strings.Cut(args, " ")
	if !ok {
		h.sendMessage(chatID, "Формат: шаблон <slug> вкл|выкл")
		return
	}
	var enabled bool
	switch strings.TrimSpace(mode) {
	case "вкл", "on":
		enabled = true
	case "выкл", "off":
		enabled = false
	default:
		h.sendMessage(chatID, "Формат: шаблон <slug> вкл|выкл")
		return
	}
	if err := h.contests.SetTemplateEnabled(ctx, slug, enabled); err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Шаблон %s: вкл=%v", slug, enabled))
}

func (h *Handler) openRound(ctx context.Context, chatID int64, slug string) {
	if slug == "" {
		h.sendMessage(chatID, "Формат: раунд <slug>")
		return
	}
	round, err := h.contests.OpenRoundNow(ctx, slug)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	if err := h.contestHandler.AnnounceRound(ctx, h.mainChatID, round, "ru"); err != nil {
		log.WithError(err).WithField("round_id", round.ID).Error("Ошибка публикации раунда")
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Раунд #%d открыт до %s и опубликован",
		round.ID, common.FormatDateTime(round.EndsAt)))
}

func (h *Handler) finishRound(ctx context.Context, chatID int64, args string) {
	roundID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		h.sendMessage(chatID, "Формат: стоп <round_id>")
		return
	}
	if err := h.contests.FinishRound(ctx, roundID); err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Раунд #%d завершён", roundID))
}

func (h *Handler) resetAttempts(ctx context.Context, chatID int64, args string) {
	roundID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		h.sendMessage(chatID, "Формат: сброс <round_id>")
		return
	}
	deleted, err := h.contests.ResetAttempts(ctx, roundID)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Удалено попыток: %d", deleted))
}

// confirmPayment — ручное подтверждение оплаты подписки.
// Продлевает подписку, пишет историю и дёргает реферальный хук.
func (h *Handler) confirmPayment(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		h.sendMessage(chatID, "Формат: оплата <user_id> <копейки> <дни>")
		return
	}
	userID, err1 := strconv.ParseInt(fields[0], 10, 64)
	kopeks, err2 := strconv.ParseInt(fields[1], 10, 64)
	days, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		h.sendMessage(chatID, "Формат: оплата <user_id> <копейки> <дни>")
		return
	}
	if err := h.subscriptions.ConfirmPayment(ctx, userID, kopeks, days); err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Оплата %s: подписка пользователя %d продлена на %d %s",
		common.FormatKopeks(kopeks), userID, days, common.PluralizeDays(int64(days))))
}

func (h *Handler) createReferralContest(ctx context.Context, chatID int64, args string) {
	fields := strings.SplitN(args, " ", 3)
	if len(fields) != 3 {
		h.sendMessage(chatID, "Формат: рефконкурс <paid|reg> <дней> <название>")
		return
	}
	var ct referral.ContestType
	switch fields[0] {
	case "paid":
		ct = referral.ContestPaid
	case "reg":
		ct = referral.ContestRegistered
	default:
		h.sendMessage(chatID, "Тип конкурса: paid или reg")
		return
	}
	days, err := strconv.Atoi(fields[1])
	if err != nil || days <= 0 {
		h.sendMessage(chatID, "Длительность — положительное число дней")
		return
	}

	now := time.Now().UTC()
	c := &referral.Contest{
		Title:       strings.TrimSpace(fields[2]),
		ContestType: ct,
		StartAt:     now,
		EndAt:       now.AddDate(0, 0, days),
	}
	if err := h.referrals.CreateContest(ctx, c); err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Конкурс «%s» #%d запущен до %s",
		c.Title, c.ID, common.FormatDate(c.EndAt)))
}

func (h *Handler) listReferralContests(ctx context.Context, chatID int64) {
	contests, err := h.referrals.ActiveContests(ctx)
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("❌ Ошибка: %s", err.Error()))
		return
	}
	if len(contests) == 0 {
		h.sendMessage(chatID, "Активных реферальных конкурсов нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Реферальные конкурсы:\n\n")
	for _, c := range contests {
		sb.WriteString(fmt.Sprintf("#%d «%s» (%s) — до %s\n",
			c.ID, c.Title, c.ContestType, common.FormatDate(c.EndAt)))
	}
	h.sendMessage(chatID, sb.String())
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
