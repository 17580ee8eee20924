// Package contest — handlers.go показывает раунды в чате и принимает
// нажатия кнопок и текстовые ответы. Тонкий слой: всё содержательное
// делает Service, сюда относится только рендер и маршрутизация.
package contest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/games"
)

// Префиксы callback-данных кнопок
const (
	callbackPlay = "contest:play" // contest:play:<round_id>:<token>
	callbackJoin = "contest:join" // contest:join:<round_id>
)

// Handler обрабатывает конкурсные команды и кнопки.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик конкурсов.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// AnnounceRound публикует задание раунда в чат.
func (h *Handler) AnnounceRound(ctx context.Context, chatID int64, round *Round, lang string) error {
	tmpl, err := h.service.Template(ctx, round.TemplateID)
	if err != nil {
		return err
	}
	strategy, err := games.Resolve(tmpl.Game)
	if err != nil {
		return err
	}
	prompt, err := strategy.Render(round.ID, round.Payload, lang)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s\n\n%s\n🏆 Приз: %s | Победителей: %d\n⏰ До %s",
		tmpl.Name, prompt.Text, describePrize(tmpl),
		round.MaxWinners, common.FormatDateTime(round.EndsAt))

	msg := tgbotapi.NewMessage(chatID, text)
	if prompt.NeedsTextInput {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🎯 Участвовать",
					fmt.Sprintf("%s:%d", callbackJoin, round.ID)),
			),
		)
	} else {
		msg.ReplyMarkup = buildOptionsKeyboard(round.ID, prompt.Options)
	}

	if _, err := h.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка публикации раунда: %w", err)
	}
	return nil
}

// buildOptionsKeyboard раскладывает варианты по рядам не шире 4 кнопок.
func buildOptionsKeyboard(roundID int64, options []games.Option) tgbotapi.InlineKeyboardMarkup {
	const perRow = 4
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, opt := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(opt.Label,
			fmt.Sprintf("%s:%d:%s", callbackPlay, roundID, opt.Token)))
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func describePrize(tmpl *Template) string {
	switch tmpl.PrizeType {
	case PrizeDays:
		return fmt.Sprintf("%s дней подписки", tmpl.PrizeValue)
	case PrizeBalance:
		return fmt.Sprintf("%s копеек", tmpl.PrizeValue)
	default:
		return tmpl.PrizeValue
	}
}

// HandleActiveRounds обрабатывает команду !розыгрыши — повторная
// публикация всех идущих раундов.
func (h *Handler) HandleActiveRounds(ctx context.Context, chatID int64, lang string) {
	rounds, err := h.service.ActiveRounds(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения активных раундов")
		h.sendMessage(chatID, "❌ Не удалось получить список розыгрышей")
		return
	}
	if len(rounds) == 0 {
		h.sendMessage(chatID, "🎲 Сейчас нет активных розыгрышей. Загляни позже!")
		return
	}
	for _, round := range rounds {
		if err := h.AnnounceRound(ctx, chatID, round, lang); err != nil {
			log.WithError(err).WithField("round_id", round.ID).Error("Ошибка показа раунда")
		}
	}
}

// HandleCallback обрабатывает нажатие конкурсной кнопки.
// Возвращает true, если callback относился к конкурсам.
func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) bool {
	if cq == nil || cq.From == nil {
		return false
	}
	data := cq.Data
	lang := cq.From.LanguageCode

	switch {
	case strings.HasPrefix(data, callbackPlay+":"):
		roundID, token, ok := parsePlayData(data)
		if !ok {
			h.answerCallback(cq.ID, "🤷 Кнопка устарела")
			return true
		}
		h.handlePlay(ctx, cq, roundID, token, lang)
		return true

	case strings.HasPrefix(data, callbackJoin+":"):
		roundID, err := strconv.ParseInt(strings.TrimPrefix(data, callbackJoin+":"), 10, 64)
		if err != nil {
			h.answerCallback(cq.ID, "🤷 Кнопка устарела")
			return true
		}
		h.handleJoin(ctx, cq, roundID)
		return true
	}
	return false
}

func parsePlayData(data string) (int64, string, bool) {
	rest := strings.TrimPrefix(data, callbackPlay+":")
	idStr, token, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, "", false
	}
	roundID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return roundID, token, true
}

// handlePlay — попытка кнопочной игры.
func (h *Handler) handlePlay(ctx context.Context, cq *tgbotapi.CallbackQuery, roundID int64, token, lang string) {
	round, err := h.service.Round(ctx, roundID)
	if err != nil {
		h.answerCallback(cq.ID, "🤷 Раунд не найден")
		return
	}

	result := h.service.ProcessButtonAttempt(ctx, round, cq.From.ID, token, lang)
	h.answerCallback(cq.ID, result.Message)

	// Победу дублируем в чат — пусть видят все
	if result.IsWinner && cq.Message != nil {
		h.sendMessage(cq.Message.Chat.ID,
			fmt.Sprintf("🎉 %s выиграл в раунде #%d!", displayName(cq.From), roundID))
	}
}

// handleJoin — резервирование слота текстовой игры.
func (h *Handler) handleJoin(ctx context.Context, cq *tgbotapi.CallbackQuery, roundID int64) {
	created, err := h.service.CreatePendingAttempt(ctx, roundID, cq.From.ID)
	if errors.Is(err, common.ErrRoundNotFound) {
		h.answerCallback(cq.ID, "⏳ Раунд уже завершён")
		return
	}
	if err != nil {
		log.WithError(err).WithField("round_id", roundID).Error("Ошибка резервирования попытки")
		h.answerCallback(cq.ID, "😔 Что-то пошло не так, попробуй ещё раз")
		return
	}
	if !created {
		h.answerCallback(cq.ID, "✋ Ты уже участвуешь — жду твой ответ")
		return
	}
	h.answerCallback(cq.ID, "✍️ Принято! Напиши ответ одним сообщением в чат")
}

// HandleTextAnswer связывает свободный текст с ожидающей текстовой игрой.
// Возвращает true, если текст был ответом на раунд.
func (h *Handler) HandleTextAnswer(ctx context.Context, chatID, userID int64, text, lang string) bool {
	round, err := h.service.PendingRoundFor(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка поиска ожидающей попытки")
		return false
	}
	if round == nil {
		return false
	}

	result := h.service.ProcessTextAttempt(ctx, round, userID, text, lang)
	h.sendMessage(chatID, result.Message)
	return true
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}

func (h *Handler) answerCallback(callbackID, text string) {
	callback := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := h.bot.Request(callback); err != nil {
		log.WithError(err).Debug("Ошибка ответа на callback")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
