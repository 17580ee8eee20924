// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go принимает обновления Telegram и маршрутизирует их по обработчикам.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/bot/filters"
	"nebulavpn.ru/telegram-bot/internal/bot/middleware"
	"nebulavpn.ru/telegram-bot/internal/config"
	"nebulavpn.ru/telegram-bot/internal/features/admin"
	"nebulavpn.ru/telegram-bot/internal/features/contest"
	"nebulavpn.ru/telegram-bot/internal/features/economy"
	"nebulavpn.ru/telegram-bot/internal/features/members"
	"nebulavpn.ru/telegram-bot/internal/features/referral"
	"nebulavpn.ru/telegram-bot/internal/features/subscription"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	memberService       *members.Service
	subscriptionService *subscription.Service

	economyHandler  *economy.Handler
	contestHandler  *contest.Handler
	referralHandler *referral.Handler
	adminHandler    *admin.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	subscriptionService *subscription.Service,
	economyHandler *economy.Handler,
	contestHandler *contest.Handler,
	referralHandler *referral.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:                 api,
		cfg:                 cfg,
		chatFilter:          chatFilter,
		rateLimiter:         middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		memberService:       memberService,
		subscriptionService: subscriptionService,
		economyHandler:      economyHandler,
		contestHandler:      contestHandler,
		referralHandler:     referralHandler,
		adminHandler:        adminHandler,
		parser:              NewCommandParser(),
		inflight:            make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Нажатия inline-кнопок (конкурсные раунды)
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// /start обрабатываем до EnsureMember: только он умеет
	// фиксировать реферальную связь
	if message.IsCommand() && message.Command() == "start" {
		b.handleStart(ctx, message)
		return
	}

	if err := b.memberService.EnsureMember(ctx, userID,
		message.From.UserName, message.From.FirstName, message.From.LastName,
	); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureMember failed")
	}

	// В DM первым делом пробуем операторскую панель
	if message.Chat.IsPrivate() {
		if handled := b.adminHandler.HandleAdminMessage(ctx, chatID, userID, message.Text); handled {
			return
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if isCommand {
		b.routeCommand(ctx, chatID, userID, cmd, args, message.From.LanguageCode)
		return
	}

	// Не команда — возможно, это ответ на текстовую игру
	if b.cfg.FeatureContestsEnabled {
		b.contestHandler.HandleTextAnswer(ctx, chatID, userID, message.Text, message.From.LanguageCode)
	}
}

// handleCallback обрабатывает нажатие inline-кнопки.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	middleware.LogCallback(cq)

	if !b.chatFilter.AllowCallback(cq) {
		return
	}
	if cq.From != nil && !b.rateLimiter.Allow(cq.From.ID) {
		log.WithField("user_id", cq.From.ID).Debug("rate limited (callback)")
		return
	}

	if b.cfg.FeatureContestsEnabled && b.contestHandler.HandleCallback(ctx, cq) {
		return
	}

	// Неизвестный callback — молча подтверждаем, чтобы кнопка не "висела"
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.WithError(err).Debug("Ошибка ответа на callback")
	}
}

// handleStart обрабатывает /start, в том числе реферальные ссылки
// вида t.me/bot?start=ref123.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	var referrerID *int64
	if arg := message.CommandArguments(); arg != "" {
		if id, ok := members.ParseReferrerID(arg); ok {
			referrerID = &id
		}
	}

	if err := b.memberService.Register(ctx, userID,
		message.From.UserName, message.From.FirstName, message.From.LastName, referrerID,
	); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка регистрации по /start")
		b.sendMessage(chatID, "❌ Что-то пошло не так, попробуй ещё раз")
		return
	}

	b.sendMessage(chatID, "👋 Привет! Я бот NebulaVPN.\n\n"+
		"!подписка — статус подписки\n"+
		"!баланс — баланс\n"+
		"!розыгрыши — активные конкурсы\n"+
		"!рефералы — твоя реферальная ссылка\n"+
		"!помощь — все команды")
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string, lang string) {
	switch cmd {
	case "help", "помощь", "команды":
		b.sendMessage(chatID, "Команды: !подписка, !баланс, !транзакции, "+
			"!розыгрыши, !рефералы. Операторам: /login в личке.")

	case "подписка":
		b.handleSubscriptionStatus(ctx, chatID, userID)

	case "баланс":
		b.economyHandler.HandleBalance(ctx, chatID, userID)

	case "транзакции":
		b.economyHandler.HandleTransactions(ctx, chatID, userID)

	case "розыгрыши", "конкурсы":
		if b.cfg.FeatureContestsEnabled {
			b.contestHandler.HandleActiveRounds(ctx, chatID, lang)
		} else {
			b.sendMessage(chatID, "🎲 Конкурсы временно отключены")
		}

	case "рефералы", "ссылка":
		if b.cfg.FeatureReferralsEnabled {
			b.referralHandler.HandleMyReferrals(ctx, chatID, userID)
		}
	}
}

func (b *Bot) handleSubscriptionStatus(ctx context.Context, chatID, userID int64) {
	text, err := b.subscriptionService.FormatStatus(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка статуса подписки")
		b.sendMessage(chatID, "❌ Не удалось получить статус подписки")
		return
	}
	b.sendMessage(chatID, text)
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendTo отправляет произвольный текст в чат или канал.
// Используется планировщиком сводок.
func (b *Bot) SendTo(chatID int64, text string) {
	b.sendMessage(chatID, text)
}

// CommandParser парсит русские команды с префиксами !, . и /.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
