// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/bot"
	"nebulavpn.ru/telegram-bot/internal/bot/filters"
	"nebulavpn.ru/telegram-bot/internal/config"
	"nebulavpn.ru/telegram-bot/internal/db/postgres"
	"nebulavpn.ru/telegram-bot/internal/features/admin"
	"nebulavpn.ru/telegram-bot/internal/features/contest"
	"nebulavpn.ru/telegram-bot/internal/features/economy"
	"nebulavpn.ru/telegram-bot/internal/features/members"
	"nebulavpn.ru/telegram-bot/internal/features/referral"
	"nebulavpn.ru/telegram-bot/internal/features/subscription"
	"nebulavpn.ru/telegram-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// Отправка в произвольный чат/канал — для планировщика сводок
	sendTo := func(chatID int64, text string) {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := botAPI.Send(msg); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
		}
	}

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	subscriptionRepo := subscription.NewRepository(pool)
	contestRepo := contest.NewRepository(pool)
	referralRepo := referral.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	memberService := members.NewService(memberRepo)
	economyService := economy.NewService(economyRepo)
	subscriptionService := subscription.NewService(subscriptionRepo, economyService)
	awarder := contest.NewPrizeAwarder(subscriptionService, economyService)
	contestService := contest.NewService(contestRepo, awarder, cfg.AppTimezone)
	adminChatID := cfg.AdminChatID
	if adminChatID == 0 && len(cfg.AdminIDs) > 0 {
		// Отдельный админ-чат не настроен — сводки уходят первому оператору в личку
		adminChatID = cfg.AdminIDs[0]
	}
	referralService := referral.NewService(referralRepo, memberService, sendTo,
		adminChatID, cfg.ReferralChannelID, cfg.ReferralLeaderboardSize, cfg.AppTimezone)
	adminService := admin.NewService(adminRepo, cfg)

	// Хуки: оплата подписки и регистрация по ссылке засчитываются
	// в реферальные конкурсы, без прямой зависимости пакетов
	subscriptionService.SetPaymentHook(referralService.OnSubscriptionPayment)
	memberService.SetRegistrationHook(referralService.OnReferralRegistration)

	// === 5. Обработчики ===
	economyHandler := economy.NewHandler(economyService, botAPI)
	contestHandler := contest.NewHandler(contestService, botAPI)
	referralHandler := referral.NewHandler(referralService, memberService, botAPI, botAPI.Self.UserName)
	adminHandler := admin.NewHandler(adminService, contestService, contestHandler,
		subscriptionService, referralService, botAPI, cfg.MainChatID)

	// === 6. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.MainChatID)

	// === 7. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		memberService, subscriptionService,
		economyHandler, contestHandler, referralHandler, adminHandler,
		chatFilter,
	)

	// === 8. Планировщик задач ===
	announce := func(ctx context.Context, round *contest.Round) {
		if err := contestHandler.AnnounceRound(ctx, cfg.MainChatID, round, "ru"); err != nil {
			log.WithError(err).WithField("round_id", round.ID).Error("Ошибка публикации раунда")
		}
	}
	scheduler := jobs.NewScheduler(cfg.AppTimezone, contestService, referralService,
		announce, cfg.FeatureContestsEnabled, cfg.FeatureReferralsEnabled)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Economy},
		{3, migration003Subscriptions},
		{4, migration004Contests},
		{5, migration005Referral},
		{6, migration006Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.
// Все TIMESTAMP — наивный UTC; локальные слоты расписаний хранятся
// текстом и интерпретируются в поясе шаблона/конкурса.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255),
    referred_by BIGINT,
    is_admin BOOLEAN DEFAULT FALSE,
    is_banned BOOLEAN DEFAULT FALSE,
    joined_at TIMESTAMP DEFAULT NOW(),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id);
CREATE INDEX IF NOT EXISTS idx_members_referred_by ON members(referred_by);
`

var migration002Economy = `
CREATE TABLE IF NOT EXISTS balances (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES members(user_id),
    balance BIGINT DEFAULT 0,
    total_earned BIGINT DEFAULT 0,
    total_spent BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    from_user_id BIGINT REFERENCES members(user_id),
    to_user_id BIGINT REFERENCES members(user_id),
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    description TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_to_user ON transactions(to_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
`

var migration003Subscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES members(user_id),
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);
`

var migration004Contests = `
CREATE TABLE IF NOT EXISTS contest_templates (
    id BIGSERIAL PRIMARY KEY,
    slug VARCHAR(64) UNIQUE NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT DEFAULT '',
    game VARCHAR(50) NOT NULL,
    prize_type VARCHAR(20) NOT NULL,
    prize_value VARCHAR(255) NOT NULL,
    max_winners INTEGER NOT NULL DEFAULT 1,
    attempts_per_user INTEGER NOT NULL DEFAULT 1,
    times_per_day INTEGER NOT NULL DEFAULT 1,
    schedule_times VARCHAR(255) NOT NULL,
    cooldown_hours INTEGER NOT NULL DEFAULT 2,
    timezone VARCHAR(64) DEFAULT '',
    payload JSONB DEFAULT '{}',
    is_enabled BOOLEAN DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS contest_rounds (
    id BIGSERIAL PRIMARY KEY,
    template_id BIGINT NOT NULL REFERENCES contest_templates(id),
    starts_at TIMESTAMP NOT NULL,
    ends_at TIMESTAMP NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    payload JSONB NOT NULL,
    winners_count INTEGER NOT NULL DEFAULT 0,
    max_winners INTEGER NOT NULL DEFAULT 1,
    attempts_per_user INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_contest_rounds_template_status ON contest_rounds(template_id, status);
CREATE TABLE IF NOT EXISTS contest_attempts (
    id BIGSERIAL PRIMARY KEY,
    round_id BIGINT NOT NULL REFERENCES contest_rounds(id),
    user_id BIGINT NOT NULL,
    answer TEXT,
    is_winner BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (round_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_contest_attempts_user ON contest_attempts(user_id);
`

var migration005Referral = `
CREATE TABLE IF NOT EXISTS referral_contests (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    contest_type VARCHAR(30) NOT NULL,
    start_at TIMESTAMP NOT NULL,
    end_at TIMESTAMP NOT NULL,
    daily_summary_times VARCHAR(255) NOT NULL DEFAULT '12:00',
    timezone VARCHAR(64) DEFAULT '',
    is_active BOOLEAN DEFAULT TRUE,
    last_daily_summary_date TIMESTAMP,
    last_daily_summary_at TIMESTAMP,
    final_summary_sent BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS referral_contest_events (
    id BIGSERIAL PRIMARY KEY,
    contest_id BIGINT NOT NULL REFERENCES referral_contests(id),
    referrer_id BIGINT NOT NULL,
    referral_id BIGINT NOT NULL,
    amount_kopeks BIGINT NOT NULL DEFAULT 0,
    event_type VARCHAR(20) NOT NULL,
    occurred_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (contest_id, referral_id)
);
CREATE INDEX IF NOT EXISTS idx_referral_events_contest_referrer ON referral_contest_events(contest_id, referrer_id);
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
