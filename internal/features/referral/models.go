// Package referral — реферальные конкурсы: учёт приглашений и платежей
// рефералов, ежедневные и финальные сводки по лидерам.
// models.go описывает структуры таблиц referral_contests и referral_contest_events.
package referral

import "time"

// ContestType определяет, какие действия рефералов засчитываются.
type ContestType string

const (
	// ContestPaid — засчитывается первая оплата приглашённого
	ContestPaid ContestType = "referral_paid"
	// ContestRegistered — засчитывается сама регистрация по ссылке
	ContestRegistered ContestType = "referral_registered"
)

// EventType — тип засчитанного действия.
type EventType string

const (
	EventPaid       EventType = "paid"
	EventRegistered EventType = "registered"
)

// Contest — долгоиграющий реферальный конкурс.
// Все инстанты хранятся наивным UTC; локальные слоты сводок
// интерпретируются в поясе Timezone.
type Contest struct {
	ID                int64       `db:"id"`
	Title             string      `db:"title"`
	ContestType       ContestType `db:"contest_type"`
	StartAt           time.Time   `db:"start_at"`
	EndAt             time.Time   `db:"end_at"`
	DailySummaryTimes string      `db:"daily_summary_times"` // "12:00" или "12:00,20:00" — локальные слоты
	Timezone          string      `db:"timezone"`
	IsActive          bool        `db:"is_active"`

	// Вотермарка ежедневных сводок: дата и UTC-инстант последней отправки.
	// Гарантирует не больше одной сводки на слот независимо от частоты тиков.
	LastDailySummaryDate *time.Time `db:"last_daily_summary_date"`
	LastDailySummaryAt   *time.Time `db:"last_daily_summary_at"`

	FinalSummarySent bool      `db:"final_summary_sent"` // терминальный флаг
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Running сообщает, идёт ли конкурс в момент now (наивный UTC).
func (c *Contest) Running(now time.Time) bool {
	return c.IsActive && !now.Before(c.StartAt) && !now.After(c.EndAt)
}

// Event — одно засчитанное действие реферала.
// Уникальность по (contest_id, referral_id): приглашённый приносит
// балл не больше одного раза за конкурс, повторные покупки не считаются.
type Event struct {
	ID           int64     `db:"id"`
	ContestID    int64     `db:"contest_id"`
	ReferrerID   int64     `db:"referrer_id"`
	ReferralID   int64     `db:"referral_id"`
	AmountKopeks int64     `db:"amount_kopeks"`
	EventType    EventType `db:"event_type"`
	OccurredAt   time.Time `db:"occurred_at"`
}

// LeaderboardRow — строка таблицы лидеров конкурса.
type LeaderboardRow struct {
	ReferrerID   int64
	Events       int
	AmountKopeks int64
}

// Totals — агрегаты конкурса для сводки.
type Totals struct {
	Events       int
	Referrers    int
	AmountKopeks int64
}
