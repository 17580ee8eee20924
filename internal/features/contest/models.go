// Package contest реализует жизненный цикл конкурсных раундов:
// шаблоны, раунды, попытки и гонкобезопасный выбор победителей.
// models.go описывает все структуры данных конкурсов.
package contest

import (
	"encoding/json"
	"time"
)

// PrizeType — тип приза шаблона.
type PrizeType string

const (
	PrizeDays    PrizeType = "days"    // продление подписки на N дней
	PrizeBalance PrizeType = "balance" // начисление N копеек на баланс
	PrizeCustom  PrizeType = "custom"  // произвольный текст, без мутаций состояния
)

// RoundStatus — статус раунда.
type RoundStatus string

const (
	RoundActive   RoundStatus = "active"
	RoundFinished RoundStatus = "finished"
)

// Template — переиспользуемое описание конкурса.
// Создаётся и правится оператором; никогда не удаляется, только выключается.
type Template struct {
	ID          int64     `db:"id"`
	Slug        string    `db:"slug"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Game        string    `db:"game"` // слаг игры из games.Kinds()
	PrizeType   PrizeType `db:"prize_type"`
	// PrizeValue интерпретируется по PrizeType: число дней, число копеек
	// или произвольный текст для custom
	PrizeValue      string          `db:"prize_value"`
	MaxWinners      int             `db:"max_winners"`
	AttemptsPerUser int             `db:"attempts_per_user"`
	TimesPerDay     int             `db:"times_per_day"`
	ScheduleTimes   string          `db:"schedule_times"` // "10:00,18:00" — локальные слоты
	CooldownHours   int             `db:"cooldown_hours"` // длительность раунда
	Timezone        string          `db:"timezone"`
	Payload         json.RawMessage `db:"payload"` // статичный конфиг игры (словарь и т.п.)
	IsEnabled       bool            `db:"is_enabled"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// Round — один розыгрыш шаблона в одном временном окне.
// MaxWinners и AttemptsPerUser снапшотятся из шаблона при создании:
// поздние правки шаблона не меняют правила уже идущего раунда.
type Round struct {
	ID         int64       `db:"id"`
	TemplateID int64       `db:"template_id"`
	StartsAt   time.Time   `db:"starts_at"` // наивный UTC
	EndsAt     time.Time   `db:"ends_at"`   // наивный UTC
	Status     RoundStatus `db:"status"`
	// Payload — случайный секрет раунда; создаётся один раз и не меняется
	Payload         json.RawMessage `db:"payload"`
	WinnersCount    int             `db:"winners_count"`
	MaxWinners      int             `db:"max_winners"`
	AttemptsPerUser int             `db:"attempts_per_user"`
	CreatedAt       time.Time       `db:"created_at"`
}

// Expired сообщает, вышло ли окно раунда по настенным часам.
// Истечение проверяется читателями: статус в БД может отставать.
func (r *Round) Expired(now time.Time) bool {
	return now.After(r.EndsAt)
}

// Playable — раунд активен и его окно ещё не закрылось.
func (r *Round) Playable(now time.Time) bool {
	return r.Status == RoundActive && !r.Expired(now)
}

// Attempt — одна попытка пользователя в одном раунде.
// Инвариант: не больше одной записи на пару (round_id, user_id).
// Answer == nil означает "слот зарезервирован, ответ ожидается" —
// так текстовые игры блокируют повторный вход, пока пользователь печатает.
type Attempt struct {
	ID        int64     `db:"id"`
	RoundID   int64     `db:"round_id"`
	UserID    int64     `db:"user_id"`
	Answer    *string   `db:"answer"`
	IsWinner  bool      `db:"is_winner"`
	CreatedAt time.Time `db:"created_at"`
}

// Pending — попытка зарезервирована, но ответ ещё не дан.
func (a *Attempt) Pending() bool {
	return a.Answer == nil
}

// Result — итог обработки попытки для чат-слоя.
// Чат-слой рендерит Message как есть и не интерпретирует внутренности игры.
type Result struct {
	Success       bool
	IsWinner      bool
	Message       string
	AlreadyPlayed bool
	RoundFinished bool
}
