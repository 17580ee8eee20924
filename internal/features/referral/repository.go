// Package referral — repository.go отвечает за операции с таблицами
// referral_contests и referral_contest_events.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nebulavpn.ru/telegram-bot/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const contestColumns = `id, title, contest_type, start_at, end_at, daily_summary_times, timezone,
	       is_active, last_daily_summary_date, last_daily_summary_at, final_summary_sent,
	       created_at, updated_at`

func scanContest(row pgx.Row) (*Contest, error) {
	var c Contest
	err := row.Scan(
		&c.ID, &c.Title, &c.ContestType, &c.StartAt, &c.EndAt,
		&c.DailySummaryTimes, &c.Timezone, &c.IsActive,
		&c.LastDailySummaryDate, &c.LastDailySummaryAt, &c.FinalSummarySent,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContest добавляет новый реферальный конкурс.
func (r *Repository) CreateContest(ctx context.Context, c *Contest) error {
	query := `
		INSERT INTO referral_contests (title, contest_type, start_at, end_at, daily_summary_times, timezone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		c.Title, c.ContestType, c.StartAt, c.EndAt, c.DailySummaryTimes, c.Timezone,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания реферального конкурса: %w", err)
	}
	return nil
}

func (r *Repository) GetContest(ctx context.Context, id int64) (*Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM referral_contests WHERE id = $1`
	c, err := scanContest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("конкурс id=%d: %w", id, common.ErrContestNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения реферального конкурса: %w", err)
	}
	return c, nil
}

// ListActiveContests возвращает все конкурсы с is_active = TRUE,
// включая завершившиеся по времени, но ещё без финальной сводки.
func (r *Repository) ListActiveContests(ctx context.Context) ([]*Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM referral_contests WHERE is_active = TRUE ORDER BY id`
	return r.queryContests(ctx, query)
}

// ListEligibleContests возвращает конкурсы нужного типа, идущие в момент now.
// Используется хуками записи событий.
func (r *Repository) ListEligibleContests(ctx context.Context, ct ContestType, now time.Time) ([]*Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM referral_contests
		WHERE is_active = TRUE AND contest_type = $1 AND start_at <= $2 AND end_at >= $2
		ORDER BY id
	`
	return r.queryContests(ctx, query, ct, now)
}

func (r *Repository) queryContests(ctx context.Context, query string, args ...interface{}) ([]*Contest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса реферальных конкурсов: %w", err)
	}
	defer rows.Close()

	var out []*Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// RecordEvent записывает засчитанное действие реферала.
// Дедупликация по (contest_id, referral_id) на уровне индекса:
// повторная запись того же приглашённого молча игнорируется.
// Возвращает true, если событие действительно записано.
func (r *Repository) RecordEvent(ctx context.Context, e *Event) (bool, error) {
	query := `
		INSERT INTO referral_contest_events (contest_id, referrer_id, referral_id, amount_kopeks, event_type, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contest_id, referral_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		e.ContestID, e.ReferrerID, e.ReferralID, e.AmountKopeks, e.EventType, e.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка записи реферального события: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Leaderboard возвращает топ рефереров конкурса по числу событий,
// при равенстве — по сумме платежей.
func (r *Repository) Leaderboard(ctx context.Context, contestID int64, limit int) ([]*LeaderboardRow, error) {
	query := `
		SELECT referrer_id, COUNT(*), COALESCE(SUM(amount_kopeks), 0)
		FROM referral_contest_events
		WHERE contest_id = $1
		GROUP BY referrer_id
		ORDER BY COUNT(*) DESC, SUM(amount_kopeks) DESC, referrer_id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, contestID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса таблицы лидеров: %w", err)
	}
	defer rows.Close()

	var out []*LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.ReferrerID, &row.Events, &row.AmountKopeks); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// ContestTotals возвращает агрегаты конкурса для сводки.
func (r *Repository) ContestTotals(ctx context.Context, contestID int64) (*Totals, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT referrer_id), COALESCE(SUM(amount_kopeks), 0)
		FROM referral_contest_events
		WHERE contest_id = $1
	`
	var t Totals
	if err := r.db.QueryRow(ctx, query, contestID).Scan(&t.Events, &t.Referrers, &t.AmountKopeks); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта агрегатов конкурса: %w", err)
	}
	return &t, nil
}

// AdvanceDailyWatermark сдвигает вотермарку ежедневных сводок.
func (r *Repository) AdvanceDailyWatermark(ctx context.Context, contestID int64, day, at time.Time) error {
	query := `
		UPDATE referral_contests
		SET last_daily_summary_date = $2, last_daily_summary_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, contestID, day, at); err != nil {
		return fmt.Errorf("ошибка сдвига вотермарки конкурса: %w", err)
	}
	return nil
}

// MarkFinalSent помечает финальную сводку отправленной и гасит конкурс.
// Терминальный переход, обратного пути нет.
func (r *Repository) MarkFinalSent(ctx context.Context, contestID int64) error {
	query := `
		UPDATE referral_contests
		SET final_summary_sent = TRUE, is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, contestID); err != nil {
		return fmt.Errorf("ошибка фиксации финальной сводки: %w", err)
	}
	return nil
}

// SetContestActive включает или выключает конкурс вручную.
func (r *Repository) SetContestActive(ctx context.Context, contestID int64, active bool) error {
	query := `UPDATE referral_contests SET is_active = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, contestID, active); err != nil {
		return fmt.Errorf("ошибка переключения конкурса: %w", err)
	}
	return nil
}
