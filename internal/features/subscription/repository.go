// Package subscription — repository.go выполняет операции с таблицей subscriptions.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// Repository работает с таблицей подписок в БД.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий подписок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByUserID возвращает подписку пользователя.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Subscription, error) {
	var s Subscription
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at, updated_at
		FROM subscriptions WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подписки: %w", err)
	}
	return &s, nil
}

// extendSQL продлевает подписку на N дней одним запросом.
// Истёкшая подписка продлевается от "сейчас", действующая — от expires_at,
// поэтому выигранные дни никогда не сгорают.
const extendSQL = `
	INSERT INTO subscriptions (user_id, expires_at)
	VALUES ($1, NOW() + make_interval(days => $2))
	ON CONFLICT (user_id) DO UPDATE SET
		expires_at = GREATEST(subscriptions.expires_at, NOW()) + make_interval(days => $2),
		updated_at = NOW()
`

// Extend продлевает подписку в собственной транзакции.
func (r *Repository) Extend(ctx context.Context, userID int64, days int) error {
	if _, err := r.db.Exec(ctx, extendSQL, userID, days); err != nil {
		return fmt.Errorf("ошибка продления подписки: %w", err)
	}
	return nil
}

// ExtendTx продлевает подписку внутри ЧУЖОЙ транзакции.
// Используется наградителем призов конкурсов.
func (r *Repository) ExtendTx(ctx context.Context, tx pgx.Tx, userID int64, days int) error {
	if _, err := tx.Exec(ctx, extendSQL, userID, days); err != nil {
		return fmt.Errorf("ошибка продления подписки: %w", err)
	}
	return nil
}
