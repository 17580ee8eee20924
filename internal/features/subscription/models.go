// Package subscription управляет подписками пользователей на VPN.
// models.go описывает структуры данных подписок.
package subscription

import "time"

// Subscription — подписка пользователя. Срок хранится как наивный UTC.
type Subscription struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Active — подписка ещё не истекла.
func (s *Subscription) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
