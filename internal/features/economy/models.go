// Package economy реализует хранимый баланс пользователей в копейках.
// models.go описывает структуры данных экономики.
package economy

import "time"

// Balance — счёт пользователя. Все суммы в копейках.
type Balance struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Balance     int64     `db:"balance"`
	TotalEarned int64     `db:"total_earned"`
	TotalSpent  int64     `db:"total_spent"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Transaction — одна запись истории начислений/списаний.
type Transaction struct {
	ID              int64     `db:"id"`
	FromUserID      *int64    `db:"from_user_id"`
	ToUserID        *int64    `db:"to_user_id"`
	Amount          int64     `db:"amount"`
	TransactionType string    `db:"transaction_type"`
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
}

// Типы транзакций
const (
	TxContestPrize = "contest_prize" // приз мини-игры
	TxPayment      = "payment"       // оплата подписки
	TxManual       = "manual"        // ручная корректировка оператором
)
