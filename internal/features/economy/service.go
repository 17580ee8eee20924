// Package economy — service.go содержит бизнес-логику экономики.
// Валидация сумм, начисления, получение баланса и истории транзакций.
package economy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// Service управляет балансами пользователей (копейки).
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис экономики.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// CreateBalance создаёт начальный баланс для нового пользователя (0 копеек).
func (s *Service) CreateBalance(ctx context.Context, userID int64) error {
	return s.repo.EnsureBalance(ctx, userID)
}

// Credit начисляет копейки пользователю в собственной транзакции.
func (s *Service) Credit(ctx context.Context, userID, amount int64, txType, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.Credit(ctx, userID, amount, txType, description)
}

// CreditTx начисляет копейки внутри переданной транзакции.
// Используется призовым модулем конкурсов.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, userID, amount int64, txType, description string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.CreditTx(ctx, tx, userID, amount, txType, description)
}

// GetTransactionHistory возвращает форматированную историю транзакций.
// Последние 10 транзакций.
func (s *Service) GetTransactionHistory(ctx context.Context, userID int64) (string, error) {
	transactions, err := s.repo.GetTransactions(ctx, userID, 10)
	if err != nil {
		return "", err
	}

	if len(transactions) == 0 {
		return "📋 У вас пока нет транзакций", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние %d транзакций:\n\n", len(transactions)))
	for i, tx := range transactions {
		// Знак: + если получили, - если списали
		sign := "+"
		if tx.FromUserID != nil && *tx.FromUserID == userID {
			sign = "-"
		}
		sb.WriteString(fmt.Sprintf("%d. %s | %s%s | %s\n",
			i+1,
			common.FormatDateTime(tx.CreatedAt),
			sign,
			common.FormatKopeks(tx.Amount),
			tx.Description,
		))
	}
	return sb.String(), nil
}
