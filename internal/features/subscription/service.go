// Package subscription — service.go содержит бизнес-логику подписок:
// статус, продление и подтверждение оплаты.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/economy"
)

// PaymentHook вызывается после подтверждения оплаты.
// Сюда подключается реферальный модуль (fire-and-forget, ошибки только логируются).
type PaymentHook func(ctx context.Context, userID int64, amountKopeks int64)

// Service управляет подписками.
type Service struct {
	repo        *Repository
	economy     *economy.Service
	paymentHook PaymentHook
}

// NewService создаёт сервис подписок.
func NewService(repo *Repository, economyService *economy.Service) *Service {
	return &Service{repo: repo, economy: economyService}
}

// SetPaymentHook подключает обработчик события оплаты.
// Вызывается один раз при сборке приложения.
func (s *Service) SetPaymentHook(hook PaymentHook) {
	s.paymentHook = hook
}

// GetStatus возвращает подписку пользователя.
func (s *Service) GetStatus(ctx context.Context, userID int64) (*Subscription, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Extend продлевает подписку на days дней.
func (s *Service) Extend(ctx context.Context, userID int64, days int) error {
	if days <= 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.Extend(ctx, userID, days)
}

// ExtendTx продлевает подписку внутри переданной транзакции
// (призовой модуль конкурсов).
func (s *Service) ExtendTx(ctx context.Context, tx pgx.Tx, userID int64, days int) error {
	if days <= 0 {
		return common.ErrInvalidAmount
	}
	return s.repo.ExtendTx(ctx, tx, userID, days)
}

// ConfirmPayment подтверждает оплату подписки: продлевает срок, пишет
// транзакцию в историю и дёргает реферальный хук.
// Платёжный шлюз вне этого модуля — сюда приходит уже подтверждённый платёж.
func (s *Service) ConfirmPayment(ctx context.Context, userID int64, amountKopeks int64, days int) error {
	if days <= 0 || amountKopeks <= 0 {
		return common.ErrInvalidAmount
	}

	if err := s.repo.Extend(ctx, userID, days); err != nil {
		return err
	}

	desc := fmt.Sprintf("Оплата подписки на %d %s", days, common.PluralizeDays(int64(days)))
	if err := s.economy.Credit(ctx, userID, amountKopeks, economy.TxPayment, desc); err != nil {
		// Подписка уже продлена — историю досчитаем вручную, оплату не теряем
		log.WithError(err).WithField("user_id", userID).Error("Ошибка записи платежа в историю")
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"kopeks":  amountKopeks,
		"days":    days,
	}).Info("Оплата подтверждена")

	// Реферальный хук: fire-and-forget
	if s.paymentHook != nil {
		s.paymentHook(ctx, userID, amountKopeks)
	}
	return nil
}

// FormatStatus возвращает текст статуса подписки для чата.
func (s *Service) FormatStatus(ctx context.Context, userID int64) (string, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, common.ErrSubscriptionNotFound) {
		return "🔒 У тебя пока нет подписки. Выиграй дни в конкурсе или оплати!", nil
	}
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if !sub.Active(now) {
		return fmt.Sprintf("⌛ Подписка истекла %s", common.FormatDateTime(sub.ExpiresAt)), nil
	}
	left := int64(sub.ExpiresAt.Sub(now).Hours() / 24)
	return fmt.Sprintf("✅ Подписка активна до %s (осталось %d %s)",
		common.FormatDateTime(sub.ExpiresAt), left, common.PluralizeDays(left)), nil
}
