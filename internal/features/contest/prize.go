// Package contest — prize.go применяет приз к победителю.
// Начисление идёт в той же транзакции, что и запись победной попытки:
// несостоявшийся приз не оставит попытку с is_winner = true.
package contest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/economy"
	"nebulavpn.ru/telegram-bot/internal/features/subscription"
)

// Awarder применяет выигрыш и описывает приз для сообщения победителю.
type Awarder interface {
	Award(ctx context.Context, tx pgx.Tx, userID int64, tmpl *Template) error
	Describe(tmpl *Template) string
}

// PrizeAwarder — боевая реализация поверх подписок и баланса.
type PrizeAwarder struct {
	subscriptions *subscription.Service
	economy       *economy.Service
}

// NewPrizeAwarder создаёт наградителя.
func NewPrizeAwarder(subscriptions *subscription.Service, economyService *economy.Service) *PrizeAwarder {
	return &PrizeAwarder{subscriptions: subscriptions, economy: economyService}
}

// Award применяет приз по prize_type шаблона.
// days — продлевает подписку; balance — начисляет копейки; custom — только текст.
func (a *PrizeAwarder) Award(ctx context.Context, tx pgx.Tx, userID int64, tmpl *Template) error {
	switch tmpl.PrizeType {
	case PrizeDays:
		days, err := strconv.Atoi(tmpl.PrizeValue)
		if err != nil || days <= 0 {
			return fmt.Errorf("некорректный prize_value %q для prize_type=days", tmpl.PrizeValue)
		}
		return a.subscriptions.ExtendTx(ctx, tx, userID, days)

	case PrizeBalance:
		kopeks, err := strconv.ParseInt(tmpl.PrizeValue, 10, 64)
		if err != nil || kopeks <= 0 {
			return fmt.Errorf("некорректный prize_value %q для prize_type=balance", tmpl.PrizeValue)
		}
		desc := fmt.Sprintf("Приз конкурса «%s»", tmpl.Name)
		return a.economy.CreditTx(ctx, tx, userID, kopeks, economy.TxContestPrize, desc)

	case PrizeCustom:
		// Состояние не мутируется, приз выдаётся вручную по тексту
		return nil

	default:
		return fmt.Errorf("неизвестный prize_type %q", tmpl.PrizeType)
	}
}

// Describe возвращает человекочитаемое описание приза.
func (a *PrizeAwarder) Describe(tmpl *Template) string {
	switch tmpl.PrizeType {
	case PrizeDays:
		days, err := strconv.ParseInt(tmpl.PrizeValue, 10, 64)
		if err != nil {
			return tmpl.PrizeValue
		}
		return fmt.Sprintf("+%d %s подписки", days, common.PluralizeDays(days))
	case PrizeBalance:
		kopeks, err := strconv.ParseInt(tmpl.PrizeValue, 10, 64)
		if err != nil {
			return tmpl.PrizeValue
		}
		return fmt.Sprintf("+%s на баланс", common.FormatKopeks(kopeks))
	default:
		return tmpl.PrizeValue
	}
}
