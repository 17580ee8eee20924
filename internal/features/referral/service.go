// Package referral — service.go содержит запись реферальных событий
// и логику ежедневных/финальных сводок с вотермарками.
package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/members"
)

// Store — операции хранилища, нужные сервису. Продакшн-реализация — Repository.
type Store interface {
	CreateContest(ctx context.Context, c *Contest) error
	SetContestActive(ctx context.Context, contestID int64, active bool) error
	ListActiveContests(ctx context.Context) ([]*Contest, error)
	ListEligibleContests(ctx context.Context, ct ContestType, now time.Time) ([]*Contest, error)
	RecordEvent(ctx context.Context, e *Event) (bool, error)
	Leaderboard(ctx context.Context, contestID int64, limit int) ([]*LeaderboardRow, error)
	ContestTotals(ctx context.Context, contestID int64) (*Totals, error)
	AdvanceDailyWatermark(ctx context.Context, contestID int64, day, at time.Time) error
	MarkFinalSent(ctx context.Context, contestID int64) error
}

// memberDirectory — минимум, который нужен от пакета members:
// разрешить реферера и показать имя в таблице лидеров.
type memberDirectory interface {
	ReferrerOf(ctx context.Context, userID int64) (*int64, error)
	GetByUserID(ctx context.Context, userID int64) (*members.Member, error)
}

// SendFunc отправляет текст в чат или канал. Доставкой, ретраями
// и разметкой занимается слой бота.
type SendFunc func(chatID int64, text string)

// Service записывает реферальные события и рассылает сводки.
type Service struct {
	store   Store
	members memberDirectory
	send    SendFunc

	adminChatID     int64
	channelID       int64 // публичный канал конкурса, 0 — не отправлять
	leaderboardSize int
	defaultTZ       string

	now func() time.Time // подменяется в тестах
}

// NewService создаёт сервис реферальных конкурсов.
func NewService(store Store, members memberDirectory, send SendFunc, adminChatID, channelID int64, leaderboardSize int, defaultTZ string) *Service {
	if leaderboardSize <= 0 {
		leaderboardSize = 10
	}
	return &Service{
		store:           store,
		members:         members,
		send:            send,
		adminChatID:     adminChatID,
		channelID:       channelID,
		leaderboardSize: leaderboardSize,
		defaultTZ:       defaultTZ,
		now:             time.Now,
	}
}

// OnSubscriptionPayment — хук из кода оплаты подписки.
// Если плательщик пришёл по реферальной ссылке, событие засчитывается
// во все идущие конкурсы типа referral_paid. Ошибки только логируются:
// оплата не должна падать из-за конкурсной механики.
func (s *Service) OnSubscriptionPayment(ctx context.Context, userID, amountKopeks int64) {
	referrer, err := s.members.ReferrerOf(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось определить реферера плательщика")
		return
	}
	if referrer == nil {
		return
	}
	s.recordForContests(ctx, ContestPaid, EventPaid, *referrer, userID, amountKopeks)
}

// OnReferralRegistration — хук из кода регистрации по реферальной ссылке.
func (s *Service) OnReferralRegistration(ctx context.Context, referrerID, newUserID int64) {
	s.recordForContests(ctx, ContestRegistered, EventRegistered, referrerID, newUserID, 0)
}

func (s *Service) recordForContests(ctx context.Context, ct ContestType, et EventType, referrerID, referralID, amountKopeks int64) {
	now := s.now().UTC()
	contests, err := s.store.ListEligibleContests(ctx, ct, now)
	if err != nil {
		log.WithError(err).Error("Ошибка выборки реферальных конкурсов")
		return
	}
	for _, c := range contests {
		created, err := s.store.RecordEvent(ctx, &Event{
			ContestID:    c.ID,
			ReferrerID:   referrerID,
			ReferralID:   referralID,
			AmountKopeks: amountKopeks,
			EventType:    et,
			OccurredAt:   now,
		})
		if err != nil {
			log.WithError(err).WithField("contest_id", c.ID).Error("Ошибка записи реферального события")
			continue
		}
		if created {
			log.WithFields(log.Fields{
				"contest_id":  c.ID,
				"referrer_id": referrerID,
				"referral_id": referralID,
				"type":        et,
			}).Info("Реферальное событие засчитано")
		}
	}
}

// SendSummaries — тик планировщика сводок. Для каждого активного конкурса
// проверяет слоты ежедневной сводки и условие финальной. Сбой одного
// конкурса не мешает остальным.
func (s *Service) SendSummaries(ctx context.Context) {
	now := s.now().UTC()
	contests, err := s.store.ListActiveContests(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка выборки активных конкурсов")
		return
	}
	for _, c := range contests {
		if err := s.tickContest(ctx, now, c); err != nil {
			log.WithError(err).WithField("contest_id", c.ID).Error("Ошибка обработки конкурса")
		}
	}
}

// tickContest обрабатывает один конкурс на одном тике.
//
// Ежедневная сводка: для каждого локального слота сегодняшнего дня —
// если слот уже наступил, а вотермарка до него не доходила, отправляем
// и двигаем вотермарку на инстант слота. Финальная: один раз, когда
// конкурс закончился по времени и прошёл последний слот дня окончания.
func (s *Service) tickContest(ctx context.Context, now time.Time, c *Contest) error {
	loc := common.LoadLocation(s.timezoneOf(c))
	slots := common.ParseScheduleTimes(c.DailySummaryTimes)

	if !now.After(c.EndAt) {
		today := common.LocalDate(now, loc)
		for _, slot := range slots {
			slotAt := common.SlotOnDate(today, slot, loc)
			if now.Before(slotAt) || slotAt.Before(c.StartAt) {
				continue
			}
			if c.LastDailySummaryAt != nil && !c.LastDailySummaryAt.Before(slotAt) {
				continue
			}
			if err := s.sendSummary(ctx, c, false); err != nil {
				return err
			}
			if err := s.store.AdvanceDailyWatermark(ctx, c.ID, today, slotAt); err != nil {
				return err
			}
			c.LastDailySummaryAt = &slotAt
			c.LastDailySummaryDate = &today
		}
		return nil
	}

	if c.FinalSummarySent {
		return nil
	}
	if len(slots) > 0 {
		endDay := common.LocalDate(c.EndAt, loc)
		lastSlotAt := common.SlotOnDate(endDay, slots[len(slots)-1], loc)
		if now.Before(lastSlotAt) {
			return nil
		}
	}
	if err := s.sendSummary(ctx, c, true); err != nil {
		return err
	}
	if err := s.store.MarkFinalSent(ctx, c.ID); err != nil {
		return err
	}
	log.WithField("contest_id", c.ID).Info("Финальная сводка отправлена, конкурс закрыт")
	return nil
}

func (s *Service) timezoneOf(c *Contest) string {
	if c.Timezone != "" {
		return c.Timezone
	}
	return s.defaultTZ
}

// sendSummary собирает текст сводки и рассылает его в админ-чат
// и публичный канал.
func (s *Service) sendSummary(ctx context.Context, c *Contest, final bool) error {
	rows, err := s.store.Leaderboard(ctx, c.ID, s.leaderboardSize)
	if err != nil {
		return fmt.Errorf("ошибка чтения таблицы лидеров: %w", err)
	}
	totals, err := s.store.ContestTotals(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("ошибка чтения агрегатов: %w", err)
	}

	text := s.formatSummary(ctx, c, rows, totals, final)
	if s.adminChatID != 0 {
		s.send(s.adminChatID, text)
	}
	if s.channelID != 0 {
		s.send(s.channelID, text)
	}
	return nil
}

func (s *Service) formatSummary(ctx context.Context, c *Contest, rows []*LeaderboardRow, totals *Totals, final bool) string {
	var b strings.Builder
	if final {
		fmt.Fprintf(&b, "🏁 Итоги конкурса «%s»\n\n", c.Title)
	} else {
		fmt.Fprintf(&b, "📊 Конкурс «%s» — сводка за день\n\n", c.Title)
	}

	if len(rows) == 0 {
		b.WriteString("Пока ни одного засчитанного реферала 😴\n")
	} else {
		medals := []string{"🥇", "🥈", "🥉"}
		for i, row := range rows {
			marker := fmt.Sprintf("%d.", i+1)
			if i < len(medals) {
				marker = medals[i]
			}
			fmt.Fprintf(&b, "%s %s — %d %s", marker, s.referrerName(ctx, row.ReferrerID),
				row.Events, common.PluralizeReferrals(int64(row.Events)))
			if c.ContestType == ContestPaid && row.AmountKopeks > 0 {
				fmt.Fprintf(&b, " (%s)", common.FormatKopeks(row.AmountKopeks))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nВсего: %d %s от %d участников",
		totals.Events, common.PluralizeReferrals(int64(totals.Events)), totals.Referrers)
	if c.ContestType == ContestPaid && totals.AmountKopeks > 0 {
		fmt.Fprintf(&b, " на %s", common.FormatKopeks(totals.AmountKopeks))
	}
	if !final {
		fmt.Fprintf(&b, "\nКонкурс идёт до %s", common.FormatDate(c.EndAt))
	}
	return b.String()
}

func (s *Service) referrerName(ctx context.Context, userID int64) string {
	m, err := s.members.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("id:%d", userID)
	}
	return m.DisplayName()
}

// CreateContest создаёт конкурс от имени оператора.
func (s *Service) CreateContest(ctx context.Context, c *Contest) error {
	if c.ContestType != ContestPaid && c.ContestType != ContestRegistered {
		return fmt.Errorf("неизвестный тип конкурса: %s", c.ContestType)
	}
	if !c.EndAt.After(c.StartAt) {
		return fmt.Errorf("дата окончания должна быть позже даты начала")
	}
	if c.Timezone == "" {
		c.Timezone = s.defaultTZ
	}
	if c.DailySummaryTimes == "" {
		c.DailySummaryTimes = "12:00"
	}
	return s.store.CreateContest(ctx, c)
}

// SetContestActive включает или выключает конкурс вручную.
func (s *Service) SetContestActive(ctx context.Context, contestID int64, active bool) error {
	return s.store.SetContestActive(ctx, contestID, active)
}

// ActiveContests возвращает активные конкурсы для админских команд.
func (s *Service) ActiveContests(ctx context.Context) ([]*Contest, error) {
	return s.store.ListActiveContests(ctx)
}
