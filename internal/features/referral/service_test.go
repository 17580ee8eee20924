package referral

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/members"
)

// fakeReferralStore — хранилище в памяти с дедупликацией событий
// по (contest_id, referral_id), как в боевом уникальном индексе.
type fakeReferralStore struct {
	mu       sync.Mutex
	contests map[int64]*Contest
	events   map[string]*Event
	nextID   int64

	watermarkCalls int
	finalCalls     int
}

func newFakeReferralStore() *fakeReferralStore {
	return &fakeReferralStore{
		contests: make(map[int64]*Contest),
		events:   make(map[string]*Event),
	}
}

func (f *fakeReferralStore) CreateContest(_ context.Context, c *Contest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.IsActive = true
	f.contests[c.ID] = c
	return nil
}

func (f *fakeReferralStore) SetContestActive(_ context.Context, contestID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[contestID]
	if !ok {
		return common.ErrContestNotFound
	}
	c.IsActive = active
	return nil
}

func (f *fakeReferralStore) ListActiveContests(_ context.Context) ([]*Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Contest
	for _, c := range f.contests {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeReferralStore) ListEligibleContests(_ context.Context, ct ContestType, now time.Time) ([]*Contest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Contest
	for _, c := range f.contests {
		if c.IsActive && c.ContestType == ct && !now.Before(c.StartAt) && !now.After(c.EndAt) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeReferralStore) RecordEvent(_ context.Context, e *Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%d", e.ContestID, e.ReferralID)
	if _, ok := f.events[key]; ok {
		return false, nil
	}
	f.nextID++
	e.ID = f.nextID
	f.events[key] = e
	return true, nil
}

func (f *fakeReferralStore) Leaderboard(_ context.Context, contestID int64, limit int) ([]*LeaderboardRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byReferrer := make(map[int64]*LeaderboardRow)
	for _, e := range f.events {
		if e.ContestID != contestID {
			continue
		}
		row, ok := byReferrer[e.ReferrerID]
		if !ok {
			row = &LeaderboardRow{ReferrerID: e.ReferrerID}
			byReferrer[e.ReferrerID] = row
		}
		row.Events++
		row.AmountKopeks += e.AmountKopeks
	}
	var out []*LeaderboardRow
	for _, row := range byReferrer {
		out = append(out, row)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReferralStore) ContestTotals(_ context.Context, contestID int64) (*Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := &Totals{}
	referrers := make(map[int64]bool)
	for _, e := range f.events {
		if e.ContestID != contestID {
			continue
		}
		totals.Events++
		totals.AmountKopeks += e.AmountKopeks
		referrers[e.ReferrerID] = true
	}
	totals.Referrers = len(referrers)
	return totals, nil
}

func (f *fakeReferralStore) AdvanceDailyWatermark(_ context.Context, contestID int64, day, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[contestID]
	if !ok {
		return common.ErrContestNotFound
	}
	c.LastDailySummaryDate = &day
	c.LastDailySummaryAt = &at
	f.watermarkCalls++
	return nil
}

func (f *fakeReferralStore) MarkFinalSent(_ context.Context, contestID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contests[contestID]
	if !ok {
		return common.ErrContestNotFound
	}
	c.FinalSummarySent = true
	c.IsActive = false
	f.finalCalls++
	return nil
}

// fakeDirectory — карта user_id → referred_by.
type fakeDirectory struct {
	referrers map[int64]int64
}

func (d *fakeDirectory) ReferrerOf(_ context.Context, userID int64) (*int64, error) {
	id, ok := d.referrers[userID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (d *fakeDirectory) GetByUserID(_ context.Context, userID int64) (*members.Member, error) {
	return &members.Member{UserID: userID, Username: fmt.Sprintf("user%d", userID)}, nil
}

// sentMessage — перехваченная отправка.
type sentMessage struct {
	chatID int64
	text   string
}

type sendRecorder struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *sendRecorder) send(chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
}

func (r *sendRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

const (
	testAdminChat = int64(-100500)
	testChannel   = int64(-100600)
)

func newTestSetup(t *testing.T, at time.Time) (*Service, *fakeReferralStore, *fakeDirectory, *sendRecorder, *time.Time) {
	t.Helper()
	store := newFakeReferralStore()
	dir := &fakeDirectory{referrers: make(map[int64]int64)}
	rec := &sendRecorder{}
	svc := NewService(store, dir, rec.send, testAdminChat, testChannel, 10, "Europe/Moscow")
	now := at
	svc.now = func() time.Time { return now }
	return svc, store, dir, rec, &now
}

// paidContest — конкурс по оплатам с 1 по 20 июня, сводка в 12:00 МСК.
func paidContest(t *testing.T, svc *Service) *Contest {
	t.Helper()
	c := &Contest{
		Title:       "Лето рефералов",
		ContestType: ContestPaid,
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		// 18:00 МСК 20 июня: слот 12:00 дня окончания уже в прошлом
		EndAt: time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.CreateContest(context.Background(), c))
	return c
}

func TestPaymentEventRecordedOnce(t *testing.T) {
	svc, store, dir, _, _ := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := paidContest(t, svc)
	dir.referrers[200] = 100
	ctx := context.Background()

	svc.OnSubscriptionPayment(ctx, 200, 50000)
	// повторная оплата того же реферала не задваивает событие
	svc.OnSubscriptionPayment(ctx, 200, 30000)

	totals, err := store.ContestTotals(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Events)
	assert.Equal(t, 1, totals.Referrers)
	assert.Equal(t, int64(50000), totals.AmountKopeks)
}

func TestPaymentWithoutReferrerIgnored(t *testing.T) {
	svc, store, _, _, _ := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := paidContest(t, svc)
	ctx := context.Background()

	svc.OnSubscriptionPayment(ctx, 999, 50000)

	totals, err := store.ContestTotals(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Events)
}

func TestPaymentOutsideContestWindowIgnored(t *testing.T) {
	svc, store, dir, _, now := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := paidContest(t, svc)
	dir.referrers[200] = 100
	ctx := context.Background()

	*now = c.EndAt.Add(time.Hour)
	svc.OnSubscriptionPayment(ctx, 200, 50000)

	totals, err := store.ContestTotals(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Events)
}

func TestRegistrationEventGoesToRegisteredContests(t *testing.T) {
	svc, store, _, _, _ := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	paid := paidContest(t, svc)
	reg := &Contest{
		Title:       "Приведи друга",
		ContestType: ContestRegistered,
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC),
	}
	ctx := context.Background()
	require.NoError(t, svc.CreateContest(ctx, reg))

	svc.OnReferralRegistration(ctx, 100, 300)

	regTotals, err := store.ContestTotals(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, regTotals.Events)

	paidTotals, err := store.ContestTotals(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, paidTotals.Events)
}

func TestDailySummaryAdvancesWatermark(t *testing.T) {
	// 12:05 по Москве — слот 12:00 наступил, сводки ещё не было
	svc, store, dir, rec, now := newTestSetup(t, time.Date(2025, 6, 10, 9, 5, 0, 0, time.UTC))
	c := paidContest(t, svc)
	dir.referrers[200] = 100
	ctx := context.Background()
	svc.OnSubscriptionPayment(ctx, 200, 50000)

	svc.SendSummaries(ctx)

	// в админ-чат и канал
	assert.Equal(t, 2, rec.count())
	require.NotNil(t, c.LastDailySummaryAt)
	slot := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) // 12:00 MSK
	assert.Equal(t, slot, c.LastDailySummaryAt.UTC())
	assert.Equal(t, 1, store.watermarkCalls)

	// повторный тик в тот же день ничего не шлёт
	*now = time.Date(2025, 6, 10, 9, 10, 0, 0, time.UTC)
	svc.SendSummaries(ctx)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, store.watermarkCalls)

	// назавтра слот наступает снова
	*now = time.Date(2025, 6, 11, 9, 5, 0, 0, time.UTC)
	svc.SendSummaries(ctx)
	assert.Equal(t, 4, rec.count())
	assert.Equal(t, 2, store.watermarkCalls)
}

func TestDailySummaryWestOfUTC(t *testing.T) {
	// 00:05 по Нью-Йорку (04:05 UTC) — локальный день только начался,
	// слот 12:00 ещё впереди, сводки быть не должно
	svc, store, _, rec, now := newTestSetup(t, time.Date(2025, 6, 10, 4, 5, 0, 0, time.UTC))
	c := &Contest{
		Title:       "Закат на западе",
		ContestType: ContestPaid,
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 20, 23, 0, 0, 0, time.UTC),
		Timezone:    "America/New_York",
	}
	ctx := context.Background()
	require.NoError(t, svc.CreateContest(ctx, c))

	svc.SendSummaries(ctx)
	assert.Zero(t, rec.count())
	assert.Zero(t, store.watermarkCalls)

	// 12:05 EDT = 16:05 UTC — слот наступил
	*now = time.Date(2025, 6, 10, 16, 5, 0, 0, time.UTC)
	svc.SendSummaries(ctx)
	assert.Equal(t, 2, rec.count())
	require.NotNil(t, c.LastDailySummaryAt)
	assert.Equal(t, time.Date(2025, 6, 10, 16, 0, 0, 0, time.UTC), c.LastDailySummaryAt.UTC())
}

func TestDailySummaryWaitsForSlot(t *testing.T) {
	// 11:00 по Москве — до слота 12:00 сводки нет
	svc, store, _, rec, _ := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	paidContest(t, svc)

	svc.SendSummaries(context.Background())

	assert.Zero(t, rec.count())
	assert.Zero(t, store.watermarkCalls)
}

func TestFinalSummarySentOnce(t *testing.T) {
	svc, store, _, rec, now := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := paidContest(t, svc)
	ctx := context.Background()

	// конкурс закончился, последний слот дня окончания прошёл
	*now = c.EndAt.Add(time.Hour)
	svc.SendSummaries(ctx)

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, store.finalCalls)
	assert.True(t, c.FinalSummarySent)
	assert.False(t, c.IsActive)

	// закрытый конкурс больше не трогаем
	*now = c.EndAt.Add(2 * time.Hour)
	svc.SendSummaries(ctx)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, store.finalCalls)
}

func TestFinalSummaryWaitsForEndDaySlot(t *testing.T) {
	svc, store, _, rec, now := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := &Contest{
		Title:       "Раннее окончание",
		ContestType: ContestPaid,
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		// 09:00 МСК: конкурс кончается раньше слота сводки 12:00
		EndAt: time.Date(2025, 6, 20, 6, 0, 0, 0, time.UTC),
	}
	ctx := context.Background()
	require.NoError(t, svc.CreateContest(ctx, c))

	// конкурс уже закончился, но слот 12:00 дня окончания ещё впереди
	*now = time.Date(2025, 6, 20, 7, 0, 0, 0, time.UTC)
	svc.SendSummaries(ctx)
	assert.Zero(t, rec.count())
	assert.Zero(t, store.finalCalls)

	// после слота финальная сводка уходит
	*now = time.Date(2025, 6, 20, 9, 30, 0, 0, time.UTC)
	svc.SendSummaries(ctx)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, store.finalCalls)
}

func TestFinalSummaryTextMentionsTitle(t *testing.T) {
	svc, _, dir, rec, now := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	c := paidContest(t, svc)
	dir.referrers[200] = 100
	ctx := context.Background()
	svc.OnSubscriptionPayment(ctx, 200, 50000)

	*now = c.EndAt.Add(time.Hour)
	svc.SendSummaries(ctx)

	require.NotZero(t, rec.count())
	text := rec.sent[0].text
	assert.Contains(t, text, "Итоги конкурса")
	assert.Contains(t, text, c.Title)
	assert.Contains(t, text, "user100")
	assert.Contains(t, text, "🥇")
}

func TestCreateContestValidation(t *testing.T) {
	svc, _, _, _, _ := newTestSetup(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	err := svc.CreateContest(ctx, &Contest{
		Title:       "Кривой тип",
		ContestType: "lottery",
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)

	err = svc.CreateContest(ctx, &Contest{
		Title:       "Конец раньше начала",
		ContestType: ContestPaid,
		StartAt:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)

	ok := &Contest{
		Title:       "Нормальный",
		ContestType: ContestPaid,
		StartAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.CreateContest(ctx, ok))
	// пустые поля заполняются значениями по умолчанию
	assert.Equal(t, "Europe/Moscow", ok.Timezone)
	assert.Equal(t, "12:00", ok.DailySummaryTimes)
}
