package contest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scheduledTemplate — шаблон с расписанием 10:00 и 18:00 по Москве
// и двухчасовым окном раунда.
func scheduledTemplate(t *testing.T, store *fakeStore) *Template {
	t.Helper()
	tmpl := &Template{
		Slug:            "daily-quest",
		Name:            "Ежедневный квест",
		Game:            "quest",
		PrizeType:       PrizeDays,
		PrizeValue:      "3",
		MaxWinners:      2,
		AttemptsPerUser: 1,
		TimesPerDay:     2,
		ScheduleTimes:   "10:00,18:00",
		CooldownHours:   2,
		Timezone:        "Europe/Moscow",
		IsEnabled:       true,
	}
	require.NoError(t, store.CreateTemplate(context.Background(), tmpl))
	return tmpl
}

// rotationService — сервис с подменяемыми часами.
func rotationService(store *fakeStore, at time.Time) (*Service, *time.Time) {
	now := at
	svc := NewService(store, &fakeAwarder{}, "Europe/Moscow")
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestRotateOpensRoundInsideSlotWindow(t *testing.T) {
	store := newFakeStore()
	// 10:30 по Москве — внутри окна 10:00–12:00
	svc, _ := rotationService(store, time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC))
	tmpl := scheduledTemplate(t, store)

	opened, err := svc.RotateRounds(context.Background())
	require.NoError(t, err)
	require.Len(t, opened, 1)

	round := opened[0]
	assert.Equal(t, tmpl.ID, round.TemplateID)
	assert.Equal(t, RoundActive, round.Status)
	// границы слота хранятся наивным UTC: 10:00 MSK == 07:00 UTC
	assert.Equal(t, time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC), round.StartsAt.UTC())
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), round.EndsAt.UTC())
	// правила снапшотятся из шаблона
	assert.Equal(t, 2, round.MaxWinners)
	assert.NotEmpty(t, round.Payload)
}

func TestRotateSecondTickOpensNothing(t *testing.T) {
	store := newFakeStore()
	svc, now := rotationService(store, time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC))
	scheduledTemplate(t, store)
	ctx := context.Background()

	opened, err := svc.RotateRounds(ctx)
	require.NoError(t, err)
	require.Len(t, opened, 1)

	// повторный тик того же окна — дубликата нет
	*now = time.Date(2025, 6, 10, 7, 45, 0, 0, time.UTC)
	opened, err = svc.RotateRounds(ctx)
	require.NoError(t, err)
	assert.Empty(t, opened)

	rounds, err := store.ListActiveRounds(ctx)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}

func TestRotateOutsideAnyWindow(t *testing.T) {
	store := newFakeStore()
	// 15:30 по Москве — окно 10:00–12:00 закрыто, 18:00 ещё не наступило
	svc, _ := rotationService(store, time.Date(2025, 6, 10, 12, 30, 0, 0, time.UTC))
	scheduledTemplate(t, store)

	opened, err := svc.RotateRounds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestRotateFinishesExpiredRoundBeforeOpening(t *testing.T) {
	store := newFakeStore()
	svc, now := rotationService(store, time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC))
	scheduledTemplate(t, store)
	ctx := context.Background()

	opened, err := svc.RotateRounds(ctx)
	require.NoError(t, err)
	require.Len(t, opened, 1)
	morning := opened[0]

	// 18:30 по Москве: утренний раунд истёк по часам, но статус в БД отстал
	*now = time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)
	opened, err = svc.RotateRounds(ctx)
	require.NoError(t, err)
	require.Len(t, opened, 1)

	evening := opened[0]
	assert.Equal(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC), evening.StartsAt.UTC())
	assert.Equal(t, RoundFinished, morning.Status)
	assert.Equal(t, RoundActive, evening.Status)
}

func TestRotateSkipsDisabledTemplates(t *testing.T) {
	store := newFakeStore()
	svc, _ := rotationService(store, time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC))
	tmpl := scheduledTemplate(t, store)
	require.NoError(t, store.SetTemplateEnabled(context.Background(), tmpl.Slug, false))

	opened, err := svc.RotateRounds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestRotateHonorsTimesPerDay(t *testing.T) {
	store := newFakeStore()
	// 18:30 по Москве — второй слот, но times_per_day оставляет только первый
	svc, _ := rotationService(store, time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC))
	tmpl := scheduledTemplate(t, store)
	tmpl.TimesPerDay = 1

	opened, err := svc.RotateRounds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestRotateIgnoresBrokenSchedule(t *testing.T) {
	store := newFakeStore()
	svc, _ := rotationService(store, time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC))
	tmpl := scheduledTemplate(t, store)
	tmpl.ScheduleTimes = "не время"

	opened, err := svc.RotateRounds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestOpenRoundNow(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2025, 6, 10, 12, 30, 0, 0, time.UTC)
	svc, _ := rotationService(store, at)
	tmpl := scheduledTemplate(t, store)
	ctx := context.Background()

	round, err := svc.OpenRoundNow(ctx, tmpl.Slug)
	require.NoError(t, err)
	assert.Equal(t, at, round.StartsAt)
	assert.Equal(t, at.Add(2*time.Hour), round.EndsAt)

	// пока раунд идёт, второй не открыть
	_, err = svc.OpenRoundNow(ctx, tmpl.Slug)
	assert.Error(t, err)
}

func TestOpenRoundNowReplacesExpiredRound(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2025, 6, 10, 12, 30, 0, 0, time.UTC)
	svc, now := rotationService(store, at)
	tmpl := scheduledTemplate(t, store)
	ctx := context.Background()

	stale, err := svc.OpenRoundNow(ctx, tmpl.Slug)
	require.NoError(t, err)

	*now = at.Add(3 * time.Hour)
	fresh, err := svc.OpenRoundNow(ctx, tmpl.Slug)
	require.NoError(t, err)

	assert.Equal(t, RoundFinished, stale.Status)
	assert.Equal(t, RoundActive, fresh.Status)
	assert.NotEqual(t, stale.ID, fresh.ID)
}
