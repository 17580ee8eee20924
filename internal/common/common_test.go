package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluralizeDays(t *testing.T) {
	cases := map[int64]string{
		1:   "день",
		2:   "дня",
		4:   "дня",
		5:   "дней",
		11:  "дней",
		12:  "дней",
		14:  "дней",
		21:  "день",
		22:  "дня",
		25:  "дней",
		100: "дней",
		101: "день",
		111: "дней",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeDays(n), "n=%d", n)
	}
}

func TestPluralizeNegative(t *testing.T) {
	assert.Equal(t, "день", PluralizeDays(-1))
	assert.Equal(t, "копейки", PluralizeKopeks(-2))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "999", FormatAmount(999))
	assert.Equal(t, "1 000", FormatAmount(1000))
	assert.Equal(t, "1 234 567", FormatAmount(1234567))
	assert.Equal(t, "-42 000", FormatAmount(-42000))
}

func TestFormatKopeks(t *testing.T) {
	assert.Equal(t, "1 копейка", FormatKopeks(1))
	assert.Equal(t, "50 000 копеек", FormatKopeks(50000))
}

func TestParseScheduleTimes(t *testing.T) {
	slots := ParseScheduleTimes("10:00, 18:30")
	require.Len(t, slots, 2)
	assert.Equal(t, TimeOfDay{Hour: 10}, slots[0])
	assert.Equal(t, TimeOfDay{Hour: 18, Minute: 30}, slots[1])
	assert.Equal(t, "18:30", slots[1].String())
}

func TestParseScheduleTimesDropsBrokenSlots(t *testing.T) {
	// кривые элементы отбрасываются, валидные остаются
	slots := ParseScheduleTimes("25:00, 10:75, abc, , 09:15")
	require.Len(t, slots, 1)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 15}, slots[0])

	assert.Empty(t, ParseScheduleTimes(""))
	assert.Empty(t, ParseScheduleTimes("не расписание"))
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus"))

	msk := LoadLocation("Europe/Moscow")
	require.NotNil(t, msk)
	assert.Equal(t, "Europe/Moscow", msk.String())
}

func TestLastSlotOccurrence(t *testing.T) {
	msk := LoadLocation("Europe/Moscow")
	slot := TimeOfDay{Hour: 10}

	// 10:30 МСК: слот сегодня уже наступил
	now := time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC)
	got := LastSlotOccurrence(now, slot, msk)
	assert.Equal(t, time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC), got)

	// 09:30 МСК: слот ещё в будущем — берём вчерашний
	now = time.Date(2025, 6, 10, 6, 30, 0, 0, time.UTC)
	got = LastSlotOccurrence(now, slot, msk)
	assert.Equal(t, time.Date(2025, 6, 9, 7, 0, 0, 0, time.UTC), got)
}

func TestLastSlotOccurrenceAcrossMidnight(t *testing.T) {
	msk := LoadLocation("Europe/Moscow")
	// 01:00 МСК 10 июня == 22:00 UTC 9 июня; слот 23:00 МСК был вчера
	now := time.Date(2025, 6, 9, 22, 0, 0, 0, time.UTC)
	got := LastSlotOccurrence(now, TimeOfDay{Hour: 23}, msk)
	assert.Equal(t, time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC), got)
}

func TestSlotOnDate(t *testing.T) {
	msk := LoadLocation("Europe/Moscow")
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	got := SlotOnDate(day, TimeOfDay{Hour: 12}, msk)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), got)
}

func TestSlotOnDateWestOfUTC(t *testing.T) {
	// Дата хранится как полночь UTC; для пояса западнее UTC слот обязан
	// остаться на том же календарном дне, а не уехать на предыдущий.
	ny := LoadLocation("America/New_York")
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	got := SlotOnDate(day, TimeOfDay{Hour: 12}, ny)
	// 12:00 EDT (UTC-4) 10 июня = 16:00 UTC 10 июня
	assert.Equal(t, time.Date(2025, 6, 10, 16, 0, 0, 0, time.UTC), got)
}

func TestLocalDate(t *testing.T) {
	msk := LoadLocation("Europe/Moscow")
	// 23:30 UTC 9 июня — в Москве уже 10 июня
	now := time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), LocalDate(now, msk))
	// а в UTC ещё 9-е
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), LocalDate(now, time.UTC))
}
