// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм и дат.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Pluralize возвращает правильную форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,4] И n%100 НЕ в [12,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func Pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch {
	case n%10 == 1 && n%100 != 11:
		return one
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return few
	default:
		return many
	}
}

// PluralizeDays — "день/дня/дней".
func PluralizeDays(n int64) string {
	return Pluralize(n, "день", "дня", "дней")
}

// PluralizeKopeks — "копейка/копейки/копеек".
func PluralizeKopeks(n int64) string {
	return Pluralize(n, "копейка", "копейки", "копеек")
}

// PluralizeWinners — "победитель/победителя/победителей".
func PluralizeWinners(n int64) string {
	return Pluralize(n, "победитель", "победителя", "победителей")
}

// PluralizeReferrals — "реферал/реферала/рефералов".
func PluralizeReferrals(n int64) string {
	return Pluralize(n, "реферал", "реферала", "рефералов")
}

// FormatAmount форматирует число с разделителями тысяч: 1234567 → "1 234 567".
func FormatAmount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return sign + strings.Join(groups, " ")
}

// FormatKopeks — "1 234 копейки" для сообщений о призах и сводках.
func FormatKopeks(n int64) string {
	return fmt.Sprintf("%s %s", FormatAmount(n), PluralizeKopeks(n))
}

// FormatDateTime форматирует время для сообщений пользователю.
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatDate форматирует дату для сводок.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}
