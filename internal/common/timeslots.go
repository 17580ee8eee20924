// Package common — timeslots.go содержит граничные функции работы со временем.
// Все инстанты в БД хранятся как наивный UTC; слоты расписаний ("HH:MM")
// интерпретируются в именованном часовом поясе шаблона/конкурса.
// Конверсия "локальный слот → UTC" происходит ТОЛЬКО здесь, чтобы
// по коду не расползались ручные сдвиги часовых поясов.
package common

import (
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// TimeOfDay — локальное время суток из расписания ("10:00", "18:30").
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String возвращает слот обратно в формате "HH:MM".
func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("15:04")
}

// ParseScheduleTimes разбирает строку расписания "10:00,18:00" в список слотов.
// Некорректные элементы молча отбрасываются — кривой слот в шаблоне
// не должен ломать планировщик (это ошибка конфигурации, не кода).
func ParseScheduleTimes(s string) []TimeOfDay {
	var slots []TimeOfDay
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slot, ok := parseTimeOfDay(part)
		if !ok {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

func parseTimeOfDay(s string) (TimeOfDay, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: hour, Minute: minute}, true
}

// LoadLocation загружает именованный часовой пояс с фолбэком на UTC.
// Кривое имя пояса в шаблоне — ошибка конфигурации, логируем и работаем в UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// LastSlotOccurrence возвращает ближайшее ПРОШЕДШЕЕ (или текущее) наступление
// локального слота: слот сегодня в поясе loc, а если он ещё в будущем —
// вчерашнее наступление. Результат — наивный UTC для хранения в БД.
func LastSlotOccurrence(now time.Time, slot TimeOfDay, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), slot.Hour, slot.Minute, 0, 0, loc)
	if candidate.After(local) {
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate.UTC()
}

// SlotOnDate возвращает UTC-инстант слота в конкретный локальный день.
// Календарные поля date берутся как есть (часы игнорируются) — конвертировать
// date через In(loc) нельзя: для поясов западнее UTC это сдвинуло бы
// полночь на предыдущий локальный день.
func SlotOnDate(date time.Time, slot TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), slot.Hour, slot.Minute, 0, 0, loc).UTC()
}

// LocalDate обнуляет время, оставляя локальную дату в поясе loc.
// Используется для вотермарок "последняя сводка за день".
func LocalDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
