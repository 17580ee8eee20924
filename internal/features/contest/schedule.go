// Package contest — schedule.go открывает раунды по расписанию шаблонов.
// Планировщик не хранит "время следующего запуска": каждый тик заново
// выводит окна из настенных часов и закоммиченного состояния БД, поэтому
// простой процесса не ломает ротацию — следующий тик всё досчитает.
package contest

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/games"
)

// RotateRounds — один тик ротации: для каждого включённого шаблона
// проверяет, попадает ли "сейчас" в окно одного из слотов расписания,
// и открывает раунд, если активного ещё нет. Возвращает открытые
// раунды, чтобы вызывающий опубликовал их в чат.
// Ошибки отдельных шаблонов изолируются: один кривой шаблон не
// останавливает ротацию остальных.
func (s *Service) RotateRounds(ctx context.Context) ([]*Round, error) {
	templates, err := s.store.ListEnabledTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шаблонов: %w", err)
	}

	now := s.now()
	var opened []*Round
	for _, tmpl := range templates {
		round, err := s.rotateTemplate(ctx, now, tmpl)
		if err != nil {
			log.WithError(err).WithField("slug", tmpl.Slug).Error("Ошибка ротации шаблона")
			continue
		}
		if round != nil {
			log.WithFields(log.Fields{
				"slug":      tmpl.Slug,
				"round_id":  round.ID,
				"starts_at": round.StartsAt,
				"ends_at":   round.EndsAt,
			}).Info("Открыт новый раунд")
			opened = append(opened, round)
		}
	}
	return opened, nil
}

// rotateTemplate обрабатывает один шаблон. Возвращает созданный раунд или nil.
func (s *Service) rotateTemplate(ctx context.Context, now time.Time, tmpl *Template) (*Round, error) {
	slots := common.ParseScheduleTimes(tmpl.ScheduleTimes)
	if len(slots) == 0 {
		// Кривое расписание — ошибка конфигурации, не кода
		return nil, nil
	}
	if tmpl.TimesPerDay > 0 && len(slots) > tmpl.TimesPerDay {
		slots = slots[:tmpl.TimesPerDay]
	}

	tz := tmpl.Timezone
	if tz == "" {
		tz = s.defaultTZ
	}
	loc := common.LoadLocation(tz)

	cooldown := time.Duration(tmpl.CooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = time.Hour
	}

	for _, slot := range slots {
		// Последнее прошедшее наступление слота: starts_at всегда <= now
		startsAt := common.LastSlotOccurrence(now, slot, loc)
		endsAt := startsAt.Add(cooldown)

		// Интересен только слот, чьё окно идёт прямо сейчас
		if now.After(endsAt) {
			continue
		}

		active, err := s.store.GetActiveRound(ctx, tmpl.ID)
		switch {
		case err == nil:
			if !active.Expired(now) {
				// Раунд уже идёт — дубликаты не создаём
				return nil, nil
			}
			// Окно старого раунда закрылось по настенным часам — закрываем
			// статус и открываем новый
			if err := s.store.FinishRound(ctx, active.ID); err != nil {
				return nil, err
			}
		case errors.Is(err, common.ErrNoActiveRound):
			// Активного нет — открываем
		default:
			return nil, err
		}

		return s.openRound(ctx, tmpl, startsAt, endsAt)
	}
	return nil, nil
}

// openRound создаёт раунд со свежим секретом и снапшотом правил шаблона.
func (s *Service) openRound(ctx context.Context, tmpl *Template, startsAt, endsAt time.Time) (*Round, error) {
	strategy, err := games.Resolve(tmpl.Game)
	if err != nil {
		return nil, fmt.Errorf("шаблон %s: %w", tmpl.Slug, err)
	}

	payload, err := strategy.BuildPayload(tmpl.Payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации payload: %w", err)
	}

	round := &Round{
		TemplateID: tmpl.ID,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
		Payload:    payload,
		// Снапшот правил: поздние правки шаблона не трогают идущий раунд
		MaxWinners:      tmpl.MaxWinners,
		AttemptsPerUser: tmpl.AttemptsPerUser,
	}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, err
	}
	return round, nil
}

// OpenRoundNow открывает раунд шаблона немедленно (операторская команда).
// Действующий активный раунд — ошибка; истёкший по часам — закрывается.
func (s *Service) OpenRoundNow(ctx context.Context, slug string) (*Round, error) {
	tmpl, err := s.store.GetTemplateBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active, err := s.store.GetActiveRound(ctx, tmpl.ID)
	switch {
	case err == nil:
		if !active.Expired(now) {
			return nil, fmt.Errorf("у шаблона %s уже есть активный раунд #%d", slug, active.ID)
		}
		if err := s.store.FinishRound(ctx, active.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, common.ErrNoActiveRound):
	default:
		return nil, err
	}

	cooldown := time.Duration(tmpl.CooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return s.openRound(ctx, tmpl, now, now.Add(cooldown))
}
