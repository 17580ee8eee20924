// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежеминутная ротация конкурсных
// раундов и ежеминутная проверка реферальных сводок.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/contest"
	"nebulavpn.ru/telegram-bot/internal/features/referral"
)

// AnnounceFunc публикует свежий раунд в основной чат.
type AnnounceFunc func(ctx context.Context, round *contest.Round)

// Scheduler управляет фоновыми задачами.
// Два независимых цикла — ротация раундов и сводки — не делят
// никаких блокировок: их единственная точка синхронизации — БД.
type Scheduler struct {
	cron            *cron.Cron
	contestService  *contest.Service
	referralService *referral.Service
	announce        AnnounceFunc

	contestsEnabled  bool
	referralsEnabled bool
}

// NewScheduler создаёт планировщик задач в заданном часовом поясе.
func NewScheduler(timezone string, contestService *contest.Service, referralService *referral.Service,
	announce AnnounceFunc, contestsEnabled, referralsEnabled bool) *Scheduler {
	loc := common.LoadLocation(timezone)
	return &Scheduler{
		cron:             cron.New(cron.WithLocation(loc)),
		contestService:   contestService,
		referralService:  referralService,
		announce:         announce,
		contestsEnabled:  contestsEnabled,
		referralsEnabled: referralsEnabled,
	}
}

// Start запускает все фоновые задачи.
// Решения расписаний выводятся из wall-clock и состояния БД на каждом
// тике, поэтому пропущенные тики безвредны: следующий всё наверстает.
func (s *Scheduler) Start(ctx context.Context) {
	if s.contestsEnabled {
		s.cron.AddFunc("@every 1m", func() {
			log.Debug("[CRON] Ротация конкурсных раундов")
			opened, err := s.contestService.RotateRounds(ctx)
			if err != nil {
				log.WithError(err).Error("[CRON] Ошибка ротации раундов")
			}
			for _, round := range opened {
				s.announce(ctx, round)
			}
		})
	}

	if s.referralsEnabled {
		s.cron.AddFunc("@every 1m", func() {
			log.Debug("[CRON] Проверка реферальных сводок")
			s.referralService.SendSummaries(ctx)
		})
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен")
}

// Stop останавливает планировщик, дожидаясь завершения текущего тика.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
