// Package contest — service.go координирует обработку попыток от начала до конца.
// Это движок инвариантов: не больше одной попытки на пользователя,
// не больше max_winners победителей на раунд при любой конкуренции.
package contest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
	"nebulavpn.ru/telegram-bot/internal/features/games"
)

// Store — операции хранилища, нужные движку и планировщику.
// Боевая реализация — *Repository; в тестах подменяется фейком в памяти.
type Store interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id int64) (*Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
	ListEnabledTemplates(ctx context.Context) ([]*Template, error)
	SetTemplateEnabled(ctx context.Context, slug string, enabled bool) error

	CreateRound(ctx context.Context, r *Round) error
	GetRound(ctx context.Context, id int64) (*Round, error)
	GetActiveRound(ctx context.Context, templateID int64) (*Round, error)
	ListActiveRounds(ctx context.Context) ([]*Round, error)
	FinishRound(ctx context.Context, roundID int64) error

	GetAttempt(ctx context.Context, roundID, userID int64) (*Attempt, error)
	CreatePendingAttempt(ctx context.Context, roundID, userID int64) (bool, error)
	GetPendingRoundForUser(ctx context.Context, userID int64) (*Round, error)
	DeleteAttempts(ctx context.Context, roundID int64) (int64, error)
	DecideAttempt(ctx context.Context, d Decision) (*Outcome, error)
}

// Service — движок конкурсов.
type Service struct {
	store     Store
	awarder   Awarder
	defaultTZ string

	// now подменяется в тестах планировщика
	now func() time.Time
}

// NewService создаёт движок конкурсов.
func NewService(store Store, awarder Awarder, defaultTZ string) *Service {
	return &Service{
		store:     store,
		awarder:   awarder,
		defaultTZ: defaultTZ,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// loseMessages — варианты ответа проигравшему. Секрет раунда не раскрывают.
var loseMessages = []string{
	"😔 Не угадал. Попробуй в следующем раунде!",
	"🙃 Мимо! Новый раунд — новый шанс.",
	"🍀 Не повезло. Возвращайся в следующий раз!",
	"💨 Увы, не сегодня. Следующий раунд уже скоро!",
}

func randomLoseMessage() string {
	return loseMessages[rand.Intn(len(loseMessages))]
}

// ProcessButtonAttempt обрабатывает нажатие кнопки в кнопочной игре.
// Попытка пишется всегда — и победная, и проигрышная: этим держится
// правило одной попытки на раунд.
func (s *Service) ProcessButtonAttempt(ctx context.Context, round *Round, userID int64, pick, lang string) *Result {
	if round == nil {
		return &Result{Message: "🤷 Раунд не найден — похоже, кнопка устарела"}
	}
	if !round.Playable(s.now()) {
		return &Result{RoundFinished: true, Message: "⏳ Этот раунд уже завершён"}
	}

	// Мягкая пред-проверка: быстрый отказ без транзакции.
	// Гонку двух запросов одного пользователя всё равно ловит
	// уникальный индекс внутри DecideAttempt.
	existing, err := s.store.GetAttempt(ctx, round.ID, userID)
	if err != nil {
		return s.internalError(err, round.ID, userID)
	}
	if existing != nil {
		return &Result{AlreadyPlayed: true, Message: "✋ Ты уже играл в этом раунде"}
	}

	return s.decide(ctx, round, userID, pick, lang, false)
}

// ProcessTextAttempt обрабатывает текстовый ответ.
// Требует заранее зарезервированной попытки (answer IS NULL) — слот
// занимается при показе задания, чтобы нельзя было отвечать параллельно
// из двух сессий.
func (s *Service) ProcessTextAttempt(ctx context.Context, round *Round, userID int64, text, lang string) *Result {
	if round == nil {
		return &Result{Message: "🤷 Раунд не найден"}
	}
	if !round.Playable(s.now()) {
		return &Result{RoundFinished: true, Message: "⏳ Этот раунд уже завершён"}
	}

	existing, err := s.store.GetAttempt(ctx, round.ID, userID)
	if err != nil {
		return s.internalError(err, round.ID, userID)
	}
	if existing == nil {
		return &Result{Message: "ℹ️ Сначала нажми «Участвовать» под заданием раунда"}
	}
	if !existing.Pending() {
		return &Result{AlreadyPlayed: true, Message: "✋ Ты уже использовал свою попытку в этом раунде"}
	}

	return s.decide(ctx, round, userID, text, lang, true)
}

// decide — общие шаги обеих веток: стратегия, проверка ответа,
// атомарная фиксация и сообщение пользователю.
func (s *Service) decide(ctx context.Context, round *Round, userID int64, answer, lang string, fromPending bool) *Result {
	tmpl, err := s.store.GetTemplate(ctx, round.TemplateID)
	if err != nil {
		return s.internalError(err, round.ID, userID)
	}

	strategy, err := games.Resolve(tmpl.Game)
	if err != nil {
		// Ошибка конфигурации шаблона: логируем, наружу — общий отказ
		log.WithField("game", tmpl.Game).WithField("template_id", tmpl.ID).
			Error("Неизвестный тип игры в шаблоне")
		return &Result{Message: "❌ Конкурс временно недоступен"}
	}

	correct, _, err := strategy.CheckAnswer(answer, round.Payload, lang)
	if err != nil {
		return s.internalError(err, round.ID, userID)
	}

	var award func(ctx context.Context, tx pgx.Tx) error
	if correct {
		award = func(ctx context.Context, tx pgx.Tx) error {
			return s.awarder.Award(ctx, tx, userID, tmpl)
		}
	}

	outcome, err := s.store.DecideAttempt(ctx, Decision{
		RoundID:     round.ID,
		UserID:      userID,
		Answer:      answer,
		Correct:     correct,
		FromPending: fromPending,
		Award:       award,
	})
	if errors.Is(err, common.ErrRoundNotFound) {
		return &Result{Message: "🤷 Раунд не найден"}
	}
	if err != nil {
		return s.internalError(err, round.ID, userID)
	}
	if outcome.AlreadyPlayed {
		return &Result{AlreadyPlayed: true, Message: "✋ Ты уже играл в этом раунде"}
	}

	if outcome.IsWinner {
		log.WithFields(log.Fields{
			"round_id": round.ID,
			"user_id":  userID,
		}).Info("Победитель раунда")
		return &Result{
			Success:  true,
			IsWinner: true,
			Message:  fmt.Sprintf("🎉 Есть! Ты выиграл: %s", s.awarder.Describe(tmpl)),
		}
	}

	// Правильный ответ мог быть понижен до проигрыша исчерпанной квотой —
	// пользователю в обоих случаях один и тот же нейтральный ответ
	return &Result{Success: true, Message: randomLoseMessage()}
}

// CreatePendingAttempt резервирует слот текстовой игры.
// false — слот уже занят (повторное нажатие «Участвовать»).
func (s *Service) CreatePendingAttempt(ctx context.Context, roundID, userID int64) (bool, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		return false, err
	}
	if !round.Playable(s.now()) {
		return false, common.ErrRoundNotFound
	}
	return s.store.CreatePendingAttempt(ctx, roundID, userID)
}

// PendingRoundFor возвращает раунд, в котором пользователь должен ответить
// текстом, или nil.
func (s *Service) PendingRoundFor(ctx context.Context, userID int64) (*Round, error) {
	return s.store.GetPendingRoundForUser(ctx, userID)
}

func (s *Service) internalError(err error, roundID, userID int64) *Result {
	log.WithError(err).WithFields(log.Fields{
		"round_id": roundID,
		"user_id":  userID,
	}).Error("Ошибка обработки попытки")
	return &Result{Message: "❌ Что-то пошло не так, попробуй ещё раз"}
}

// --- Операции для обработчиков и админки ---

// Round возвращает раунд по ID.
func (s *Service) Round(ctx context.Context, id int64) (*Round, error) {
	return s.store.GetRound(ctx, id)
}

// ActiveRounds возвращает все активные раунды.
func (s *Service) ActiveRounds(ctx context.Context) ([]*Round, error) {
	return s.store.ListActiveRounds(ctx)
}

// Template возвращает шаблон по ID.
func (s *Service) Template(ctx context.Context, id int64) (*Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// Templates возвращает все шаблоны.
func (s *Service) Templates(ctx context.Context) ([]*Template, error) {
	return s.store.ListTemplates(ctx)
}

// CreateTemplate валидирует и сохраняет новый шаблон.
func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if _, err := games.Resolve(t.Game); err != nil {
		return fmt.Errorf("%w: %s", common.ErrUnsupportedGame, t.Game)
	}
	if t.MaxWinners <= 0 {
		t.MaxWinners = 1
	}
	if t.AttemptsPerUser <= 0 {
		t.AttemptsPerUser = 1
	}
	if t.CooldownHours <= 0 {
		t.CooldownHours = 1
	}
	if t.Timezone == "" {
		t.Timezone = s.defaultTZ
	}
	return s.store.CreateTemplate(ctx, t)
}

// SetTemplateEnabled включает/выключает шаблон.
func (s *Service) SetTemplateEnabled(ctx context.Context, slug string, enabled bool) error {
	return s.store.SetTemplateEnabled(ctx, slug, enabled)
}

// FinishRound завершает раунд по команде оператора.
func (s *Service) FinishRound(ctx context.Context, roundID int64) error {
	return s.store.FinishRound(ctx, roundID)
}

// ResetAttempts удаляет все попытки раунда (операторский сброс).
func (s *Service) ResetAttempts(ctx context.Context, roundID int64) (int64, error) {
	return s.store.DeleteAttempts(ctx, roundID)
}
