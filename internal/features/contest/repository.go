// Package contest — repository.go выполняет все операции с таблицами
// contest_templates, contest_rounds и contest_attempts.
// Решение о победителе принимается в одной транзакции с блокировкой
// строки раунда — это мьютекс уровня БД, корректный и при нескольких
// процессах бота над одной базой.
package contest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// Repository работает с таблицами конкурсов в БД.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий конкурсов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// --- Шаблоны ---

const templateColumns = `id, slug, name, description, game, prize_type, prize_value,
	max_winners, attempts_per_user, times_per_day, schedule_times, cooldown_hours,
	timezone, payload, is_enabled, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.Description, &t.Game, &t.PrizeType, &t.PrizeValue,
		&t.MaxWinners, &t.AttemptsPerUser, &t.TimesPerDay, &t.ScheduleTimes, &t.CooldownHours,
		&t.Timezone, &t.Payload, &t.IsEnabled, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate сохраняет новый шаблон конкурса.
func (r *Repository) CreateTemplate(ctx context.Context, t *Template) error {
	query := `
		INSERT INTO contest_templates
			(slug, name, description, game, prize_type, prize_value, max_winners,
			 attempts_per_user, times_per_day, schedule_times, cooldown_hours, timezone, payload, is_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		t.Slug, t.Name, t.Description, t.Game, t.PrizeType, t.PrizeValue, t.MaxWinners,
		t.AttemptsPerUser, t.TimesPerDay, t.ScheduleTimes, t.CooldownHours, t.Timezone, t.Payload, t.IsEnabled,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания шаблона: %w", err)
	}
	return nil
}

// GetTemplate возвращает шаблон по ID.
func (r *Repository) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM contest_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шаблона: %w", err)
	}
	return t, nil
}

// GetTemplateBySlug возвращает шаблон по слагу.
func (r *Repository) GetTemplateBySlug(ctx context.Context, slug string) (*Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM contest_templates WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шаблона: %w", err)
	}
	return t, nil
}

// ListTemplates возвращает все шаблоны (для админ-панели).
func (r *Repository) ListTemplates(ctx context.Context) ([]*Template, error) {
	return r.listTemplates(ctx, `SELECT `+templateColumns+` FROM contest_templates ORDER BY id`)
}

// ListEnabledTemplates возвращает включённые шаблоны для планировщика.
func (r *Repository) ListEnabledTemplates(ctx context.Context) ([]*Template, error) {
	return r.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM contest_templates WHERE is_enabled ORDER BY id`)
}

func (r *Repository) listTemplates(ctx context.Context, query string) ([]*Template, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения шаблонов: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования шаблона: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// SetTemplateEnabled включает/выключает шаблон. Шаблоны не удаляются.
func (r *Repository) SetTemplateEnabled(ctx context.Context, slug string, enabled bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contest_templates SET is_enabled = $2, updated_at = NOW() WHERE slug = $1`,
		slug, enabled)
	if err != nil {
		return fmt.Errorf("ошибка обновления шаблона: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTemplateNotFound
	}
	return nil
}

// --- Раунды ---

const roundColumns = `id, template_id, starts_at, ends_at, status, payload,
	winners_count, max_winners, attempts_per_user, created_at`

func scanRound(row pgx.Row) (*Round, error) {
	var rd Round
	err := row.Scan(
		&rd.ID, &rd.TemplateID, &rd.StartsAt, &rd.EndsAt, &rd.Status, &rd.Payload,
		&rd.WinnersCount, &rd.MaxWinners, &rd.AttemptsPerUser, &rd.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

// CreateRound сохраняет новый раунд в статусе active.
func (r *Repository) CreateRound(ctx context.Context, rd *Round) error {
	query := `
		INSERT INTO contest_rounds
			(template_id, starts_at, ends_at, status, payload, winners_count, max_winners, attempts_per_user)
		VALUES ($1, $2, $3, 'active', $4, 0, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		rd.TemplateID, rd.StartsAt, rd.EndsAt, rd.Payload, rd.MaxWinners, rd.AttemptsPerUser,
	).Scan(&rd.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания раунда: %w", err)
	}
	rd.Status = RoundActive
	return nil
}

// GetRound возвращает раунд по ID.
func (r *Repository) GetRound(ctx context.Context, id int64) (*Round, error) {
	rd, err := scanRound(r.db.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM contest_rounds WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения раунда: %w", err)
	}
	return rd, nil
}

// GetActiveRound возвращает активный раунд шаблона (не больше одного).
// Чтение всегда идёт в БД: решения планировщика не должны зависеть от кэша.
func (r *Repository) GetActiveRound(ctx context.Context, templateID int64) (*Round, error) {
	rd, err := scanRound(r.db.QueryRow(ctx,
		`SELECT `+roundColumns+` FROM contest_rounds
		 WHERE template_id = $1 AND status = 'active'
		 ORDER BY id DESC LIMIT 1`, templateID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNoActiveRound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активного раунда: %w", err)
	}
	return rd, nil
}

// ListActiveRounds возвращает все активные раунды (для команды в чате).
func (r *Repository) ListActiveRounds(ctx context.Context) ([]*Round, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roundColumns+` FROM contest_rounds WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных раундов: %w", err)
	}
	defer rows.Close()

	var rounds []*Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования раунда: %w", err)
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

// FinishRound переводит раунд в статус finished.
func (r *Repository) FinishRound(ctx context.Context, roundID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE contest_rounds SET status = 'finished' WHERE id = $1`, roundID)
	if err != nil {
		return fmt.Errorf("ошибка завершения раунда: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrRoundNotFound
	}
	return nil
}

// --- Попытки ---

// GetAttempt возвращает попытку пары (round, user) или (nil, nil), если её нет.
func (r *Repository) GetAttempt(ctx context.Context, roundID, userID int64) (*Attempt, error) {
	var a Attempt
	err := r.db.QueryRow(ctx, `
		SELECT id, round_id, user_id, answer, is_winner, created_at
		FROM contest_attempts
		WHERE round_id = $1 AND user_id = $2
	`, roundID, userID).Scan(&a.ID, &a.RoundID, &a.UserID, &a.Answer, &a.IsWinner, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения попытки: %w", err)
	}
	return &a, nil
}

// CreatePendingAttempt резервирует слот попытки с answer = NULL.
// Возвращает false, если слот уже занят (повторный вход).
func (r *Repository) CreatePendingAttempt(ctx context.Context, roundID, userID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO contest_attempts (round_id, user_id, answer, is_winner)
		VALUES ($1, $2, NULL, FALSE)
		ON CONFLICT (round_id, user_id) DO NOTHING
	`, roundID, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка резервирования попытки: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPendingRoundForUser находит активный раунд, в котором пользователь
// зарезервировал попытку и ещё не ответил. Нужен, чтобы связать свободный
// текст в чате с текстовой игрой; (nil, nil) — ничего не ожидается.
func (r *Repository) GetPendingRoundForUser(ctx context.Context, userID int64) (*Round, error) {
	rd, err := scanRound(r.db.QueryRow(ctx, `
		SELECT r.id, r.template_id, r.starts_at, r.ends_at, r.status, r.payload,
		       r.winners_count, r.max_winners, r.attempts_per_user, r.created_at
		FROM contest_rounds r
		JOIN contest_attempts a ON a.round_id = r.id
		WHERE a.user_id = $1 AND a.answer IS NULL AND r.status = 'active'
		ORDER BY a.created_at DESC LIMIT 1
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска ожидающей попытки: %w", err)
	}
	return rd, nil
}

// DeleteAttempts удаляет все попытки раунда (операторский сброс).
func (r *Repository) DeleteAttempts(ctx context.Context, roundID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM contest_attempts WHERE round_id = $1`, roundID)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления попыток: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Атомарное решение о победе ---

// Decision — входные данные атомарной фиксации попытки.
type Decision struct {
	RoundID int64
	UserID  int64
	Answer  string
	// Correct — локальный вердикт стратегии; под блокировкой он может быть
	// понижен до "не победитель", если квоту успели выбрать параллельные запросы
	Correct bool
	// FromPending — заполнить ранее зарезервированную попытку вместо вставки новой
	FromPending bool
	// Award начисляет приз В ТОЙ ЖЕ транзакции; вызывается только для победителя.
	// Ошибка приза откатывает всё: попытка не останется победной без приза.
	Award func(ctx context.Context, tx pgx.Tx) error
}

// Outcome — итог атомарной фиксации.
type Outcome struct {
	IsWinner      bool
	AlreadyPlayed bool
}

// DecideAttempt — единственный писатель winners_count.
// Берёт эксклюзивную блокировку строки раунда (SELECT ... FOR UPDATE),
// перечитывает счётчик под блокировкой, сравнивает с квотой и фиксирует
// попытку, инкремент и приз одним коммитом. Инвариант
// winners_count <= max_winners держится при любом числе параллельных
// вызовов из любых процессов.
func (r *Repository) DecideAttempt(ctx context.Context, d Decision) (*Outcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	var winners, maxWinners int
	var status RoundStatus
	err = tx.QueryRow(ctx, `
		SELECT winners_count, max_winners, status
		FROM contest_rounds WHERE id = $1
		FOR UPDATE
	`, d.RoundID).Scan(&winners, &maxWinners, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки раунда: %w", err)
	}

	isWinner := d.Correct && status == RoundActive && winners < maxWinners

	// Фиксируем попытку. Проигрышные и "опоздавшие к квоте" попытки тоже
	// пишутся — этим держится правило одной попытки.
	var tag pgconn.CommandTag
	if d.FromPending {
		tag, err = tx.Exec(ctx, `
			UPDATE contest_attempts SET answer = $3, is_winner = $4
			WHERE round_id = $1 AND user_id = $2 AND answer IS NULL
		`, d.RoundID, d.UserID, d.Answer, isWinner)
	} else {
		tag, err = tx.Exec(ctx, `
			INSERT INTO contest_attempts (round_id, user_id, answer, is_winner)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (round_id, user_id) DO NOTHING
		`, d.RoundID, d.UserID, d.Answer, isWinner)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка записи попытки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Параллельный запрос того же пользователя успел раньше
		return &Outcome{AlreadyPlayed: true}, nil
	}

	if isWinner {
		if _, err := tx.Exec(ctx, `
			UPDATE contest_rounds SET winners_count = winners_count + 1 WHERE id = $1
		`, d.RoundID); err != nil {
			return nil, fmt.Errorf("ошибка инкремента победителей: %w", err)
		}
		if d.Award != nil {
			if err := d.Award(ctx, tx); err != nil {
				return nil, fmt.Errorf("ошибка начисления приза: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &Outcome{IsWinner: isWinner}, nil
}
