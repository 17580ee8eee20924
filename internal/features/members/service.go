// Package members — service.go содержит бизнес-логику регистрации пользователей.
// Сервис координирует обработку /start, реферальные ссылки
// и обновление профилей.
package members

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// RegistrationHook вызывается после регистрации нового пользователя,
// пришедшего по реферальной ссылке. Устанавливается при сборке приложения,
// чтобы не тянуть сюда пакет referral.
type RegistrationHook func(ctx context.Context, referrerID, newUserID int64)

// Store — операции хранилища, нужные сервису. Реализуется Repository.
type Store interface {
	Create(ctx context.Context, m *Member) error
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	GetByUsername(ctx context.Context, username string) (*Member, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	UpdateInfo(ctx context.Context, userID int64, info UpdateInfo) error
	CountReferrals(ctx context.Context, userID int64) (int, error)
}

// Service управляет пользователями бота.
type Service struct {
	repo  Store
	onRef RegistrationHook
}

// NewService создаёт новый сервис пользователей.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// SetRegistrationHook подключает обработчик реферальных регистраций.
func (s *Service) SetRegistrationHook(hook RegistrationHook) {
	s.onRef = hook
}

// ParseReferrerID извлекает ID пригласившего из аргумента /start.
// Ссылки имеют вид t.me/bot?start=ref<user_id>; всё остальное игнорируется.
func ParseReferrerID(startArg string) (int64, bool) {
	raw, ok := strings.CutPrefix(startArg, "ref")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Register обрабатывает /start. Если пользователь новый и пришёл по
// реферальной ссылке — фиксирует связь и дёргает хук ровно один раз.
// Самоприглашение и ссылки на незарегистрированных пользователей
// молча игнорируются.
func (s *Service) Register(ctx context.Context, userID int64, username, firstName, lastName string, referrerID *int64) error {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrUserNotFound) {
		// Сбой чтения нельзя путать с "пользователя нет": иначе старый
		// пользователь прошёл бы путь новой регистрации вместе с хуком
		return fmt.Errorf("ошибка проверки пользователя: %w", err)
	}
	if existing != nil {
		// Повторный /start — только обновляем профиль, реферер не меняется
		return s.repo.UpdateInfo(ctx, userID, UpdateInfo{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		})
	}

	member := &Member{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}

	if referrerID != nil && *referrerID != userID {
		if exists, err := s.repo.Exists(ctx, *referrerID); err == nil && exists {
			member.ReferredBy = referrerID
		}
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
		"referred": member.ReferredBy != nil,
	}).Info("Новый пользователь зарегистрирован")

	if member.ReferredBy != nil && s.onRef != nil {
		s.onRef(ctx, *member.ReferredBy, userID)
	}

	return nil
}

// EnsureMember гарантирует, что пользователь есть в базе.
// Используется при первом сообщении в чате; реферальная связь
// здесь не устанавливается.
func (s *Service) EnsureMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Register(ctx, userID, username, firstName, lastName, nil)
}

// GetByUserID возвращает пользователя по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetByUsername возвращает пользователя по @username (без @).
func (s *Service) GetByUsername(ctx context.Context, username string) (*Member, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ReferrerOf возвращает пригласившего пользователя, если он есть.
func (s *Service) ReferrerOf(ctx context.Context, userID int64) (*int64, error) {
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.ReferredBy, nil
}

// ReferralCount возвращает число приглашённых пользователем.
func (s *Service) ReferralCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountReferrals(ctx, userID)
}
