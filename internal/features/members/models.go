// Package members управляет пользователями бота: регистрацией по /start,
// реферальными связями и обновлением профиля.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Member представляет пользователя бота в базе данных.
// Запись создаётся при первом /start или первом сообщении в основном чате.
type Member struct {
	ID         int64     `db:"id"`          // Автоинкрементный ID записи в БД
	UserID     int64     `db:"user_id"`     // Telegram user ID (уникальный)
	Username   string    `db:"username"`    // @username (может быть пустым)
	FirstName  string    `db:"first_name"`  // Имя пользователя
	LastName   string    `db:"last_name"`   // Фамилия (может быть пустой)
	ReferredBy *int64    `db:"referred_by"` // user_id пригласившего (nil — пришёл сам)
	IsAdmin    bool      `db:"is_admin"`    // Флаг администратора
	IsBanned   bool      `db:"is_banned"`   // Флаг бана
	JoinedAt   time.Time `db:"joined_at"`   // Когда впервые появился
	CreatedAt  time.Time `db:"created_at"`  // Когда запись создана в БД
	UpdatedAt  time.Time `db:"updated_at"`  // Последнее обновление записи
}

// UpdateInfo содержит данные для обновления профиля пользователя.
// Используется, когда имя/username могли измениться.
type UpdateInfo struct {
	Username  string // Новый @username
	FirstName string // Новое имя
	LastName  string // Новая фамилия
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}
