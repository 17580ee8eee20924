package members

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// fakeMemberStore — хранилище в памяти; getErr подменяет результат
// GetByUserID, имитируя сбой БД.
type fakeMemberStore struct {
	members map[int64]*Member
	getErr  error
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{members: make(map[int64]*Member)}
}

func (f *fakeMemberStore) Create(_ context.Context, m *Member) error {
	f.members[m.UserID] = m
	return nil
}

func (f *fakeMemberStore) GetByUserID(_ context.Context, userID int64) (*Member, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	m, ok := f.members[userID]
	if !ok {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	return m, nil
}

func (f *fakeMemberStore) GetByUsername(_ context.Context, username string) (*Member, error) {
	for _, m := range f.members {
		if m.Username == username {
			return m, nil
		}
	}
	return nil, fmt.Errorf("username=%s: %w", username, common.ErrUserNotFound)
}

func (f *fakeMemberStore) Exists(_ context.Context, userID int64) (bool, error) {
	_, ok := f.members[userID]
	return ok, nil
}

func (f *fakeMemberStore) UpdateInfo(_ context.Context, userID int64, info UpdateInfo) error {
	m, ok := f.members[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	m.Username = info.Username
	m.FirstName = info.FirstName
	m.LastName = info.LastName
	return nil
}

func (f *fakeMemberStore) CountReferrals(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, m := range f.members {
		if m.ReferredBy != nil && *m.ReferredBy == userID {
			n++
		}
	}
	return n, nil
}

type hookRecorder struct {
	calls []int64
}

func (h *hookRecorder) hook(_ context.Context, referrerID, newUserID int64) {
	h.calls = append(h.calls, newUserID)
}

func TestRegisterFiresHookOnce(t *testing.T) {
	store := newFakeMemberStore()
	rec := &hookRecorder{}
	svc := NewService(store)
	svc.SetRegistrationHook(rec.hook)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, "mentor", "", "", nil))

	ref := int64(100)
	require.NoError(t, svc.Register(ctx, 200, "novice", "", "", &ref))
	assert.Equal(t, []int64{200}, rec.calls)

	// повторный /start того же пользователя хук не дёргает
	require.NoError(t, svc.Register(ctx, 200, "novice2", "", "", &ref))
	assert.Equal(t, []int64{200}, rec.calls)
	assert.Equal(t, "novice2", store.members[200].Username)
}

func TestRegisterFailedReadDoesNotFireHook(t *testing.T) {
	store := newFakeMemberStore()
	rec := &hookRecorder{}
	svc := NewService(store)
	svc.SetRegistrationHook(rec.hook)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, 100, "mentor", "", "", nil))
	ref := int64(100)
	require.NoError(t, svc.Register(ctx, 200, "novice", "", "", &ref))
	rec.calls = nil

	// сбой чтения: существующий пользователь не должен пройти как новый
	store.getErr = errors.New("соединение разорвано")
	err := svc.Register(ctx, 200, "novice", "", "", &ref)
	assert.Error(t, err)
	assert.Empty(t, rec.calls)
}

func TestRegisterIgnoresSelfReferral(t *testing.T) {
	store := newFakeMemberStore()
	rec := &hookRecorder{}
	svc := NewService(store)
	svc.SetRegistrationHook(rec.hook)
	ctx := context.Background()

	self := int64(300)
	require.NoError(t, svc.Register(ctx, 300, "loop", "", "", &self))
	assert.Empty(t, rec.calls)
	assert.Nil(t, store.members[300].ReferredBy)
}

func TestParseReferrerID(t *testing.T) {
	id, ok := ParseReferrerID("ref12345")
	assert.True(t, ok)
	assert.Equal(t, int64(12345), id)

	cases := []string{
		"",
		"12345",     // без префикса
		"ref",       // пустой id
		"refabc",    // не число
		"ref0",      // нулевой id
		"ref-5",     // отрицательный id
		"REF12345",  // префикс чувствителен к регистру
		" ref12345", // мусор перед префиксом
	}
	for _, arg := range cases {
		_, ok := ParseReferrerID(arg)
		assert.False(t, ok, "arg=%q", arg)
	}
}

func TestDisplayName(t *testing.T) {
	m := &Member{UserID: 7, Username: "neo", FirstName: "Томас"}
	assert.Equal(t, "@neo", m.DisplayName())

	m = &Member{UserID: 7, FirstName: "Томас", LastName: "Андерсон"}
	assert.Equal(t, "Томас Андерсон", m.DisplayName())

	m = &Member{UserID: 7, FirstName: "Томас"}
	assert.Equal(t, "Томас", m.DisplayName())
}
