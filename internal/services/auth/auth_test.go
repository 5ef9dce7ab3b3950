package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	customjwt "github.com/magabrotheeeer/user-management/internal/lib/jwt"
	"github.com/magabrotheeeer/user-management/internal/lib/password"
	"github.com/magabrotheeeer/user-management/internal/lib/sealer"
	"github.com/magabrotheeeer/user-management/internal/lib/smtp"
	"github.com/magabrotheeeer/user-management/internal/models"
	services "github.com/magabrotheeeer/user-management/internal/services/auth"
	"github.com/magabrotheeeer/user-management/internal/storage/repository"
)

const testPassword = "Passw0rd!"

// fakeRepo хранилище в памяти с той же семантикой ошибок, что и postgres.
type fakeRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	records   map[string]*models.AuthRecord
	blacklist map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     map[string]*models.User{},
		records:   map[string]*models.AuthRecord{},
		blacklist: map[string]bool{},
	}
}

func (r *fakeRepo) add(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *fakeRepo) UpdateOne(_ context.Context, filter models.UserFilter, patch models.UserPatch) (models.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[filter.Conditions[0].Value.(string)]
	if !ok {
		return models.UpdateResult{}, nil
	}
	before := *u
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	var modified int64
	if before.IsActive != u.IsActive || before.Email != u.Email {
		modified = 1
	}
	return models.UpdateResult{Matched: 1, Modified: modified}, nil
}

func (r *fakeRepo) record(userID string) *models.AuthRecord {
	rec, ok := r.records[userID]
	if !ok {
		rec = &models.AuthRecord{UserID: userID}
		r.records[userID] = rec
	}
	return rec
}

func (r *fakeRepo) EnsureAuthRecord(_ context.Context, userID string) (*models.AuthRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.record(userID)
	return &cp, nil
}

func (r *fakeRepo) GetAuthRecord(_ context.Context, userID string) (*models.AuthRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) SetVerification(_ context.Context, userID, code string, expire time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(userID)
	rec.VerificationCode, rec.VerificationExpire = code, &expire
	return nil
}

func (r *fakeRepo) ClearVerification(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(userID)
	rec.VerificationCode, rec.VerificationExpire = "", nil
	return nil
}

func (r *fakeRepo) SetResetToken(_ context.Context, userID, tokenHash string, expire time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(userID)
	rec.ResetPasswordToken, rec.ResetPasswordExpire = tokenHash, &expire
	return nil
}

func (r *fakeRepo) ClearResetToken(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(userID)
	rec.ResetPasswordToken, rec.ResetPasswordExpire = "", nil
	return nil
}

func (r *fakeRepo) MarkVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = true
	rec := r.record(userID)
	rec.VerificationCode, rec.VerificationExpire = "", nil
	return nil
}

func (r *fakeRepo) CommitEmailChange(_ context.Context, userID, newEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range r.users {
		if other.Email == newEmail && other.ID != userID {
			return repository.ErrEmailTaken
		}
	}
	u.Email = newEmail
	rec := r.record(userID)
	rec.VerificationCode, rec.VerificationExpire = "", nil
	return nil
}

func (r *fakeRepo) CommitPasswordReset(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	rec := r.record(userID)
	rec.ResetPasswordToken, rec.ResetPasswordExpire = "", nil
	return nil
}

func (r *fakeRepo) AddToBlacklist(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blacklist[userID+"|"+token] = true
	return nil
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, html string) (smtp.Receipt, error) {
	args := m.Called(ctx, to, subject, html)
	return args.Get(0).(smtp.Receipt), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var linkToken = regexp.MustCompile(`href="[^"]*/([^/"]+)"`)

// inbox запоминает последнее письмо на каждый адрес.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (b *inbox) token(t *testing.T, to string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	m := linkToken.FindStringSubmatch(b.last[to])
	require.Len(t, m, 2, "no link in mail to %s", to)
	return m[1]
}

type fixture struct {
	svc    *services.AuthService
	repo   *fakeRepo
	mailer *MockMailer
	tokens *customjwt.MakerImpl
	hasher *password.Hasher
	inbox  *inbox
	now    time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, legacy bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:   newFakeRepo(),
		mailer: new(MockMailer),
		hasher: password.NewHasher(4),
		inbox:  &inbox{last: map[string]string{}},
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.tokens = customjwt.NewJWTMaker("test-secret", customjwt.TTL{
		Session:      24 * time.Hour,
		Verification: 2 * time.Hour,
		EmailChange:  2 * time.Hour,
		Reset:        2 * time.Hour,
	}).WithClock(clock)
	s, err := sealer.New("test-secret")
	require.NoError(t, err)

	cache := new(MockCache)
	cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.svc = services.NewAuthService(newNoopLogger(), f.repo, f.tokens, f.hasher, s, f.mailer, cache, services.Options{
		PublicURL:       "http://localhost:8080",
		VerificationTTL: time.Hour,
		EmailChangeTTL:  time.Hour,
		ResetTTL:        time.Hour,
		LegacyReset:     legacy,
	}).WithClock(clock)
	return f
}

func (f *fixture) mailOK() {
	f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.inbox.mu.Lock()
			defer f.inbox.mu.Unlock()
			f.inbox.last[args.String(1)] = args.String(3)
		}).
		Return(smtp.Receipt{MessageID: "<id@test>", Accepted: []string{"x"}}, nil)
}

func (f *fixture) user(t *testing.T, id, email string, verified bool) *models.User {
	t.Helper()
	hash, err := f.hasher.GetHash(testPassword)
	require.NoError(t, err)
	u := &models.User{ID: id, Email: email, Role: models.RoleUser, PasswordHash: hash, IsVerified: verified}
	f.repo.add(u)
	return u
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %v", err)
	return appErr.Kind
}

func TestAuthService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("успешный вход выдает токен с id и ролью из хранилища", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)

		res, err := f.svc.SignIn(ctx, "jane@example.com", testPassword)
		require.NoError(t, err)
		require.True(t, res.Verified)

		claims, err := f.tokens.ParseSessionToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, models.RoleUser, claims.Role)

		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.True(t, stored.IsActive)
	})

	t.Run("неизвестная почта", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.SignIn(ctx, "nobody@example.com", testPassword)
		assert.Equal(t, apperr.NotFound, kindOf(t, err))
	})

	t.Run("неверный пароль", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)

		_, err := f.svc.SignIn(ctx, "jane@example.com", "Wrong1!pass")
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))

		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.False(t, stored.IsActive)
	})

	t.Run("неподтвержденная учетная запись не ошибка", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", false)

		res, err := f.svc.SignIn(ctx, "jane@example.com", testPassword)
		require.NoError(t, err)
		assert.False(t, res.Verified)
		assert.Empty(t, res.Token)
	})
}

func TestAuthService_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.user(t, "u1", "jane@example.com", true)

	res, err := f.svc.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)

	err = f.svc.SignOut(ctx, models.Identity{ID: "u1", Role: models.RoleUser}, res.Token)
	require.NoError(t, err)

	assert.True(t, f.repo.blacklist["u1|"+res.Token])
	stored, _ := f.repo.GetByID(ctx, "u1")
	assert.False(t, stored.IsActive)
}

func TestAuthService_Verification(t *testing.T) {
	ctx := context.Background()

	t.Run("уже подтвержденный пользователь", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)
		err := f.svc.SendVerification(ctx, "jane@example.com")
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))
	})

	t.Run("ошибка отправки откатывает код", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", false)
		f.mailer.On("Send", mock.Anything, "jane@example.com", mock.Anything, mock.Anything).
			Return(smtp.Receipt{}, errors.New("smtp down"))

		err := f.svc.SendVerification(ctx, "jane@example.com")
		assert.Equal(t, apperr.Integrity, kindOf(t, err))

		rec, err := f.repo.GetAuthRecord(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, rec.HasVerification())
		assert.Nil(t, rec.VerificationExpire)
	})

	t.Run("срок равный текущему моменту еще действителен", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", false)
		require.NoError(t, f.svc.SendVerification(ctx, "jane@example.com"))
		token := f.inbox.token(t, "jane@example.com")

		f.advance(time.Hour)
		require.NoError(t, f.svc.VerifyAccount(ctx, token))

		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.True(t, stored.IsVerified)
		rec, _ := f.repo.GetAuthRecord(ctx, "u1")
		assert.False(t, rec.HasVerification())
	})

	t.Run("на миллисекунду позже срока код истек", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", false)
		require.NoError(t, f.svc.SendVerification(ctx, "jane@example.com"))
		token := f.inbox.token(t, "jane@example.com")

		f.advance(time.Hour + time.Millisecond)
		err := f.svc.VerifyAccount(ctx, token)
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))

		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.False(t, stored.IsVerified)
	})

	t.Run("перевыпуск кода делает прежнюю ссылку недействительной", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", false)
		require.NoError(t, f.svc.SendVerification(ctx, "jane@example.com"))
		first := f.inbox.token(t, "jane@example.com")
		require.NoError(t, f.svc.SendVerification(ctx, "jane@example.com"))
		second := f.inbox.token(t, "jane@example.com")

		err := f.svc.VerifyAccount(ctx, first)
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))
		assert.NoError(t, f.svc.VerifyAccount(ctx, second))
	})

	t.Run("токен другого назначения отклоняется", func(t *testing.T) {
		f := newFixture(t, false)
		u := f.user(t, "u1", "jane@example.com", false)
		session, err := f.tokens.GenerateSessionToken(u)
		require.NoError(t, err)

		err = f.svc.VerifyAccount(ctx, session)
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	const newPassword = "N3w!Passw"

	t.Run("обычный режим", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)

		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", ""))
		token := f.inbox.token(t, "jane@example.com")

		rec, _ := f.repo.GetAuthRecord(ctx, "u1")
		assert.NotEqual(t, token, rec.ResetPasswordToken, "token must be stored hashed")

		require.NoError(t, f.svc.ResetPassword(ctx, token, newPassword))

		_, err := f.svc.SignIn(ctx, "jane@example.com", testPassword)
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))
		_, err = f.svc.SignIn(ctx, "jane@example.com", newPassword)
		assert.NoError(t, err)

		// повторное использование ссылки
		err = f.svc.ResetPassword(ctx, token, "An0ther!pw")
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))
	})

	t.Run("без пароля в обычном режиме", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)
		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", ""))

		err := f.svc.ResetPassword(ctx, f.inbox.token(t, "jane@example.com"), "")
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))
	})

	t.Run("режим с паролем в токене", func(t *testing.T) {
		f := newFixture(t, true)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)

		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", newPassword))
		token := f.inbox.token(t, "jane@example.com")

		claims, err := f.tokens.ParseResetToken(token)
		require.NoError(t, err)
		assert.NotContains(t, claims.SealedPassword, newPassword)

		require.NoError(t, f.svc.ResetPassword(ctx, token, ""))
		_, err = f.svc.SignIn(ctx, "jane@example.com", newPassword)
		assert.NoError(t, err)
	})

	t.Run("устаревший токен после перевыпуска", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)

		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", ""))
		first := f.inbox.token(t, "jane@example.com")
		f.advance(time.Second)
		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", ""))

		err := f.svc.ResetPassword(ctx, first, newPassword)
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))
	})

	t.Run("истекший срок", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)
		require.NoError(t, f.svc.ForgotPassword(ctx, "jane@example.com", ""))
		token := f.inbox.token(t, "jane@example.com")

		f.advance(time.Hour + time.Millisecond)
		err := f.svc.ResetPassword(ctx, token, newPassword)
		assert.Equal(t, apperr.Unauthorized, kindOf(t, err))
	})

	t.Run("ошибка отправки откатывает токен", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)
		f.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(smtp.Receipt{}, errors.New("smtp down"))

		err := f.svc.ForgotPassword(ctx, "jane@example.com", "")
		assert.Equal(t, apperr.Integrity, kindOf(t, err))
		rec, _ := f.repo.GetAuthRecord(ctx, "u1")
		assert.False(t, rec.HasReset())
	})
}

func TestAuthService_ChangeEmail(t *testing.T) {
	ctx := context.Background()
	identity := models.Identity{ID: "u1", Role: models.RoleUser}

	t.Run("адрес занят", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)
		f.user(t, "u2", "john@example.com", true)

		err := f.svc.ChangeEmail(ctx, identity, "john@example.com")
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))
	})

	t.Run("тот же адрес", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)

		err := f.svc.ChangeEmail(ctx, identity, "jane@example.com")
		assert.Equal(t, apperr.BadRequest, kindOf(t, err))
	})

	t.Run("адрес меняется только после подтверждения", func(t *testing.T) {
		f := newFixture(t, false)
		f.mailOK()
		f.user(t, "u1", "jane@example.com", true)

		require.NoError(t, f.svc.ChangeEmail(ctx, identity, "jane.new@example.com"))
		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.Equal(t, "jane@example.com", stored.Email)

		require.NoError(t, f.svc.VerifyNewEmail(ctx, f.inbox.token(t, "jane.new@example.com")))
		stored, _ = f.repo.GetByID(ctx, "u1")
		assert.Equal(t, "jane.new@example.com", stored.Email)
	})
	t.Run("ошибка отправки откатывает код", func(t *testing.T) {
		f := newFixture(t, false)
		f.user(t, "u1", "jane@example.com", true)
		f.mailer.On("Send", mock.Anything, "jane.new@example.com", mock.Anything, mock.Anything).
			Return(smtp.Receipt{}, errors.New("smtp down"))

		err := f.svc.ChangeEmail(ctx, identity, "jane.new@example.com")
		assert.Equal(t, apperr.Integrity, kindOf(t, err))

		rec, err := f.repo.GetAuthRecord(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, rec.HasVerification())
		assert.Nil(t, rec.VerificationExpire)

		stored, _ := f.repo.GetByID(ctx, "u1")
		assert.Equal(t, "jane@example.com", stored.Email)
	})
}

func TestAuthService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.mailOK()
	f.user(t, "u1", "jane@example.com", false)

	require.NoError(t, f.svc.SendVerification(ctx, "jane@example.com"))
	require.NoError(t, f.svc.VerifyAccount(ctx, f.inbox.token(t, "jane@example.com")))

	res, err := f.svc.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, res.Verified)

	identity := models.Identity{ID: res.User.ID, Role: res.User.Role}
	require.NoError(t, f.svc.ChangeEmail(ctx, identity, "jane.new@example.com"))
	require.NoError(t, f.svc.VerifyNewEmail(ctx, f.inbox.token(t, "jane.new@example.com")))

	res, err = f.svc.SignIn(ctx, "jane.new@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.SignIn(ctx, "jane@example.com", testPassword)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}
