package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"wownote/internal/apperr"
	"wownote/internal/db"
	"wownote/internal/models"
	"wownote/internal/store"
)

type captureMailer struct {
	links []string
}

func (m *captureMailer) SendVerification(_ context.Context, _ string, link string) error {
	m.links = append(m.links, link)
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.links)
	link := m.links[len(m.links)-1]
	idx := strings.Index(link, "?token=")
	require.GreaterOrEqual(t, idx, 0)
	return link[idx+len("?token="):]
}

type fixture struct {
	svc    *Service
	mailer *captureMailer
	db     *gorm.DB
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	database, err := db.Connect(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.Migrate(ctx, database))

	signer, err := NewSessionSigner("test-signing-key-0123456789")
	require.NoError(t, err)

	f := &fixture{mailer: &captureMailer{}, db: database, now: time.Now().UTC()}
	f.svc, err = NewService(store.NewAccountStore(database), BcryptHasher{Cost: bcrypt.MinCost}, f.mailer, signer, Options{
		BaseURL: "https://notes.example.com/",
		Now:     func() time.Time { return f.now },
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, email, password string) Session {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.RequestRegistration(ctx, email))
	token := f.mailer.lastToken(t)
	_, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	sess, err := f.svc.Register(ctx, RegisterInput{Token: token, Password: password, AgreedToTerms: true})
	require.NoError(t, err)
	return sess
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRegistration(ctx, "Jane@Example.com"))
	first := f.mailer.lastToken(t)
	assert.True(t, strings.HasPrefix(f.mailer.links[0], "https://notes.example.com/?token="))

	require.NoError(t, f.svc.RequestRegistration(ctx, "jane@example.com"))
	second := f.mailer.lastToken(t)
	assert.NotEqual(t, first, second)

	_, err := f.svc.VerifyEmail(ctx, first)
	require.Error(t, err)
	assert.Equal(t, 400, apperr.Status(err))
	assert.EqualError(t, err, "invalid token")

	// Registering before verification is refused.
	_, err = f.svc.Register(ctx, RegisterInput{Token: second, Password: "longenough", AgreedToTerms: true})
	assert.Equal(t, 400, apperr.Status(err))

	email, err := f.svc.VerifyEmail(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	_, err = f.svc.Register(ctx, RegisterInput{Token: second, Password: "seven77", AgreedToTerms: true})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = f.svc.Register(ctx, RegisterInput{Token: second, Password: "eight888", AgreedToTerms: false})
	assert.Equal(t, 400, apperr.Status(err))

	sess, err := f.svc.Register(ctx, RegisterInput{Token: second, Password: "eight888", AgreedToTerms: true})
	require.NoError(t, err)
	assert.Equal(t, "jane", sess.User.Username)
	assert.NotEmpty(t, sess.Token)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = f.svc.Register(ctx, RegisterInput{Token: second, Password: "eight888", AgreedToTerms: true})
	assert.Equal(t, 409, apperr.Status(err))

	err = f.svc.RequestRegistration(ctx, "jane@example.com")
	assert.Equal(t, 409, apperr.Status(err))

	id, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.UserID)
}

func TestSupersededTokenCannotRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRegistration(ctx, "mallory@example.com"))
	first := f.mailer.lastToken(t)
	require.NoError(t, f.svc.RequestRegistration(ctx, "mallory@example.com"))
	second := f.mailer.lastToken(t)

	tests := []struct {
		name  string
		token string
	}{
		{"superseded", first},
		{"never verified", second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, RegisterInput{Token: tt.token, Password: "password1", AgreedToTerms: true})
			require.Error(t, err)
			assert.Equal(t, 400, apperr.Status(err))
			assert.EqualError(t, err, "email address has not been verified")
		})
	}

	_, err := f.svc.VerifyEmail(ctx, first)
	assert.EqualError(t, err, "invalid token")

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.svc.VerifyEmail(ctx, second)
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Token: first, Password: "password1", AgreedToTerms: true})
	assert.Equal(t, 400, apperr.Status(err))
	_, err = f.svc.Register(ctx, RegisterInput{Token: second, Password: "password1", AgreedToTerms: true})
	require.NoError(t, err)
}

func TestRequestRegistrationRejectsBadEmail(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"", "not-an-email", "a@b", "Jane <jane@example.com>"} {
		err := f.svc.RequestRegistration(context.Background(), email)
		assert.Equal(t, 400, apperr.Status(err), email)
	}
	assert.Empty(t, f.mailer.links)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestRegistration(ctx, "late@example.com"))
	token := f.mailer.lastToken(t)

	f.now = f.now.Add(25 * time.Hour)
	_, err := f.svc.VerifyEmail(ctx, token)
	assert.EqualError(t, err, "token expired")

	_, err = f.svc.VerifyEmail(ctx, "nope")
	assert.EqualError(t, err, "invalid token")
}

func TestLoginFailuresDoNotLockOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "bob@example.com", "correct-horse")

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "bob@example.com", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, 401, apperr.Status(err))
		assert.EqualError(t, err, "incorrect email or password")
	}

	_, err := f.svc.Login(ctx, "nobody@example.com", "whatever")
	assert.Equal(t, 401, apperr.Status(err))

	sess, err := f.svc.Login(ctx, "BOB@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", sess.User.Email)

	var failures int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("action = ?", ActionLoginFailed).Count(&failures).Error)
	assert.Equal(t, int64(3), failures)
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "off@example.com", "password1")

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", sess.User.ID).Update("is_active", false).Error)

	_, err := f.svc.Login(ctx, "off@example.com", "password1")
	assert.Equal(t, 403, apperr.Status(err))
	assert.EqualError(t, err, "account is disabled")
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "carol@example.com", "password1")

	id, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, id))

	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.Equal(t, 401, apperr.Status(err))

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.Equal(t, 401, apperr.Status(err))
}

func TestSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "dave@example.com", "password1")

	f.now = f.now.Add(15 * 24 * time.Hour)
	_, err := f.svc.Authenticate(ctx, sess.Token)
	assert.Equal(t, 401, apperr.Status(err))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "erin@example.com", "password1")
	id, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	newName := "erin2"
	newPass := "password2"

	_, err = f.svc.UpdateProfile(ctx, id, ProfileInput{Username: &newName})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = f.svc.UpdateProfile(ctx, id, ProfileInput{CurrentPassword: "wrong", Username: &newName})
	assert.Equal(t, 401, apperr.Status(err))

	short := "short"
	_, err = f.svc.UpdateProfile(ctx, id, ProfileInput{CurrentPassword: "password1", NewPassword: &short})
	assert.Equal(t, 400, apperr.Status(err))

	user, err := f.svc.UpdateProfile(ctx, id, ProfileInput{CurrentPassword: "password1", Username: &newName, NewPassword: &newPass})
	require.NoError(t, err)
	assert.Equal(t, "erin2", user.Username)

	_, err = f.svc.Login(ctx, "erin@example.com", "password1")
	assert.Equal(t, 401, apperr.Status(err))
	_, err = f.svc.Login(ctx, "erin@example.com", "password2")
	require.NoError(t, err)
}

func TestSessionSigner(t *testing.T) {
	_, err := NewSessionSigner("short")
	require.Error(t, err)

	a, err := NewSessionSigner("key-a-0123456789abcdef")
	require.NoError(t, err)
	b, err := NewSessionSigner("key-b-0123456789abcdef")
	require.NoError(t, err)

	now := time.Now()
	sessionID := uuid.New()
	token, err := a.Issue(sessionID, now, now.Add(time.Hour))
	require.NoError(t, err)

	got, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got)

	_, err = b.Parse(token)
	require.Error(t, err)

	expired, err := a.Issue(sessionID, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = a.Parse(expired)
	require.Error(t, err)
}
