package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"

	"github.com/anoixa/image-predict/cache"
	"github.com/anoixa/image-predict/cache/gocache"
	"github.com/anoixa/image-predict/database/dbtest"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

type fixture struct {
	db       *gorm.DB
	accounts *accounts.Repository
	devices  *accounts.DeviceRepository
	jwt      *JWTService
	login    *LoginService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	jwtSvc, err := NewJWTService(testSecret, 30*time.Minute, time.Hour)
	require.NoError(t, err)

	accountsRepo := accounts.NewRepository(db)
	devicesRepo := accounts.NewDeviceRepository(db)
	return &fixture{
		db:       db,
		accounts: accountsRepo,
		devices:  devicesRepo,
		jwt:      jwtSvc,
		login:    NewLoginService(accountsRepo, devicesRepo, jwtSvc),
	}
}

func (f *fixture) createUser(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: email, IsActive: true}
	if password != "" {
		hashed, err := cryptopackage.GenerateFromPassword(password)
		require.NoError(t, err)
		user.Password = hashed
	}
	require.NoError(t, f.accounts.CreateUser(user))
	return user
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("too-short", time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestJWTService_RoundTrip(t *testing.T) {
	f := newFixture(t)

	pair, err := f.jwt.GenerateTokens("alice", 42, models.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := f.jwt.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.EqualValues(t, 42, claims.UserID())
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "image-predict", claims.Issuer)

	_, err = f.jwt.ParseToken(pair.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.jwt.ParseToken(pair.RefreshToken)
	assert.Error(t, err)

	other, err := NewJWTService(strings.Repeat("z", 32), time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = other.ParseToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	f := newFixture(t)
	f.jwt.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, expiry, err := f.jwt.GenerateAccessToken("alice", 1, models.RoleUser)
	require.NoError(t, err)
	assert.True(t, expiry.Before(time.Now()))

	f.jwt.now = time.Now
	_, err = f.jwt.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginService_Login(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice", "alice@example.com", "correct-horse-battery")

	_, err := f.login.Login("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.login.Login("nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := f.login.Login("alice", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.DeviceID)

	count, err := f.devices.CountDevicesByUser(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	reloaded, err := f.accounts.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLogin)
}

// legacyHash 旧成本参数 (t=1) 下的 argon2id 哈希
func legacyHash(password string) string {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=65536,t=1,p=4$%s$%s", argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
}

func TestLoginService_RehashesLegacyPassword(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "dave", "dave@example.com", "")
	require.NoError(t, f.accounts.UpdatePassword(user.ID, legacyHash("correct-horse-battery")))

	_, err := f.login.Login("dave", "correct-horse-battery")
	require.NoError(t, err)

	stored, err := f.accounts.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.False(t, cryptopackage.NeedsRehash(stored.Password))
}

func TestLoginService_RehashFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "erin", "erin@example.com", "")
	require.NoError(t, f.accounts.UpdatePassword(user.ID, legacyHash("correct-horse-battery")))

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_updates", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("database is read-only"))
	}))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	_, err := f.login.Login("erin", "correct-horse-battery")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Failed to rehash password")
	assert.Contains(t, buf.String(), "database is read-only")
}

func TestLoginService_OAuthOnlyUserCannotUsePassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "social", "social@example.com", "")

	_, err := f.login.Login("social", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginService_RefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "alice@example.com", "correct-horse-battery")

	result, err := f.login.Login("alice", "correct-horse-battery")
	require.NoError(t, err)

	refreshed, err := f.login.RefreshToken(result.RefreshToken, result.DeviceID)
	require.NoError(t, err)
	assert.NotEqual(t, result.RefreshToken, refreshed.RefreshToken)

	_, err = f.login.RefreshToken(result.RefreshToken, result.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	require.NoError(t, f.login.Logout(result.DeviceID))
	_, err = f.login.RefreshToken(refreshed.RefreshToken, result.DeviceID)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "violet-umbrella-42", false},
		{"too short", "a1b2c3", true},
		{"multibyte too short", "密码密码", true},
		{"multibyte long enough", "紫色雨伞四十二号", false},
		{"numeric", "1234598765", true},
		{"common", "password123", true},
		{"similar to username", "alicesmith1", true},
		{"similar with separator", "alice.smith", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, "alicesmith", "alice.smith@example.com")
			if tt.wantErr {
				assert.True(t, IsValidationError(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("bob.smith+test@x"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 151)))

	err := ValidateUsername("日本")
	require.Error(t, err)
	assert.Equal(t, "Username must be between 3 and 150 characters.", err.Error())
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, similarity("abcd", "bcde"), 1e-9)
}

func TestRegisterService_Register(t *testing.T) {
	f := newFixture(t)
	svc := NewRegisterService(f.accounts, f.login)
	ctx := context.Background()

	in := RegisterInput{
		Username:        "newbie",
		Email:           "newbie@example.com",
		Password:        "violet-umbrella-42",
		PasswordConfirm: "violet-umbrella-42",
	}
	result, err := svc.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, result.User.Role)
	assert.NotEmpty(t, result.AccessToken)

	_, err = f.login.Login("newbie", "violet-umbrella-42")
	assert.NoError(t, err)

	_, err = svc.Register(ctx, in)
	assert.True(t, IsValidationError(err))

	mismatch := in
	mismatch.Username = "other"
	mismatch.PasswordConfirm = "different-password-1"
	_, err = svc.Register(ctx, mismatch)
	assert.True(t, IsValidationError(err))

	badEmail := in
	badEmail.Username = "other2"
	badEmail.Email = "not-an-email"
	_, err = svc.Register(ctx, badEmail)
	assert.True(t, IsValidationError(err))
}

type captureMailer struct {
	mu   sync.Mutex
	to   []string
	body []string
}

func (m *captureMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.body = append(m.body, body)
	return nil
}

var resetLink = regexp.MustCompile(`http://localhost:8000/reset/([A-Za-z0-9_-]+)/([A-Za-z0-9_=-]+)\n`)

func TestResetService_Flow(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice", "Alice@Example.com", "correct-horse-battery")
	_, err := f.login.Login("alice", "correct-horse-battery")
	require.NoError(t, err)

	mailer := &captureMailer{}
	svc := NewResetService(f.accounts, accounts.NewResetTokenRepository(f.db), f.login, mailer, "http://localhost:8000", time.Hour)
	svc.dispatch = func(fn func()) { fn() }
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.to)

	require.NoError(t, svc.RequestReset(ctx, "alice@example.com"))
	require.Len(t, mailer.to, 1)
	assert.Equal(t, "Alice@Example.com", mailer.to[0])

	m := resetLink.FindStringSubmatch(mailer.body[0])
	require.Len(t, m, 3)
	uid, token := m[1], m[2]

	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	require.NoError(t, svc.CheckReset(ctx, uid, token))
	assert.ErrorIs(t, svc.CheckReset(ctx, uid, "forged"), ErrResetLinkInvalid)

	err = svc.ConfirmReset(ctx, uid, token, "short", "short")
	assert.True(t, IsValidationError(err))

	require.NoError(t, svc.ConfirmReset(ctx, uid, token, "violet-umbrella-42", "violet-umbrella-42"))

	_, err = f.login.Login("alice", "violet-umbrella-42")
	require.NoError(t, err)

	err = svc.ConfirmReset(ctx, uid, token, "another-secret-77", "another-secret-77")
	assert.ErrorIs(t, err, ErrResetLinkInvalid)
	assert.ErrorIs(t, svc.CheckReset(ctx, uid, token), ErrResetLinkInvalid)

	assert.ErrorIs(t, svc.ConfirmReset(ctx, "!!", token, "x", "x"), ErrResetLinkInvalid)
}

func TestResetService_RevokesSessions(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "bob", "bob@example.com", "correct-horse-battery")
	_, err := f.login.Login("bob", "correct-horse-battery")
	require.NoError(t, err)

	resetRepo := accounts.NewResetTokenRepository(f.db)
	require.NoError(t, resetRepo.Create(user.ID, "known-token", time.Now().Add(time.Hour)))

	svc := NewResetService(f.accounts, resetRepo, f.login, &captureMailer{}, "", time.Hour)
	require.NoError(t, svc.ConfirmReset(context.Background(), EncodeUID(user.ID), "known-token", "violet-umbrella-42", "violet-umbrella-42"))

	count, err := f.devices.CountDevicesByUser(user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type fakeProvider struct {
	identities map[string]*Identity
}

func (p *fakeProvider) Name() string { return models.ProviderGoogle }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*Identity, error) {
	if id, ok := p.identities[code]; ok {
		return id, nil
	}
	return nil, assert.AnError
}

func newOAuthService(t *testing.T, f *fixture, p IdentityProvider) *OAuthService {
	t.Helper()
	c := gocache.NewGoCache(time.Minute, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return NewOAuthService(p, c, f.accounts, accounts.NewSocialRepository(f.db), f.login)
}

func beginState(t *testing.T, svc *OAuthService) string {
	t.Helper()
	authURL, err := svc.Begin(context.Background())
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestOAuthService_StateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	p := &fakeProvider{identities: map[string]*Identity{
		"code": {Subject: "g-1", Email: "new.person@gmail.com", EmailVerified: true},
	}}
	svc := newOAuthService(t, f, p)
	ctx := context.Background()

	_, err := svc.Complete(ctx, "forged", "code")
	assert.ErrorIs(t, err, ErrOAuthState)

	state := beginState(t, svc)
	result, err := svc.Complete(ctx, state, "code")
	require.NoError(t, err)
	assert.Equal(t, "new.person", result.User.Username)
	assert.False(t, result.User.HasUsablePassword())

	_, err = svc.Complete(ctx, state, "code")
	assert.ErrorIs(t, err, ErrOAuthState)
}

func TestOAuthService_ConcurrentCallbacksShareOneState(t *testing.T) {
	f := newFixture(t)
	p := &fakeProvider{identities: map[string]*Identity{
		"code": {Subject: "g-2", Email: "racer@gmail.com", EmailVerified: true},
	}}
	svc := newOAuthService(t, f, p)
	state := beginState(t, svc)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(context.Background(), state, "code")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrOAuthState):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, rejected)
}

// brokenTakeCache 读写正常，但 Take 失败
type brokenTakeCache struct {
	cache.Provider
}

func (brokenTakeCache) Take(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func TestOAuthService_StateConsumeFailure(t *testing.T) {
	f := newFixture(t)
	p := &fakeProvider{identities: map[string]*Identity{
		"code": {Subject: "g-3", Email: "someone@gmail.com", EmailVerified: true},
	}}
	c := gocache.NewGoCache(time.Minute, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	svc := NewOAuthService(p, brokenTakeCache{Provider: c}, f.accounts, accounts.NewSocialRepository(f.db), f.login)

	state := beginState(t, svc)
	_, err := svc.Complete(context.Background(), state, "code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOAuthState)

	_, err = f.accounts.GetUserByEmail("someone@gmail.com")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func TestOAuthService_Pipeline(t *testing.T) {
	f := newFixture(t)
	existing := f.createUser(t, "carol", "carol@example.com", "correct-horse-battery")

	p := &fakeProvider{identities: map[string]*Identity{
		"carol":      {Subject: "g-carol", Email: "CAROL@example.com", EmailVerified: true},
		"unverified": {Subject: "g-evil", Email: "carol@example.com", EmailVerified: false},
	}}
	svc := newOAuthService(t, f, p)
	ctx := context.Background()

	result, err := svc.Complete(ctx, beginState(t, svc), "carol")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.User.ID)

	again, err := svc.Complete(ctx, beginState(t, svc), "carol")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.User.ID)

	other, err := svc.Complete(ctx, beginState(t, svc), "unverified")
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, other.User.ID)
	assert.Equal(t, "carol1", other.User.Username)

	_, err = svc.Complete(ctx, beginState(t, svc), "nope")
	assert.ErrorIs(t, err, ErrOAuthFailed)
}

func TestDecodeIdentity(t *testing.T) {
	id, err := DecodeIdentity(map[string]interface{}{
		"sub":            "12345",
		"email":          "a@b.c",
		"email_verified": "true",
		"name":           "A B",
		"iss":            "https://accounts.google.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", id.Subject)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "A B", id.Name)

	_, err = DecodeIdentity(map[string]interface{}{"email": "a@b.c"})
	assert.Error(t, err)
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "john.doe", usernameFromEmail("john.doe@gmail.com"))
	assert.Equal(t, "userjo", usernameFromEmail("jo@x.y"))
	assert.Equal(t, "userbd", usernameFromEmail("b d@x.y"))
}
