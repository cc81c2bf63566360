package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leadcrm/internal/apiclient"
	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/events"
	"github.com/spec-kit/leadcrm/internal/persistence"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	loginFn    func(ctx context.Context, creds domain.Credentials) (*apiclient.LoginResult, error)
	registerFn func(ctx context.Context, data domain.RegisterData) (*domain.User, error)
	meFn       func(ctx context.Context) (*domain.User, error)
	updateFn   func(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error)
	changeErr  error
	logoutErr  error
	connectURL string
	connectErr error
	unlinkErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Login(ctx context.Context, creds domain.Credentials) (*apiclient.LoginResult, error) {
	f.record("login")
	return f.loginFn(ctx, creds)
}

func (f *fakeAPI) Register(ctx context.Context, data domain.RegisterData) (*domain.User, error) {
	f.record("register")
	return f.registerFn(ctx, data)
}

func (f *fakeAPI) Logout(context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeAPI) Me(ctx context.Context) (*domain.User, error) {
	f.record("me")
	return f.meFn(ctx)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	f.record("update")
	return f.updateFn(ctx, update)
}

func (f *fakeAPI) ChangePassword(context.Context, domain.PasswordChange) error {
	f.record("change-password")
	return f.changeErr
}

func (f *fakeAPI) GoogleConnectURL(context.Context) (string, error) {
	f.record("google-connect")
	return f.connectURL, f.connectErr
}

func (f *fakeAPI) GoogleDisconnect(context.Context) error {
	f.record("google-disconnect")
	return f.unlinkErr
}

type failingStore struct {
	*persistence.MemoryStore
	failKey string
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if key == s.failKey {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func makeToken(t *testing.T, userID string, role domain.Role, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		UserID:           userID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func agent(id string) *domain.User {
	return &domain.User{ID: id, Email: id + "@crm.test", Name: "Agent " + id, Role: domain.RoleAgent, IsActive: true}
}

func loginReturning(t *testing.T, user *domain.User) func(context.Context, domain.Credentials) (*apiclient.LoginResult, error) {
	tok := makeToken(t, user.ID, user.Role, time.Now().Add(time.Hour))
	return func(context.Context, domain.Credentials) (*apiclient.LoginResult, error) {
		return &apiclient.LoginResult{Token: tok, User: user.Clone()}, nil
	}
}

func assertPurged(t *testing.T, store persistence.KeyValueStore) {
	t.Helper()
	for _, key := range []string{persistence.KeyUserToken, persistence.KeyUserData} {
		_, ok, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok, "%s should be purged", key)
	}
}

func storedUser(t *testing.T, store persistence.KeyValueStore) *domain.User {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), persistence.KeyUserData)
	require.NoError(t, err)
	require.True(t, ok)
	var user domain.User
	require.NoError(t, json.Unmarshal([]byte(raw), &user))
	return &user
}

func TestNew_StartsUnknownAndLoading(t *testing.T) {
	m := New(newFakeAPI(), persistence.NewMemoryStore())
	s := m.Snapshot()
	assert.Equal(t, PhaseUnknown, s.Phase)
	assert.True(t, s.IsLoading)
	assert.False(t, s.IsAuthenticated)
}

func TestInitialize_NoToken(t *testing.T) {
	api := newFakeAPI()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), persistence.KeyUserData, `{"id":"stray"}`))

	s := New(api, store).Initialize(context.Background())

	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assert.False(t, s.IsLoading)
	assert.Nil(t, s.User)
	assert.Zero(t, api.count("me"))
	assertPurged(t, store)
}

func TestInitialize_ExpiredTokenPurges(t *testing.T) {
	api := newFakeAPI()
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, makeToken(t, "u1", domain.RoleAgent, time.Now().Add(-time.Minute))))
	require.NoError(t, store.Set(ctx, persistence.KeyUserData, `{"id":"u1"}`))

	s := New(api, store).Initialize(ctx)

	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.False(t, s.IsLoading)
	assert.Zero(t, api.count("me"), "expired tokens are rejected locally")
	assertPurged(t, store)
}

func TestInitialize_MalformedTokenPurges(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, "not-a-token"))

	s := New(newFakeAPI(), store).Initialize(ctx)

	assert.Equal(t, PhaseUnauthenticated, s.Phase)
	assertPurged(t, store)
}

func TestInitialize_ValidTokenFetchesUser(t *testing.T) {
	api := newFakeAPI()
	user := agent("u1")
	api.meFn = func(context.Context) (*domain.User, error) { return user.Clone(), nil }

	store := persistence.NewMemoryStore()
	ctx := context.Background()
	tok := makeToken(t, "u1", domain.RoleAgent, time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, tok))

	m := New(api, store)
	s := m.Initialize(ctx)

	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, PhaseAuthenticated, s.Phase)
	assert.Equal(t, user, s.User)
	assert.Equal(t, user, storedUser(t, store))

	got, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestInitialize_FailedFetchForcesLogout(t *testing.T) {
	api := newFakeAPI()
	api.meFn = func(context.Context) (*domain.User, error) {
		return nil, apperrors.NewNetworkError("Failed to load user: unable to reach server", errors.New("dial tcp"))
	}
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, makeToken(t, "u1", domain.RoleAgent, time.Now().Add(time.Hour))))
	require.NoError(t, store.Set(ctx, persistence.KeyUserData, `{"id":"u1"}`))

	s := New(api, store).Initialize(ctx)

	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.False(t, s.IsLoading)
	assertPurged(t, store)
}

func TestInitialize_TokenExpiringExactlyNowIsValid(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	api := newFakeAPI()
	api.meFn = func(context.Context) (*domain.User, error) { return agent("u1"), nil }
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), persistence.KeyUserToken, makeToken(t, "u1", domain.RoleAgent, now)))

	s := New(api, store, WithClock(func() time.Time { return now })).Initialize(context.Background())
	assert.True(t, s.IsAuthenticated)
}

func TestInitialize_IgnoresTokenHeader(t *testing.T) {
	api := newFakeAPI()
	api.meFn = func(context.Context) (*domain.User, error) { return agent("u1"), nil }
	store := persistence.NewMemoryStore()
	ctx := context.Background()

	payload, err := json.Marshal(map[string]any{"userId": "u1", "role": "agent", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	tok := enc.EncodeToString([]byte(`{"typ":"JWT"}`)) + "." + enc.EncodeToString(payload) + ".sig"
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, tok))

	m := New(api, store)
	s := m.Initialize(ctx)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, 1, api.count("me"))

	got, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestLogin_ReplacesUserExactly(t *testing.T) {
	api := newFakeAPI()
	store := persistence.NewMemoryStore()
	m := New(api, store)
	ctx := context.Background()

	first := agent("u1")
	first.Phone = "555-0100"
	first.Department = "Sales"
	api.loginFn = loginReturning(t, first)
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	second := &domain.User{ID: "u2", Email: "u2@crm.test", Name: "Admin", Role: domain.RoleAdmin}
	api.loginFn = loginReturning(t, second)
	got, err := m.Login(ctx, "u2@crm.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	s := m.Snapshot()
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, second, s.User, "no fields carried over from the previous user")
	assert.Empty(t, s.LastError)
	assert.False(t, s.IsLoading)
	assert.Equal(t, second, storedUser(t, store))

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, auth.RoleFromToken(tok))
}

func TestLogin_FailureRecordsAndReturnsError(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = func(context.Context, domain.Credentials) (*apiclient.LoginResult, error) {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	store := persistence.NewMemoryStore()
	m := New(api, store)

	_, err := m.Login(context.Background(), "a@b.co", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	s := m.Snapshot()
	assert.Equal(t, "Invalid credentials", s.LastError)
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.False(t, s.IsLoading)
	assertPurged(t, store)
}

func TestLogin_PersistFailurePurgesBoth(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = loginReturning(t, agent("u1"))
	store := &failingStore{MemoryStore: persistence.NewMemoryStore(), failKey: persistence.KeyUserToken}
	m := New(api, store)

	_, err := m.Login(context.Background(), "u1@crm.test", "secret")
	require.Error(t, err)

	s := m.Snapshot()
	assert.False(t, s.IsAuthenticated)
	assert.NotEmpty(t, s.LastError)
	assertPurged(t, store)
}

func TestLogout_AlwaysClearsLocally(t *testing.T) {
	for _, remoteErr := range []error{nil, apperrors.NewNetworkError("Logout failed", errors.New("timeout"))} {
		t.Run(fmt.Sprintf("remote error %v", remoteErr != nil), func(t *testing.T) {
			api := newFakeAPI()
			api.loginFn = loginReturning(t, agent("u1"))
			api.logoutErr = remoteErr
			store := persistence.NewMemoryStore()
			m := New(api, store)
			ctx := context.Background()

			_, err := m.Login(ctx, "u1@crm.test", "secret")
			require.NoError(t, err)

			m.Logout(ctx)

			s := m.Snapshot()
			assert.False(t, s.IsAuthenticated)
			assert.Nil(t, s.User)
			assert.False(t, s.IsLoading)
			assert.Equal(t, PhaseUnauthenticated, s.Phase)
			assert.Equal(t, 1, api.count("logout"))
			assertPurged(t, store)
		})
	}
}

func TestUpdateProfile_ReplacesWithServerCopy(t *testing.T) {
	api := newFakeAPI()
	original := agent("u1")
	original.Phone = "555-0100"
	original.Department = "Sales"
	api.loginFn = loginReturning(t, original)

	serverCopy := agent("u1")
	serverCopy.Name = "Renamed"
	api.updateFn = func(_ context.Context, update domain.ProfileUpdate) (*domain.User, error) {
		require.NotNil(t, update.Name)
		return serverCopy.Clone(), nil
	}

	store := persistence.NewMemoryStore()
	m := New(api, store)
	ctx := context.Background()
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	name := "Renamed"
	got, err := m.UpdateProfile(ctx, domain.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, serverCopy, got)

	s := m.Snapshot()
	assert.Equal(t, serverCopy, s.User)
	assert.Empty(t, s.User.Phone, "old fields are not merged back in")
	assert.Equal(t, serverCopy, storedUser(t, store))
}

func TestUpdateProfile_FailureKeepsUser(t *testing.T) {
	api := newFakeAPI()
	user := agent("u1")
	api.loginFn = loginReturning(t, user)
	api.updateFn = func(context.Context, domain.ProfileUpdate) (*domain.User, error) {
		return nil, apperrors.NewValidationError("phone is invalid", nil)
	}
	m := New(api, persistence.NewMemoryStore())
	ctx := context.Background()
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	phone := "x"
	_, err = m.UpdateProfile(ctx, domain.ProfileUpdate{Phone: &phone})
	require.Error(t, err)

	s := m.Snapshot()
	assert.Equal(t, "phone is invalid", s.LastError)
	assert.Equal(t, user, s.User)
	assert.True(t, s.IsAuthenticated)
}

func TestUpdateProfile_EmptyUpdateRejected(t *testing.T) {
	api := newFakeAPI()
	m := New(api, persistence.NewMemoryStore())
	_, err := m.UpdateProfile(context.Background(), domain.ProfileUpdate{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Zero(t, api.count("update"))
}

func TestConcurrentUpdates_LastCommitWinsWholesale(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = loginReturning(t, agent("u1"))
	api.updateFn = func(_ context.Context, update domain.ProfileUpdate) (*domain.User, error) {
		u := agent("u1")
		u.Name = *update.Name
		u.Department = "dept-" + *update.Name
		return u, nil
	}
	store := persistence.NewMemoryStore()
	m := New(api, store)
	ctx := context.Background()
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("n%d", i)
			_, _ = m.UpdateProfile(ctx, domain.ProfileUpdate{Name: &name})
		}(i)
	}
	wg.Wait()

	s := m.Snapshot()
	require.NotNil(t, s.User)
	assert.Equal(t, "dept-"+s.User.Name, s.User.Department, "user is one whole server response")
	assert.Equal(t, s.User, storedUser(t, store))
	assert.False(t, s.IsLoading)
}

func TestLoginRacingLogout_EndsUnauthenticated(t *testing.T) {
	api := newFakeAPI()
	user := agent("u1")
	tok := makeToken(t, user.ID, user.Role, time.Now().Add(time.Hour))
	entered := make(chan struct{})
	release := make(chan struct{})
	api.loginFn = func(context.Context, domain.Credentials) (*apiclient.LoginResult, error) {
		close(entered)
		<-release
		return &apiclient.LoginResult{Token: tok, User: user.Clone()}, nil
	}

	store := persistence.NewMemoryStore()
	m := New(api, store)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Login(ctx, "u1@crm.test", "secret")
		errCh <- err
	}()

	<-entered
	m.Logout(ctx)
	close(release)

	err := <-errCh
	assert.ErrorIs(t, err, ErrSuperseded)

	s := m.Snapshot()
	assert.False(t, s.IsAuthenticated)
	assert.Nil(t, s.User)
	assert.False(t, s.IsLoading)
	assertPurged(t, store)
}

func TestRegister_DoesNotAuthenticate(t *testing.T) {
	api := newFakeAPI()
	api.registerFn = func(_ context.Context, data domain.RegisterData) (*domain.User, error) {
		return &domain.User{ID: "new", Email: data.Email, Name: data.Name, Role: data.Role}, nil
	}
	store := persistence.NewMemoryStore()
	m := New(api, store)

	user, err := m.Register(context.Background(), domain.RegisterData{
		Name: "New", Email: "new@crm.test", Password: "secret1", ConfirmPassword: "secret1", Role: domain.RoleAgent,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", user.ID)

	s := m.Snapshot()
	assert.False(t, s.IsAuthenticated)
	assert.False(t, s.IsLoading)
	assertPurged(t, store)
}

func TestRegister_ValidatesLocally(t *testing.T) {
	api := newFakeAPI()
	m := New(api, persistence.NewMemoryStore())

	_, err := m.Register(context.Background(), domain.RegisterData{
		Name: "New", Email: "new@crm.test", Password: "secret1", ConfirmPassword: "secret2", Role: domain.RoleAgent,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Equal(t, "passwords do not match", m.Snapshot().LastError)
	assert.Zero(t, api.count("register"))
}

func TestChangePassword(t *testing.T) {
	cases := []struct {
		name     string
		change   domain.PasswordChange
		apiErr   error
		wantCode string
		apiCalls int
	}{
		{"too short", domain.PasswordChange{CurrentPassword: "old", NewPassword: "abc", ConfirmPassword: "abc"}, nil, apperrors.CodeValidation, 0},
		{"mismatch", domain.PasswordChange{CurrentPassword: "old", NewPassword: "abcdef", ConfirmPassword: "abcdeg"}, nil, apperrors.CodeValidation, 0},
		{"server rejects", domain.PasswordChange{CurrentPassword: "old", NewPassword: "abcdef", ConfirmPassword: "abcdef"}, apperrors.NewUnauthorized("Current password is incorrect"), apperrors.CodeUnauthorized, 1},
		{"ok", domain.PasswordChange{CurrentPassword: "old", NewPassword: "abcdef", ConfirmPassword: "abcdef"}, nil, "", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.changeErr = tc.apiErr
			m := New(api, persistence.NewMemoryStore())

			err := m.ChangePassword(context.Background(), tc.change)
			if tc.wantCode == "" {
				require.NoError(t, err)
				assert.Empty(t, m.Snapshot().LastError)
			} else {
				assert.True(t, apperrors.IsCode(err, tc.wantCode), "got %v", err)
				assert.NotEmpty(t, m.Snapshot().LastError)
			}
			assert.Equal(t, tc.apiCalls, api.count("change-password"))
			assert.False(t, m.Snapshot().IsLoading)
		})
	}
}

func TestRefreshUser(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces user", func(t *testing.T) {
		api := newFakeAPI()
		api.loginFn = loginReturning(t, agent("u1"))
		fresh := agent("u1")
		fresh.GoogleAccount = &domain.GoogleAccount{Email: "u1@gmail.com", IsConnected: true}
		api.meFn = func(context.Context) (*domain.User, error) { return fresh.Clone(), nil }
		m := New(api, persistence.NewMemoryStore())
		_, err := m.Login(ctx, "u1@crm.test", "secret")
		require.NoError(t, err)

		m.RefreshUser(ctx)
		assert.Equal(t, fresh, m.Snapshot().User)
		assert.True(t, m.Snapshot().User.GoogleConnected())
	})

	t.Run("failure keeps session", func(t *testing.T) {
		api := newFakeAPI()
		api.loginFn = loginReturning(t, agent("u1"))
		api.meFn = func(context.Context) (*domain.User, error) {
			return nil, apperrors.NewNetworkError("Failed to load user: unable to reach server", errors.New("reset"))
		}
		m := New(api, persistence.NewMemoryStore())
		_, err := m.Login(ctx, "u1@crm.test", "secret")
		require.NoError(t, err)

		m.RefreshUser(ctx)
		s := m.Snapshot()
		assert.True(t, s.IsAuthenticated)
		assert.Equal(t, "Failed to load user: unable to reach server", s.LastError)
	})

	t.Run("expired token invalidates", func(t *testing.T) {
		now := time.Now()
		api := newFakeAPI()
		api.loginFn = loginReturning(t, agent("u1"))
		api.meFn = func(context.Context) (*domain.User, error) { return nil, apperrors.NewUnauthorized("expired") }
		store := persistence.NewMemoryStore()
		m := New(api, store, WithClock(func() time.Time { return now }))
		_, err := m.Login(ctx, "u1@crm.test", "secret")
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)
		m.RefreshUser(ctx)
		assert.False(t, m.Snapshot().IsAuthenticated)
		assertPurged(t, store)
	})
}

func TestHandleUnauthorized(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = loginReturning(t, agent("u1"))
	store := persistence.NewMemoryStore()
	m := New(api, store)
	ctx := context.Background()
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	m.HandleUnauthorized(ctx, "some-older-token")
	assert.True(t, m.Snapshot().IsAuthenticated, "401 for a replaced token is ignored")

	tok, err := m.Token(ctx)
	require.NoError(t, err)
	m.HandleUnauthorized(ctx, tok)

	s := m.Snapshot()
	assert.False(t, s.IsAuthenticated)
	assert.NotEmpty(t, s.LastError)
	assertPurged(t, store)
}

func TestGoogleConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.loginFn = loginReturning(t, agent("u1"))
	api.meFn = func(context.Context) (*domain.User, error) { return agent("u1"), nil }
	api.connectURL = "https://accounts.google.com/o/oauth2/auth?state=x"
	m := New(api, persistence.NewMemoryStore())
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)

	url, err := m.ConnectGoogle(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.connectURL, url)
	assert.Equal(t, 1, api.count("me"), "connect refreshes the user")

	require.NoError(t, m.DisconnectGoogle(ctx))
	assert.Equal(t, 2, api.count("me"))

	api.unlinkErr = apperrors.NewNetworkError("Google disconnection failed: unable to reach server", errors.New("x"))
	err = m.DisconnectGoogle(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, api.count("me"), "no refresh after failure")
	assert.Equal(t, "Google disconnection failed: unable to reach server", m.Snapshot().LastError)
}

func TestToken_ExpiredIsEmpty(t *testing.T) {
	store := persistence.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, persistence.KeyUserToken, makeToken(t, "u1", domain.RoleAgent, time.Now().Add(-time.Second))))

	tok, err := New(newFakeAPI(), store).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSubscribe_LoadingAlwaysCleared(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = func(context.Context, domain.Credentials) (*apiclient.LoginResult, error) {
		return nil, apperrors.NewUnauthorized("Invalid credentials")
	}
	api.logoutErr = errors.New("offline")
	m := New(api, persistence.NewMemoryStore())

	var mu sync.Mutex
	var states []State
	unsubscribe := m.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})
	defer unsubscribe()

	ctx := context.Background()
	m.Initialize(ctx)
	_, _ = m.Login(ctx, "a@b.co", "bad")
	m.Logout(ctx)
	_ = m.ChangePassword(ctx, domain.PasswordChange{})

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	sawLoading := false
	for _, s := range states {
		if s.IsLoading {
			sawLoading = true
		}
		assert.Equal(t, s.IsAuthenticated, s.User != nil, "authenticated iff user present")
	}
	assert.True(t, sawLoading)
	assert.False(t, states[len(states)-1].IsLoading)
	assert.False(t, m.Snapshot().IsLoading)
}

func TestDispose_StopsNotifications(t *testing.T) {
	m := New(newFakeAPI(), persistence.NewMemoryStore())
	calls := 0
	m.Subscribe(func(State) { calls++ })
	require.Equal(t, 1, calls)

	m.Dispose()
	m.Initialize(context.Background())
	assert.Equal(t, 1, calls)
}

func TestEventsPublished(t *testing.T) {
	api := newFakeAPI()
	api.loginFn = loginReturning(t, agent("u1"))
	d := events.NewInMemoryDispatcher()

	var mu sync.Mutex
	var seen []events.EventType
	for _, et := range []events.EventType{events.EventLoggedIn, events.EventLoggedOut} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e.Type)
			return nil
		})
	}

	m := New(api, persistence.NewMemoryStore(), WithDispatcher(d))
	ctx := context.Background()
	_, err := m.Login(ctx, "u1@crm.test", "secret")
	require.NoError(t, err)
	m.Logout(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{events.EventLoggedIn, events.EventLoggedOut}, seen)
}
