// Package session owns the authentication lifecycle: who is logged in, the
// persisted bearer token and the cached user record.
//
// Manager is the only writer of the userToken and userData keys. Both keys
// are written together and purged together; a cached user never outlives
// its token.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/apiclient"
	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/events"
	"github.com/spec-kit/leadcrm/internal/persistence"
	"github.com/spec-kit/leadcrm/internal/validation"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// ErrSuperseded is returned when a login finished after a later login,
// logout or invalidation; its result is discarded.
var ErrSuperseded = errors.New("session changed while the request was in flight")

// API is the slice of the remote API the session depends on.
type API interface {
	Login(ctx context.Context, creds domain.Credentials) (*apiclient.LoginResult, error)
	Register(ctx context.Context, data domain.RegisterData) (*domain.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, change domain.PasswordChange) error
	GoogleConnectURL(ctx context.Context) (string, error)
	GoogleDisconnect(ctx context.Context) error
}

// Manager is the single source of truth for the current session.
type Manager struct {
	api        API
	store      persistence.KeyValueStore
	logger     *zap.Logger
	dispatcher events.Dispatcher
	now        func() time.Time

	// commitMu serializes every change to storage and to the session
	// identity. It is never held across a network call.
	commitMu sync.Mutex
	epoch    uint64

	mu       sync.Mutex
	state    State
	inflight int
	subs     map[int]func(State)
	nextSub  int
	disposed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDispatcher publishes session events on d.
func WithDispatcher(d events.Dispatcher) Option {
	return func(m *Manager) {
		if d != nil {
			m.dispatcher = d
		}
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Manager in the unknown phase. Call Initialize before use.
func New(api API, store persistence.KeyValueStore, opts ...Option) *Manager {
	m := &Manager{
		api:        api,
		store:      store,
		logger:     zap.NewNop(),
		dispatcher: events.NewInMemoryDispatcher(),
		now:        time.Now,
		state:      initialState(),
		subs:       make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the dispatcher session events are published on.
func (m *Manager) Events() events.Dispatcher {
	return m.dispatcher
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *domain.User {
	return m.Snapshot().User
}

// Subscribe calls fn with the current state and again after every change.
// fn runs synchronously and must not call methods that change the session.
// The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	snap := m.state.clone()
	m.mu.Unlock()

	fn(snap)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Dispose drops every subscriber. The Manager stops publishing state.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	m.subs = make(map[int]func(State))
}

// Initialize recovers a persisted session. It always resolves: any failure
// ends unauthenticated with storage purged.
func (m *Manager) Initialize(ctx context.Context) State {
	epoch := m.bump()
	m.begin()
	defer m.end()

	user, reason := m.recover(ctx)

	m.commitMu.Lock()
	if m.epoch != epoch {
		m.commitMu.Unlock()
		return m.Snapshot()
	}
	if user == nil {
		m.purge(ctx)
		m.setUnauthenticated("")
		m.commitMu.Unlock()
		m.logger.Info("no session to resume", zap.String("reason", reason))
		m.publish(ctx, events.EventSessionInitialized, "", events.SessionPayload{Reason: reason})
		return m.Snapshot()
	}
	if err := m.writeUser(ctx, user); err != nil {
		m.logger.Warn("cache user failed", zap.Error(err))
	}
	m.setAuthenticated(user)
	m.commitMu.Unlock()

	m.publish(ctx, events.EventSessionInitialized, user.ID, events.SessionPayload{UserID: user.ID, Role: user.Role})
	return m.Snapshot()
}

func (m *Manager) recover(ctx context.Context) (*domain.User, string) {
	token, ok, err := m.store.Get(ctx, persistence.KeyUserToken)
	if err != nil {
		m.logger.Warn("read stored token failed", zap.Error(err))
		return nil, "storage unreadable"
	}
	if !ok || token == "" {
		return nil, "no stored token"
	}
	if err := auth.CheckToken(token, m.now()); err != nil {
		return nil, apperrors.Message(err)
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.logger.Warn("fetch current user failed", zap.Error(err))
		return nil, "current user unavailable"
	}
	if user == nil {
		return nil, "current user unavailable"
	}
	return user, ""
}

// Login authenticates with the API and persists the session. On failure the
// session ends unauthenticated, LastError is set and the error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	epoch := m.bump()
	m.begin()
	defer m.end()

	res, err := m.api.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		m.commitMu.Lock()
		if m.epoch == epoch {
			m.purge(ctx)
			m.setUnauthenticated(apperrors.Message(err))
		} else {
			m.setError(apperrors.Message(err))
		}
		m.commitMu.Unlock()
		return nil, err
	}

	m.commitMu.Lock()
	if m.epoch != epoch {
		m.commitMu.Unlock()
		m.logger.Info("discarding superseded login", zap.String("user_id", res.User.ID))
		return nil, ErrSuperseded
	}
	if err := m.persist(ctx, res.Token, res.User); err != nil {
		m.purge(ctx)
		wrapped := apperrors.NewInternalError(fmt.Errorf("persist session: %w", err))
		m.setUnauthenticated("Login failed: unable to save session")
		m.commitMu.Unlock()
		return nil, wrapped
	}
	m.setAuthenticated(res.User)
	m.commitMu.Unlock()

	m.publish(ctx, events.EventLoggedIn, res.User.ID, events.SessionPayload{UserID: res.User.ID, Role: res.User.Role})
	return res.User.Clone(), nil
}

// Register creates an account. It never authenticates the caller.
func (m *Manager) Register(ctx context.Context, data domain.RegisterData) (*domain.User, error) {
	m.begin()
	defer m.end()

	if err := validation.Struct(data); err != nil {
		m.setError(apperrors.Message(err))
		return nil, err
	}
	user, err := m.api.Register(ctx, data)
	if err != nil {
		m.setError(apperrors.Message(err))
		return nil, err
	}
	m.setError("")
	return user, nil
}

// Logout notifies the API best-effort, then always purges the local session.
func (m *Manager) Logout(ctx context.Context) {
	epoch := m.bump()
	m.begin()
	defer m.end()

	userID := ""
	if u := m.CurrentUser(); u != nil {
		userID = u.ID
	}

	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn("remote logout failed", zap.Error(err))
	}

	m.commitMu.Lock()
	if m.epoch != epoch && m.Snapshot().IsAuthenticated {
		// a later login already replaced this session
		m.commitMu.Unlock()
		return
	}
	m.purge(ctx)
	m.setUnauthenticated("")
	m.commitMu.Unlock()

	m.publish(ctx, events.EventLoggedOut, userID, events.SessionPayload{UserID: userID})
}

// Invalidate purges the session without contacting the API.
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	m.commitMu.Lock()
	m.epoch++
	userID := ""
	if u := m.CurrentUser(); u != nil {
		userID = u.ID
	}
	m.purge(ctx)
	m.setUnauthenticated(reason)
	m.commitMu.Unlock()

	m.logger.Info("session invalidated", zap.String("reason", reason))
	m.publish(ctx, events.EventSessionInvalidated, userID, events.SessionPayload{UserID: userID, Reason: reason})
}

// HandleUnauthorized invalidates the session when the API rejects the
// stored token. A 401 for a token that has since been replaced is ignored.
func (m *Manager) HandleUnauthorized(ctx context.Context, token string) {
	stored, ok, err := m.store.Get(ctx, persistence.KeyUserToken)
	if err != nil || !ok || stored != token {
		return
	}
	m.Invalidate(ctx, "session expired, please log in again")
}

// UpdateProfile sends update and replaces the user with the server's copy.
func (m *Manager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	epoch := m.currentEpoch()
	m.begin()
	defer m.end()

	if update.Empty() {
		err := apperrors.NewValidationError("nothing to update", nil)
		m.setError(apperrors.Message(err))
		return nil, err
	}

	user, err := m.api.UpdateProfile(ctx, update)
	if err != nil {
		m.setError(apperrors.Message(err))
		return nil, err
	}

	if !m.commitUser(ctx, epoch, user) {
		return nil, ErrSuperseded
	}
	m.publish(ctx, events.EventProfileUpdated, user.ID, events.SessionPayload{UserID: user.ID, Role: user.Role})
	return user.Clone(), nil
}

// ChangePassword validates change locally, then delegates to the API.
func (m *Manager) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	m.begin()
	defer m.end()

	if err := validation.Struct(change); err != nil {
		m.setError(apperrors.Message(err))
		return err
	}
	if err := m.api.ChangePassword(ctx, change); err != nil {
		m.setError(apperrors.Message(err))
		return err
	}
	m.setError("")
	return nil
}

// RefreshUser re-fetches the current user. Failures are recorded in
// LastError; the session is kept unless its token is gone or expired.
func (m *Manager) RefreshUser(ctx context.Context) {
	epoch := m.currentEpoch()
	m.begin()
	defer m.end()

	user, err := m.api.Me(ctx)
	if err != nil {
		m.logger.Warn("refresh user failed", zap.Error(err))
		m.setError(apperrors.Message(err))
		if tok, _ := m.Token(ctx); tok == "" && m.Snapshot().IsAuthenticated {
			m.Invalidate(ctx, "session expired, please log in again")
		}
		return
	}

	if m.commitUser(ctx, epoch, user) {
		m.publish(ctx, events.EventUserRefreshed, user.ID, events.SessionPayload{UserID: user.ID, Role: user.Role})
	}
}

// ConnectGoogle returns the Google authorization URL, then refreshes the user.
func (m *Manager) ConnectGoogle(ctx context.Context) (string, error) {
	authURL, err := m.googleStep(ctx, m.api.GoogleConnectURL)
	if err != nil {
		return "", err
	}
	m.RefreshUser(ctx)
	return authURL, nil
}

// DisconnectGoogle unlinks the Google account, then refreshes the user.
func (m *Manager) DisconnectGoogle(ctx context.Context) error {
	_, err := m.googleStep(ctx, func(ctx context.Context) (string, error) {
		return "", m.api.GoogleDisconnect(ctx)
	})
	if err != nil {
		return err
	}
	m.RefreshUser(ctx)
	return nil
}

func (m *Manager) googleStep(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	m.begin()
	defer m.end()

	out, err := fn(ctx)
	if err != nil {
		m.setError(apperrors.Message(err))
		return "", err
	}
	return out, nil
}

// Token returns the stored bearer token, or "" when none is usable.
// It implements apiclient.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	token, ok, err := m.store.Get(ctx, persistence.KeyUserToken)
	if err != nil {
		return "", err
	}
	if !ok || auth.IsExpired(token, m.now()) {
		return "", nil
	}
	return token, nil
}

// commitUser replaces the user if the session is still the one epoch saw.
func (m *Manager) commitUser(ctx context.Context, epoch uint64, user *domain.User) bool {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if m.epoch != epoch || !m.Snapshot().IsAuthenticated {
		m.logger.Info("discarding user update for a replaced session")
		return false
	}
	if err := m.writeUser(ctx, user); err != nil {
		m.logger.Warn("cache user failed", zap.Error(err))
	}
	m.setAuthenticated(user)
	return true
}

// persist writes the user, then the token. Callers purge on failure.
func (m *Manager) persist(ctx context.Context, token string, user *domain.User) error {
	if err := m.writeUser(ctx, user); err != nil {
		return err
	}
	return m.store.Set(ctx, persistence.KeyUserToken, token)
}

func (m *Manager) writeUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, persistence.KeyUserData, string(data))
}

func (m *Manager) purge(ctx context.Context) {
	if err := m.store.Delete(ctx, persistence.KeyUserToken, persistence.KeyUserData); err != nil {
		m.logger.Warn("purge session storage failed", zap.Error(err))
	}
}

func (m *Manager) bump() uint64 {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	m.epoch++
	return m.epoch
}

func (m *Manager) currentEpoch() uint64 {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	return m.epoch
}

func (m *Manager) begin() {
	m.update(func(s *State) {
		m.inflight++
		s.IsLoading = true
	})
}

func (m *Manager) end() {
	m.update(func(s *State) {
		m.inflight--
		s.IsLoading = m.inflight > 0
	})
}

func (m *Manager) setAuthenticated(user *domain.User) {
	m.update(func(s *State) {
		s.User = user.Clone()
		s.IsAuthenticated = true
		s.Phase = PhaseAuthenticated
		s.LastError = ""
	})
}

func (m *Manager) setUnauthenticated(lastError string) {
	m.update(func(s *State) {
		s.User = nil
		s.IsAuthenticated = false
		s.Phase = PhaseUnauthenticated
		s.LastError = lastError
	})
}

func (m *Manager) setError(msg string) {
	m.update(func(s *State) { s.LastError = msg })
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snap := m.state.clone()
	subs := make([]func(State), 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub(snap.clone())
	}
}

func (m *Manager) publish(ctx context.Context, eventType events.EventType, subjectID string, payload events.SessionPayload) {
	if err := m.dispatcher.Publish(ctx, events.New(eventType, subjectID, subjectID, payload)); err != nil {
		m.logger.Warn("session event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
