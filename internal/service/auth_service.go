package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/repository"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// AuthService coordinates login, registration and profile flows for the sandbox API.
type AuthService struct {
	users      repository.UserRepository
	revoked    *RevocationList
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	hasher     auth.Hasher
	google     googleConfig
	now        func() time.Time

	mu          sync.Mutex
	oauthStates map[string]string
}

type googleConfig struct {
	authURL     string
	clientID    string
	redirectURI string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations *RevocationList
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.SandboxConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		revoked:    deps.Revocations,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTLMinutes),
		logger:     logger,
		hasher:     auth.NewHasher(cfg.BcryptCost),
		google: googleConfig{
			authURL:     cfg.GoogleAuthURL,
			clientID:    cfg.GoogleClientID,
			redirectURI: strings.TrimRight(cfg.PublicURL, "/") + "/api/auth/google/callback",
		},
		now:         time.Now,
		oauthStates: make(map[string]string),
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login authenticates a user and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	rec, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperrors.NewUnauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	if !s.hasher.Matches(rec.PasswordHash, password) {
		return nil, "", apperrors.NewUnauthorized("Invalid email or password")
	}
	if !rec.IsActive {
		return nil, "", apperrors.NewForbidden("Account is disabled")
	}
	if s.hasher.NeedsRehash(rec.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			rec.PasswordHash = hash
		}
	}

	now := s.now().UTC()
	rec.LastLogin = &now
	rec.UpdatedAt = now
	if err := s.users.Update(ctx, rec); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}

	token, _, err := s.tokenMgr.GenerateToken(&rec.User)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	s.logger.Info("user logged in", zap.String("user_id", rec.ID), zap.String("role", string(rec.Role)))
	return rec.User.Clone(), token, nil
}

// Register creates an active account. It does not log the caller in.
func (s *AuthService) Register(ctx context.Context, data domain.RegisterData) (*domain.User, error) {
	hash, err := s.hashPassword(data.Password, "password")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	prefs := domain.DefaultPreferences()
	rec := &repository.UserRecord{
		User: domain.User{
			ID:          uuid.NewString(),
			Email:       strings.ToLower(strings.TrimSpace(data.Email)),
			Name:        strings.TrimSpace(data.Name),
			Role:        data.Role,
			Phone:       data.Phone,
			Department:  data.Department,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
			Preferences: &prefs,
		},
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("User with this email already exists", map[string]any{"email": rec.Email})
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", rec.ID), zap.String("role", string(rec.Role)))
	return rec.User.Clone(), nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Me loads the caller's user record.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.User.Clone(), nil
}

// UpdateProfile applies a partial update. Email and role are not editable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.Name != nil {
		rec.Name = strings.TrimSpace(*update.Name)
	}
	if update.Phone != nil {
		rec.Phone = *update.Phone
	}
	if update.Department != nil {
		rec.Department = *update.Department
	}
	if update.Avatar != nil {
		rec.Avatar = *update.Avatar
	}
	if update.Preferences != nil {
		prefs := *update.Preferences
		rec.Preferences = &prefs
	}
	rec.Normalize()
	rec.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, rec); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rec.User.Clone(), nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Matches(rec.PasswordHash, currentPassword) {
		return apperrors.NewValidationError("Current password is incorrect", map[string]any{"currentPassword": "incorrect"})
	}
	hash, err := s.hashPassword(newPassword, "newPassword")
	if err != nil {
		return err
	}
	rec.PasswordHash = hash
	rec.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, rec); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// GoogleConnectURL returns the consent URL for linking a Google account.
// The state parameter identifies the user when the callback arrives.
func (s *AuthService) GoogleConnectURL(ctx context.Context, userID string) (string, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return "", err
	}
	state := uuid.NewString()
	s.mu.Lock()
	s.oauthStates[state] = userID
	s.mu.Unlock()

	query := url.Values{}
	query.Set("client_id", s.google.clientID)
	query.Set("redirect_uri", s.google.redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", "openid email profile")
	query.Set("access_type", "offline")
	query.Set("state", state)
	return s.google.authURL + "?" + query.Encode(), nil
}

// CompleteGoogleConnect links a Google account for the user a state was issued to.
// The sandbox does not exchange the code with Google; it records the profile it is given.
func (s *AuthService) CompleteGoogleConnect(ctx context.Context, state, googleEmail, googleName string) (*domain.User, error) {
	s.mu.Lock()
	userID, ok := s.oauthStates[state]
	delete(s.oauthStates, state)
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NewValidationError("Invalid or expired OAuth state", nil)
	}

	rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if googleEmail == "" {
		googleEmail = rec.Email
	}
	if googleName == "" {
		googleName = rec.Name
	}
	now := s.now().UTC()
	rec.GoogleAccount = &domain.GoogleAccount{
		Email:       googleEmail,
		Name:        googleName,
		IsConnected: true,
		ConnectedAt: now,
	}
	rec.UpdatedAt = now
	if err := s.users.Update(ctx, rec); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rec.User.Clone(), nil
}

// GoogleDisconnect unlinks the user's Google account.
func (s *AuthService) GoogleDisconnect(ctx context.Context, userID string) error {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !rec.GoogleConnected() {
		return apperrors.NewValidationError("No Google account connected", nil)
	}
	rec.GoogleAccount = nil
	rec.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, rec); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ListUsers lists accounts, optionally filtered by role.
func (s *AuthService) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperrors.NewValidationError("Invalid role", map[string]any{"role": string(role)})
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// SeedAdmin creates an admin account unless one with email already exists.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err := s.Register(ctx, domain.RegisterData{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if apperrors.IsCode(err, apperrors.CodeConflict) {
		return nil
	}
	return err
}

func (s *AuthService) hashPassword(plain, field string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return "", apperrors.NewValidationError(err.Error(), map[string]any{field: "min"})
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func (s *AuthService) load(ctx context.Context, userID string) (*repository.UserRecord, error) {
	rec, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rec, nil
}
