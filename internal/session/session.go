// Package session holds the process-wide authenticated session.
//
// One Session is created at startup and shared by every command, the
// monitor and the Telegram handler. It signs in once, hands out the current
// access token, renews it when the backend answers 401 and logs out on
// shutdown.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"railmon/internal/api"
	apperrors "railmon/internal/errors"
	"railmon/internal/metrics"
)

// Backend is the part of the API client the session drives.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*api.SignInResult, error)
	Profile(ctx context.Context) (api.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken string) error
}

// Session provides thread-safe access to the current credentials.
//
// Thread-safety:
//   - Token and User take a read lock
//   - Concurrent Refresh calls share one backend round trip
type Session struct {
	backend  Backend
	email    string
	password string

	mu      sync.RWMutex
	user    api.User
	access  string
	refresh string
	active  bool

	group singleflight.Group
}

// New creates a session. Nothing is sent until Initialize.
func New(backend Backend, email, password string) *Session {
	return &Session{backend: backend, email: email, password: password}
}

// Initialize signs in and loads the profile.
//
// Returns:
//   - error: LoginFailedError if sign-in or the profile call fails
func (s *Session) Initialize(ctx context.Context) error {
	zap.S().Infof("🔐 Signing in as %s...", s.email)
	if err := s.signIn(ctx); err != nil {
		return err
	}

	profile, err := s.backend.Profile(ctx)
	if err != nil {
		return apperrors.NewLoginFailedError("profile after sign-in", err)
	}

	s.mu.Lock()
	if profile.Role == "" {
		profile.Role = s.user.Role
	}
	s.user = profile
	s.mu.Unlock()

	zap.S().Infof("✅ Signed in as %s (role: %s)", profile.Email, profile.Role)
	return nil
}

// Token returns the current access token, or "" before Initialize.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// User returns the signed-in account.
func (s *Session) User() api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAdmin reports whether the account has the admin role.
func (s *Session) IsAdmin() bool {
	return s.User().IsAdmin()
}

// Active reports whether the session holds credentials.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ExpiresAt returns the access token's exp claim. The token is decoded
// without verification; the backend owns verification.
func (s *Session) ExpiresAt() (time.Time, bool) {
	c, ok := parseClaims(s.Token())
	if !ok || c.expiresAt.IsZero() {
		return time.Time{}, false
	}
	return c.expiresAt, true
}

// Refresh renews the access token.
//
// Concurrent callers are collapsed into one refresh. When the refresh token
// is missing or rejected the session signs in again with the stored
// credentials.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.doRefresh(ctx)
	})
	return err
}

func (s *Session) doRefresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refresh
	s.mu.RUnlock()

	if refreshToken != "" {
		access, err := s.backend.Refresh(ctx, refreshToken)
		if err == nil {
			s.mu.Lock()
			s.access = access
			s.mu.Unlock()
			metrics.SessionRefreshes.WithLabelValues("ok").Inc()
			zap.S().Info("🔄 Access token refreshed")
			return nil
		}
		if !apperrors.IsSessionExpired(err) {
			metrics.SessionRefreshes.WithLabelValues("error").Inc()
			return fmt.Errorf("refresh access token: %w", err)
		}
		zap.S().Warn("⚠️  Refresh token rejected, signing in again")
	}

	if err := s.signIn(ctx); err != nil {
		metrics.SessionRefreshes.WithLabelValues("error").Inc()
		return err
	}
	metrics.SessionRefreshes.WithLabelValues("resignin").Inc()
	return nil
}

func (s *Session) signIn(ctx context.Context) error {
	res, err := s.backend.SignIn(ctx, s.email, s.password)
	if err != nil {
		return err
	}

	user := res.User
	if user.Role == "" {
		if c, ok := parseClaims(res.AccessToken); ok {
			user.Role = c.role
		}
	}

	s.mu.Lock()
	s.user = user
	s.access = res.AccessToken
	s.refresh = res.RefreshToken
	s.active = true
	s.mu.Unlock()
	return nil
}

// Teardown logs out and forgets the credentials. It is safe to call more
// than once; later calls do nothing.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	access := s.access
	s.user = api.User{}
	s.access, s.refresh = "", ""
	s.active = false
	s.mu.Unlock()

	if err := s.backend.Logout(ctx, access); err != nil {
		zap.S().Warnf("⚠️  Logout failed: %v", err)
		return fmt.Errorf("logout: %w", err)
	}
	zap.S().Info("👋 Logged out")
	return nil
}

type claims struct {
	expiresAt time.Time
	role      string
}

func parseClaims(token string) (claims, bool) {
	if token == "" {
		return claims{}, false
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return claims{}, false
	}

	var c claims
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.expiresAt = exp.Time
	}
	if role, ok := mc["role"].(string); ok {
		c.role = role
	}
	return c, true
}
