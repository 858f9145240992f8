// Package session owns the signed-in identity: the API token and the user's
// profile. It is the single source of truth for whether the storefront is
// logged in.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/cache"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/remote"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// Remote is the part of the API client the session store calls.
type Remote interface {
	SignIn(ctx context.Context, creds domain.Credentials) (remote.SignInResult, error)
	SignUp(ctx context.Context, reg domain.Registration) error
	ForgotPassword(ctx context.Context, req domain.PasswordReset) (string, error)
}

// Store holds the current session and publishes every change of it.
type Store struct {
	remote Remote
	cache  *cache.Cache
	topic  *notify.Topic[domain.Session]
	logger *slog.Logger

	mu      sync.Mutex
	current domain.Session
	version uint64
	// replacing is the token a login in flight falls back to on failure.
	replacing string
}

// NewStore creates an anonymous session store. Call Restore to pick up a
// persisted session.
func NewStore(r Remote, c *cache.Cache, logger *slog.Logger) *Store {
	return &Store{
		remote: r,
		cache:  c,
		topic:  notify.NewTopic[domain.Session]("session", logger),
		logger: logger,
	}
}

// Current returns a copy of the session.
func (s *Store) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Token returns the current API token, or "" when anonymous.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Token
}

// Subscribe registers fn for every published session.
func (s *Store) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	return s.topic.Subscribe(fn)
}

// Restore loads the persisted session. A token without a cached profile gets
// one derived from the token's claims.
func (s *Store) Restore(ctx context.Context) domain.Session {
	token, user := s.readPersisted(ctx)
	if token == "" {
		return s.Current()
	}
	return s.set(ctx, domain.Session{Token: token, User: user, State: domain.StateAuthenticated})
}

// Reload re-reads the persisted session after another instance changed it
// and adopts it when it differs from the one in memory.
func (s *Store) Reload(ctx context.Context) domain.Session {
	token, user := s.readPersisted(ctx)

	s.mu.Lock()
	same := token == s.current.Token
	s.mu.Unlock()
	if same {
		return s.Current()
	}

	if token == "" {
		s.logger.InfoContext(ctx, "session ended by another instance")
		return s.set(ctx, domain.Session{State: domain.StateAnonymous, Reason: domain.ReasonLogout})
	}
	s.logger.InfoContext(ctx, "session changed by another instance")
	return s.set(ctx, domain.Session{Token: token, User: user, State: domain.StateAuthenticated})
}

// Login validates creds, signs in and persists the session. On failure the
// store goes back to the session it had, or to anonymous when there was none
// or it was rejected meanwhile, and the API's message is returned. A logout
// while the call is in flight wins over its result.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	if err := validator.Validate(creds); err != nil {
		return s.Current(), err
	}

	prev, attempt := s.beginLogin(ctx)

	res, err := s.remote.SignIn(ctx, creds)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		s.logger.InfoContext(ctx, "login failed", slog.String("error", err.Error()))
		return s.abortLogin(ctx, prev, attempt), err
	}

	user := res.User
	if claims, err := auth.ParseUnverified(res.Token); err == nil {
		user.ID = claims.ID
		if user.Role == "" {
			user.Role = claims.Role
		}
	} else {
		s.logger.WarnContext(ctx, "token claims unreadable", slog.String("error", err.Error()))
	}

	next, ok := s.finishLogin(attempt, domain.Session{Token: res.Token, User: &user, State: domain.StateAuthenticated})
	if !ok {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		s.logger.InfoContext(ctx, "login result dropped, session ended while signing in")
		return next, apperrors.Conflict("signed out while logging in")
	}

	s.cache.Write(ctx, cache.KeyToken, res.Token)
	s.cache.Write(ctx, cache.KeyUser, user)
	cur := s.Current()
	if cur.State == domain.StateAnonymous {
		// Ended between install and persist; its teardown may predate the writes.
		s.cache.Clear(ctx, cache.SessionKeys...)
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return cur, apperrors.Conflict("signed out while logging in")
	}

	metrics.Logins.WithLabelValues(metrics.ResultOK).Inc()
	s.logger.InfoContext(ctx, "logged in", slog.String("user_id", user.ID))
	if cur.Version == next.Version {
		s.topic.Publish(next)
	}
	return cur, nil
}

// beginLogin enters Authenticating. It returns the session being replaced and
// the version that identifies this attempt.
func (s *Store) beginLogin(ctx context.Context) (domain.Session, uint64) {
	s.mu.Lock()
	prev := s.current.Clone()
	s.replacing = prev.Token
	s.version++
	s.current = domain.Session{State: domain.StateAuthenticating, Version: s.version}
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session state", slog.String("state", snapshot.State.String()))
	s.topic.Publish(snapshot)
	return prev, snapshot.Version
}

// finishLogin installs next if attempt is still the current session. The
// caller publishes the result.
func (s *Store) finishLogin(attempt uint64, next domain.Session) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != attempt {
		return s.current.Clone(), false
	}
	s.replacing = ""
	s.version++
	next.Version = s.version
	s.current = next.Clone()
	return s.current.Clone(), true
}

// abortLogin leaves Authenticating after a failed sign in.
func (s *Store) abortLogin(ctx context.Context, prev domain.Session, attempt uint64) domain.Session {
	s.mu.Lock()
	if s.version != attempt {
		s.mu.Unlock()
		return s.Current()
	}
	rejected := prev.Authenticated() && s.replacing != prev.Token
	s.replacing = ""
	s.mu.Unlock()

	switch {
	case rejected:
		s.teardown(ctx, "", domain.ReasonExpired)
		return s.Current()
	case prev.Authenticated():
		return s.set(ctx, prev)
	default:
		return s.set(ctx, domain.Session{State: domain.StateAnonymous})
	}
}

// Register validates the details and creates an account. It does not sign in.
func (s *Store) Register(ctx context.Context, reg domain.Registration) error {
	if err := validator.Validate(reg); err != nil {
		return err
	}
	if err := s.remote.SignUp(ctx, reg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account registered")
	return nil
}

// ForgotPassword asks the API to send a reset code and returns its message.
func (s *Store) ForgotPassword(ctx context.Context, req domain.PasswordReset) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}
	return s.remote.ForgotPassword(ctx, req)
}

// Logout ends the session at the user's request.
func (s *Store) Logout(ctx context.Context) {
	s.teardown(ctx, "", domain.ReasonLogout)
}

// ForceLogout ends the session because the credential is no longer good.
// Calling it on an anonymous store does nothing.
func (s *Store) ForceLogout(ctx context.Context) {
	s.teardown(ctx, "", domain.ReasonExpired)
}

// HandleUnauthorized reacts to the API rejecting token. The session is torn
// down only if token is still the current one, so a burst of 401s for the
// same token causes one logout and late 401s for an old token are ignored.
// It reports whether this call ended the session.
func (s *Store) HandleUnauthorized(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	return s.teardown(ctx, token, domain.ReasonExpired)
}

// teardown clears the session in memory, then in the cache, then publishes.
// With a non-empty expect it only acts while expect is the current token.
func (s *Store) teardown(ctx context.Context, expect string, reason domain.LogoutReason) bool {
	s.mu.Lock()
	if s.current.Token == "" && s.current.State != domain.StateAuthenticating {
		s.mu.Unlock()
		return false
	}
	if expect != "" && s.current.Token != expect {
		// The credential a login in flight would fall back to is gone.
		rejected := s.current.State == domain.StateAuthenticating && s.replacing == expect
		if rejected {
			s.replacing = ""
		}
		s.mu.Unlock()
		if rejected {
			s.logger.InfoContext(ctx, "previous credential rejected during login")
		}
		return rejected
	}
	userID := s.current.UserID()
	s.replacing = ""
	s.version++
	s.current = domain.Session{State: domain.StateAnonymous, Reason: reason, Version: s.version}
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.cache.Clear(ctx, cache.SessionKeys...)
	metrics.Logouts.WithLabelValues(string(reason)).Inc()
	s.logger.InfoContext(ctx, "session ended",
		slog.String("reason", string(reason)),
		slog.String("user_id", userID),
	)

	s.topic.Publish(snapshot)
	return true
}

// set replaces the session and publishes it.
func (s *Store) set(ctx context.Context, next domain.Session) domain.Session {
	s.mu.Lock()
	s.version++
	next.Version = s.version
	s.current = next.Clone()
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session state", slog.String("state", snapshot.State.String()))
	s.topic.Publish(snapshot)
	return snapshot
}

func (s *Store) readPersisted(ctx context.Context) (string, *domain.User) {
	var token string
	if !s.cache.Read(ctx, cache.KeyToken, &token) || token == "" {
		return "", nil
	}

	var user domain.User
	if s.cache.Read(ctx, cache.KeyUser, &user) {
		return token, &user
	}

	claims, err := auth.ParseUnverified(token)
	if err != nil {
		s.logger.WarnContext(ctx, "persisted token has unreadable claims", slog.String("error", err.Error()))
		return token, nil
	}
	u := claims.User()
	return token, &u
}
