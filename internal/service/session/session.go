package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jgivc/tracksearch/internal/adapter/browser"
	"github.com/jgivc/tracksearch/internal/adapter/profile"
	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/config"
	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/retry"
)

const (
	serviceName = "session"

	loginPollInterval = 2 * time.Second
	loginNavRetries   = 2
	loginNavBaseDelay = 500 * time.Millisecond
	loginNavMaxDelay  = 5 * time.Second
)

type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
	StateExpired
)

func (s State) String() string {
	return [...]string{"LoggedOut", "LoggingIn", "LoggedIn", "Expired"}[s]
}

type Repository interface {
	Load() (*entity.PersistedSession, error)
	Save(s *entity.PersistedSession) error
	Clear() error
}

// SessionService is the single source of truth for "are we authenticated".
// All state is mutated under one mutex; the background validator is the
// only goroutine it owns.
type SessionService struct {
	mu       sync.Mutex
	state    State
	username string
	expiry   time.Time
	restored bool
	cookies  []entity.SessionCookie

	stopValidator chan struct{}

	gw   browser.Gateway
	prof *profile.Profile
	repo Repository
	cfg  *config.SessionConfig
	log  *slog.Logger
}

// NewSessionService builds the service and tries the restore path: a
// persisted, unexpired session rehydrates straight to LoggedIn without
// contacting the site.
func NewSessionService(gw browser.Gateway, prof *profile.Profile, repo Repository, cfg *config.SessionConfig, log *slog.Logger) *SessionService {
	s := &SessionService{
		gw:   gw,
		prof: prof,
		repo: repo,
		cfg:  cfg,
		log:  log.With(slog.String("service", serviceName)),
	}

	persisted, err := repo.Load()
	if err != nil {
		if err != common.ErrNoSession {
			s.log.Error("Cannot load persisted session", slog.Any("error", err))
		}

		return s
	}

	s.mu.Lock()
	s.state = StateLoggedIn
	s.username = persisted.Username
	s.expiry = time.UnixMilli(persisted.SessionExpiry)
	s.cookies = persisted.Cookies
	s.restored = true
	s.startValidatorLocked()
	s.mu.Unlock()

	s.log.Info("Session restored from disk",
		slog.String("username", s.username),
		slog.Time("session_expiry", s.expiry))

	return s
}

// Login authenticates against the site. Failures come back as a typed
// reason in the result; a previously valid session is left untouched.
func (s *SessionService) Login(ctx context.Context, creds entity.Credentials) *entity.LoginResult {
	if creds.Username == "" || creds.Password == "" {
		return &entity.LoginResult{Success: false, Reason: entity.ReasonMissingCredentials}
	}

	s.mu.Lock()
	prevState := s.state
	s.state = StateLoggingIn
	s.mu.Unlock()

	fail := func(reason entity.LoginFailureReason) *entity.LoginResult {
		s.mu.Lock()
		s.state = prevState
		s.mu.Unlock()

		s.log.Warn("Login failed", slog.String("reason", string(reason)))

		return &entity.LoginResult{Success: false, Reason: reason}
	}

	page, err := s.gw.NewPage(ctx)
	if err != nil {
		s.log.Error("Cannot open login page", slog.Any("error", err))

		return fail(entity.ReasonNetworkError)
	}
	defer page.Close()

	_, err = retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, page.NavigateAndWait(ctx, s.prof.LoginURL(), s.prof.Selectors.LoginForm)
	}, retry.Config{
		MaxRetries: loginNavRetries,
		BaseDelay:  loginNavBaseDelay,
		MaxDelay:   loginNavMaxDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			s.log.Warn("Retry login page navigation",
				slog.Int("attempt", attempt), slog.Any("error", err))
		},
	})
	if err != nil {
		s.log.Error("Cannot reach login page", slog.Any("error", err))

		return fail(entity.ReasonNetworkError)
	}

	if err := page.SendKeys(ctx, s.prof.Selectors.UsernameField, creds.Username); err != nil {
		return fail(entity.ReasonNetworkError)
	}
	if err := page.SendKeys(ctx, s.prof.Selectors.PasswordField, creds.Password); err != nil {
		return fail(entity.ReasonNetworkError)
	}
	if err := page.Click(ctx, s.prof.Selectors.SubmitButton); err != nil {
		return fail(entity.ReasonNetworkError)
	}

	if reason := s.waitLoginOutcome(ctx, page); reason != "" {
		return fail(reason)
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		s.log.Error("Cannot extract session cookies", slog.Any("error", err))

		return fail(entity.ReasonNetworkError)
	}
	if len(cookies) == 0 {
		return fail(entity.ReasonNoSessionCookies)
	}

	expiry := s.sessionExpiry(cookies)

	s.mu.Lock()
	s.stopValidatorLocked()
	s.state = StateLoggedIn
	s.username = creds.Username
	s.expiry = expiry
	s.cookies = cookies
	s.restored = false
	s.startValidatorLocked()
	s.mu.Unlock()

	// Persistence failures degrade to an in-memory-only session.
	err = s.repo.Save(&entity.PersistedSession{
		Cookies:       cookies,
		Username:      creds.Username,
		SessionExpiry: expiry.UnixMilli(),
		SavedAt:       time.Now().UnixMilli(),
	})
	if err != nil {
		s.log.Error("Cannot persist session", slog.Any("error", err))
	}

	s.log.Info("Logged in", slog.String("username", creds.Username), slog.Time("session_expiry", expiry))

	return &entity.LoginResult{
		Success:   true,
		Username:  creds.Username,
		SessionID: uuid.NewString(),
	}
}

// waitLoginOutcome polls the page after submit. A visible CAPTCHA pauses
// the flow for a human to solve it, up to the configured long wait.
func (s *SessionService) waitLoginOutcome(ctx context.Context, page browser.Page) entity.LoginFailureReason {
	deadline := time.Now().Add(s.cfg.CaptchaWait())
	captchaSeen := false

	for time.Now().Before(deadline) {
		if loggedIn, err := page.HasElement(ctx, s.prof.Selectors.LoggedInMarker); err == nil && loggedIn {
			return ""
		}

		if captcha, err := page.HasElement(ctx, s.prof.Selectors.Captcha); err == nil && captcha {
			if !captchaSeen {
				captchaSeen = true
				s.log.Info("CAPTCHA detected, waiting for manual solve",
					slog.Duration("max_wait", s.cfg.CaptchaWait()))
			}
		} else if formPresent, err := page.HasElement(ctx, s.prof.Selectors.LoginForm); err == nil && formPresent {
			// Back on the login form without a CAPTCHA: rejected.
			return entity.ReasonInvalidCredentials
		}

		select {
		case <-ctx.Done():
			return entity.ReasonNetworkError
		case <-time.After(loginPollInterval):
		}
	}

	if captchaSeen {
		return entity.ReasonCaptchaTimeout
	}

	return entity.ReasonNetworkError
}

// sessionExpiry derives the session lifetime: the earliest future cookie
// expiry, bounded by the configured TTL.
func (s *SessionService) sessionExpiry(cookies []entity.SessionCookie) time.Time {
	expiry := time.Now().Add(s.cfg.SessionTTL())

	for _, c := range cookies {
		if !c.Expires.IsZero() && c.Expires.After(time.Now()) && c.Expires.Before(expiry) {
			expiry = c.Expires
		}
	}

	return expiry
}

// Logout is idempotent: it always ends LoggedOut, clears durable storage
// and stops the validator.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.stopValidatorLocked()
	s.state = StateLoggedOut
	s.username = ""
	s.expiry = time.Time{}
	s.cookies = nil
	s.restored = false
	s.mu.Unlock()

	if err := s.repo.Clear(); err != nil {
		s.log.Error("Cannot clear persisted session", slog.Any("error", err))
	}

	s.log.Info("Logged out")

	return nil
}

// Status is a pure read apart from the lazy expiry check; it never touches
// the network.
func (s *SessionService) Status() entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkExpiryLocked()

	return entity.SessionState{
		LoggedIn:         s.state == StateLoggedIn,
		Username:         s.username,
		Expiry:           s.expiry,
		RestoredFromDisk: s.restored,
	}
}

// Cookies hands the current session cookies to the search services.
func (s *SessionService) Cookies() ([]entity.SessionCookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkExpiryLocked()

	if s.state != StateLoggedIn || len(s.cookies) == 0 {
		return nil, common.ErrNotLoggedIn
	}

	out := make([]entity.SessionCookie, len(s.cookies))
	copy(out, s.cookies)

	return out, nil
}

// Close stops the background validator.
func (s *SessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopValidatorLocked()
}

func (s *SessionService) checkExpiryLocked() {
	if s.state != StateLoggedIn || time.Now().Before(s.expiry) {
		return
	}

	s.log.Info("Session expired", slog.Time("session_expiry", s.expiry))

	s.state = StateExpired
	s.invalidateLocked()
}

// invalidateLocked drops in-memory state, durable storage and the
// validator. Expired is a transient state, it always lands on LoggedOut.
func (s *SessionService) invalidateLocked() {
	s.stopValidatorLocked()
	s.state = StateLoggedOut
	s.username = ""
	s.expiry = time.Time{}
	s.cookies = nil
	s.restored = false

	go func() {
		if err := s.repo.Clear(); err != nil {
			s.log.Error("Cannot clear persisted session", slog.Any("error", err))
		}
	}()
}
