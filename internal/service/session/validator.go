package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/jgivc/tracksearch/internal/entity"
)

const validateTimeout = 90 * time.Second

// The background validator periodically opens an authenticated page with
// the stored cookies and looks for a login form. Form present means the
// server dropped the session; network or timeout errors are inconclusive
// and are retried on the next tick.

func (s *SessionService) startValidatorLocked() {
	if s.stopValidator != nil {
		return
	}

	stop := make(chan struct{})
	s.stopValidator = stop

	go s.validateLoop(stop)
}

func (s *SessionService) stopValidatorLocked() {
	if s.stopValidator == nil {
		return
	}

	close(s.stopValidator)
	s.stopValidator = nil
}

func (s *SessionService) validateLoop(stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.ValidateInterval())
	defer ticker.Stop()

	s.log.Info("Session validator started", slog.Duration("interval", s.cfg.ValidateInterval()))

	for {
		select {
		case <-stop:
			s.log.Info("Session validator stopped")

			return
		case <-ticker.C:
			s.Revalidate(context.Background())
		}
	}
}

// Revalidate performs one liveness check now. Safe to call from outside
// (SIGUSR1 does); a no-op when not logged in.
func (s *SessionService) Revalidate(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateLoggedIn {
		s.mu.Unlock()

		return
	}
	cookies := make([]entity.SessionCookie, len(s.cookies))
	copy(cookies, s.cookies)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	page, err := s.gw.NewPageWithCookies(ctx, cookies)
	if err != nil {
		s.log.Warn("Session validation inconclusive", slog.Any("error", err))

		return
	}
	defer page.Close()

	if err := page.Navigate(ctx, s.prof.SearchURL("", 1)); err != nil {
		s.log.Warn("Session validation inconclusive", slog.Any("error", err))

		return
	}

	formPresent, err := page.HasElement(ctx, s.prof.Selectors.LoginForm)
	if err != nil {
		s.log.Warn("Session validation inconclusive", slog.Any("error", err))

		return
	}

	if !formPresent {
		s.log.Debug("Session validated")

		return
	}

	s.log.Info("Session invalidated by the site")

	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
}
