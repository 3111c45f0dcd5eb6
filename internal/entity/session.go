package entity

import "time"

// SessionCookie is an opaque credential fragment issued by the site after
// login. A session is a non-empty set of these; an empty set is never valid.
type SessionCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// SessionState is the answer to "are we authenticated". LoggedIn implies
// Expiry is set and in the future.
type SessionState struct {
	LoggedIn         bool      `json:"logged_in"`
	Username         string    `json:"username,omitempty"`
	Expiry           time.Time `json:"session_expiry,omitempty"`
	RestoredFromDisk bool      `json:"restored_from_disk"`
}

// PersistedSession is the on-disk shape of a session. Written only on a
// successful login with at least one cookie.
type PersistedSession struct {
	Cookies       []SessionCookie `json:"cookies"`
	Username      string          `json:"username"`
	SessionExpiry int64           `json:"session_expiry_epoch_ms"`
	SavedAt       int64           `json:"saved_at_epoch_ms"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginFailureReason string

const (
	ReasonMissingCredentials LoginFailureReason = "missing-credentials"
	ReasonCaptchaTimeout     LoginFailureReason = "captcha-timeout"
	ReasonInvalidCredentials LoginFailureReason = "invalid-credentials"
	ReasonNoSessionCookies   LoginFailureReason = "no-session-cookies"
	ReasonNetworkError       LoginFailureReason = "network-error"
)

// LoginResult carries the login outcome. Failures are a typed reason here,
// they are never surfaced as errors past the session service boundary.
type LoginResult struct {
	Success   bool               `json:"success"`
	Username  string             `json:"username,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Reason    LoginFailureReason `json:"reason,omitempty"`
}
