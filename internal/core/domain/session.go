package domain

import "time"

// Session is an authenticated user as seen by this service. The provider
// tokens are kept so calls made on the user's behalf carry their identity.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
}

// Expired reports whether the provider access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires before now+d.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.IsZero() && now.Add(d).After(s.ExpiresAt)
}

// Tokens is the credential pair handed out by the identity provider.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IdentityUser is the provider's view of a user account.
type IdentityUser struct {
	ID            string
	Email         string
	EmailVerified bool
	FullName      string
}

// SessionEventType names a change pushed by the session store.
type SessionEventType string

const (
	SessionSignedIn       SessionEventType = "signed_in"
	SessionSignedOut      SessionEventType = "signed_out"
	SessionTokenRefreshed SessionEventType = "token_refreshed"
)

// SessionEvent is published on every session change. Session is nil for
// SessionSignedOut.
type SessionEvent struct {
	Type      SessionEventType
	SessionID string
	Session   *Session
}
