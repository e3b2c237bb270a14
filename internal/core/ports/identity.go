package ports

import (
	"context"
	"fmt"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

// OTP types accepted by VerifyOTP, matching the provider's email-link format.
const (
	OTPSignup   = "signup"
	OTPRecovery = "recovery"
	OTPMagic    = "magiclink"
)

// UserAttributes are the mutable attributes of an account. Empty fields are
// left untouched.
type UserAttributes struct {
	Password string
	FullName string
}

// IdentityProvider is the hosted auth/database service. Its RPCs are the only
// trusted source of admin truth.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	// SendMagicLink emails a one-time sign-in link. With createUser the
	// account is created on first click-through.
	SendMagicLink(ctx context.Context, email string, createUser bool, metadata map[string]string) error
	// ResetPassword emails a recovery link.
	ResetPassword(ctx context.Context, email string) error
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) error
	ResendVerification(ctx context.Context, email string) error
	GetUser(ctx context.Context, accessToken string) (*domain.IdentityUser, error)
	VerifyOTP(ctx context.Context, otpType, token string) (domain.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Tokens, error)

	VerifyAdminCredentials(ctx context.Context, email, password string) (bool, error)
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// IdentityError is a rejection reported by the identity provider. Message is
// the provider's own text, which callers classify.
type IdentityError struct {
	Status  int
	Code    string
	Message string
}

func (e *IdentityError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: %d: %s", e.Status, e.Message)
}
