package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

const testClient = "client-1"

type flowFixture struct {
	svc      *AuthFlowService
	idp      *stubIdentity
	sessions *SessionService
	store    *memSessionStore
	flows    *memFlowStore
	pending  *memPending
}

func newFlowFixture(idp *stubIdentity) *flowFixture {
	store := newMemSessionStore()
	sessions := newSessionSvc(idp, store)
	flows := newMemFlowStore()
	pending := newMemPending()
	return &flowFixture{
		svc:      NewAuthFlowService(idp, sessions, flows, pending, zerolog.Nop()),
		idp:      idp,
		sessions: sessions,
		store:    store,
		flows:    flows,
		pending:  pending,
	}
}

func (f *flowFixture) at(step domain.AuthStep) {
	f.flows.flows[testClient] = domain.AuthFlowState{Step: step}
}

func (f *flowFixture) submit(t *testing.T, mode string, form domain.AuthForm) *ports.SubmitResult {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), ports.SubmitInput{ClientID: testClient, Mode: mode, Form: form})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	return res
}

func TestAuthFlow_Fire(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	ctx := context.Background()

	v, err := f.svc.Fire(ctx, testClient, domain.EventSignUp)
	if err != nil || v.Step != domain.StepSignUp {
		t.Fatalf("sign_up from signin: got %s, %v", v.Step, err)
	}
	v, err = f.svc.Fire(ctx, testClient, domain.EventBack)
	if err != nil || v.Step != domain.StepSignIn {
		t.Fatalf("back from signup: got %s, %v", v.Step, err)
	}
	if _, err := f.svc.Fire(ctx, testClient, domain.EventBack); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("back from signin: expected ErrInvalidTransition, got %v", err)
	}

	f.at(domain.StepMagicSent)
	v, err = f.svc.Fire(ctx, testClient, domain.EventCancel)
	if err != nil || v.Step != domain.StepSignIn {
		t.Fatalf("cancel: got %s, %v", v.Step, err)
	}
	if _, ok := f.flows.flows[testClient]; ok {
		t.Fatalf("cancel should clear the stored flow")
	}
}

func TestAuthFlow_SignUp_StoresPendingAndSendsMagicLink(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepSignUp)

	res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", FullName: "A", Password: "secret1"})
	if res.Error != "" {
		t.Fatalf("unexpected error message: %s", res.Error)
	}
	if res.Step != domain.StepSignupSuccess {
		t.Fatalf("expected signup-success, got %s", res.Step)
	}

	p, ok := f.pending.entries[testClient]
	if !ok {
		t.Fatalf("pending signup not stored")
	}
	if p.Email != "a@x.com" || p.FullName != "A" || p.Password != "secret1" {
		t.Fatalf("unexpected pending signup: %+v", p)
	}
	if len(f.idp.magicLinks) != 1 || f.idp.magicLinks[0] != "a@x.com" {
		t.Fatalf("expected magic link to a@x.com, got %v", f.idp.magicLinks)
	}
	if st := f.flows.flows[testClient]; st.Step != domain.StepSignupSuccess {
		t.Fatalf("stored step = %s", st.Step)
	}
}

func TestAuthFlow_SignUp_MagicLinkFailureDiscardsPending(t *testing.T) {
	f := newFlowFixture(&stubIdentity{
		sendMagicLink: func(string, bool, map[string]string) error {
			return &ports.IdentityError{Status: 429, Message: "For security purposes, you can only request this once every 60 seconds"}
		},
	})
	f.at(domain.StepSignUp)

	res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "secret1"})
	if res.Error != MsgRateLimited {
		t.Fatalf("expected rate limit message, got %q", res.Error)
	}
	if res.Step != domain.StepSignUp {
		t.Fatalf("expected to stay on signup, got %s", res.Step)
	}
	if len(f.pending.entries) != 0 {
		t.Fatalf("pending signup should be discarded")
	}
}

func TestAuthFlow_SignUp_LocalValidation(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepSignUp)

	if res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret2"}); res.Error != MsgPasswordMismatch {
		t.Fatalf("expected mismatch, got %q", res.Error)
	}
	if res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "abc"}); res.Error != MsgPasswordTooShort {
		t.Fatalf("expected too short, got %q", res.Error)
	}
	if f.idp.called("SendMagicLink") != 0 {
		t.Fatalf("provider should not be called on local validation failure")
	}
}

func TestAuthFlow_Reset_MismatchNeverCallsProvider(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepReset)

	res := f.submit(t, "", domain.AuthForm{Password: "secret1", ConfirmPassword: "secret9"})
	if res.Error != MsgPasswordMismatch {
		t.Fatalf("expected mismatch message, got %q", res.Error)
	}
	if f.idp.called("UpdateUser") != 0 {
		t.Fatalf("UpdateUser must not be called on mismatch")
	}
}

func TestAuthFlow_Reset_ShortPasswordNeverCallsProvider(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepReset)

	res := f.submit(t, "", domain.AuthForm{Password: "abc", ConfirmPassword: "abc"})
	if res.Error != MsgPasswordTooShort {
		t.Fatalf("expected too short message, got %q", res.Error)
	}
	if f.idp.called("UpdateUser") != 0 {
		t.Fatalf("UpdateUser must not be called for a short password")
	}
}

func TestAuthFlow_Reset_UpdatesPasswordAndClosesRecoverySession(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	sess, err := f.sessions.Establish(context.Background(), domain.Tokens{AccessToken: "at-a@x.com"})
	if err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}
	f.flows.flows[testClient] = domain.AuthFlowState{Step: domain.StepReset, RecoverySessionID: sess.ID}

	res := f.submit(t, "", domain.AuthForm{Password: "newpass", ConfirmPassword: "newpass"})
	if res.Error != "" || res.Step != domain.StepSignIn {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.idp.updates) != 1 || f.idp.updates[0].Password != "newpass" {
		t.Fatalf("expected password update, got %+v", f.idp.updates)
	}
	if f.sessions.Current(context.Background(), sess.ID) != nil {
		t.Fatalf("recovery session should be closed")
	}
}

func TestAuthFlow_Reset_WithoutRecoverySession(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepReset)

	res := f.submit(t, "", domain.AuthForm{Password: "newpass", ConfirmPassword: "newpass"})
	if res.Error != MsgGeneric {
		t.Fatalf("expected generic message, got %q", res.Error)
	}
	if f.idp.called("UpdateUser") != 0 {
		t.Fatalf("UpdateUser must not be called without a recovery session")
	}
}

func TestAuthFlow_SignIn(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})

	res := f.submit(t, "", domain.AuthForm{Email: " a@x.com ", Password: "secret1"})
	if res.Error != "" {
		t.Fatalf("unexpected error message: %s", res.Error)
	}
	if res.Session == nil || res.Session.Email != "a@x.com" {
		t.Fatalf("expected session for a@x.com, got %+v", res.Session)
	}
	if res.Redirect != "/app/dashboard" {
		t.Fatalf("unexpected redirect %q", res.Redirect)
	}
}

func TestAuthFlow_SignIn_UnconfirmedMovesToVerify(t *testing.T) {
	f := newFlowFixture(&stubIdentity{
		signIn: func(string, string) (domain.Tokens, error) {
			return domain.Tokens{}, &ports.IdentityError{Status: 400, Code: "email_not_confirmed", Message: "Email not confirmed"}
		},
	})

	res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "secret1"})
	if res.Error != MsgUnconfirmedEmail {
		t.Fatalf("expected unconfirmed message, got %q", res.Error)
	}
	if res.Step != domain.StepVerify {
		t.Fatalf("expected verify, got %s", res.Step)
	}
	if st := f.flows.flows[testClient]; st.Step != domain.StepVerify || st.Email != "a@x.com" {
		t.Fatalf("unexpected stored flow: %+v", st)
	}

	f.idp.resend = func(email string) error {
		if email != "a@x.com" {
			t.Fatalf("resend to %q, want remembered email", email)
		}
		return nil
	}
	res = f.submit(t, "", domain.AuthForm{})
	if res.Error != "" || res.Step != domain.StepVerify {
		t.Fatalf("unexpected resend result: %+v", res)
	}
}

func TestAuthFlow_SignIn_InvalidCredentials(t *testing.T) {
	f := newFlowFixture(&stubIdentity{
		signIn: func(string, string) (domain.Tokens, error) {
			return domain.Tokens{}, &ports.IdentityError{Status: 400, Message: "Invalid login credentials"}
		},
	})

	res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "wrong1"})
	if res.Error != MsgInvalidCredentials || res.Session != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAuthFlow_Forgot_Modes(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})

	f.at(domain.StepForgot)
	if res := f.submit(t, ports.ModeMagicLink, domain.AuthForm{Email: "a@x.com"}); res.Step != domain.StepMagicSent {
		t.Fatalf("expected magic-sent, got %s", res.Step)
	}
	f.at(domain.StepForgot)
	if res := f.submit(t, ports.ModePasswordReset, domain.AuthForm{Email: "a@x.com"}); res.Step != domain.StepMagicSent {
		t.Fatalf("expected magic-sent, got %s", res.Step)
	}
	if f.idp.called("SendMagicLink") != 1 || f.idp.called("ResetPassword") != 1 {
		t.Fatalf("unexpected calls: %v", f.idp.calls)
	}
}

func TestAuthFlow_Admin(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepAdmin)

	res := f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "secret1"})
	if res.Error != MsgAdminVerification {
		t.Fatalf("expected admin verification message, got %q", res.Error)
	}
	if f.idp.called("SignIn") != 0 {
		t.Fatalf("sign-in must not follow a failed admin check")
	}

	f.idp.verifyAdmin = func(string, string) (bool, error) { return true, nil }
	res = f.submit(t, "", domain.AuthForm{Email: "a@x.com", Password: "secret1"})
	if res.Redirect != "/admin" || res.Session == nil {
		t.Fatalf("unexpected admin result: %+v", res)
	}
}

func TestAuthFlow_Submit_FromInformationalStep(t *testing.T) {
	f := newFlowFixture(&stubIdentity{})
	f.at(domain.StepMagicSent)

	_, err := f.svc.Submit(context.Background(), ports.SubmitInput{ClientID: testClient})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestClassifyAuthError(t *testing.T) {
	cases := []struct {
		err  error
		msg  string
		kind error
	}{
		{domain.ErrPasswordMismatch, MsgPasswordMismatch, domain.ErrPasswordMismatch},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidCredentials), MsgInvalidCredentials, domain.ErrInvalidCredentials},
		{&ports.IdentityError{Status: 400, Message: "Invalid login credentials"}, MsgInvalidCredentials, domain.ErrInvalidCredentials},
		{&ports.IdentityError{Status: 400, Message: "Email not confirmed"}, MsgUnconfirmedEmail, domain.ErrUnconfirmedEmail},
		{&ports.IdentityError{Status: 429, Message: "slow down"}, MsgRateLimited, domain.ErrRateLimited},
		{&ports.IdentityError{Status: 422, Message: "Password should be at least 6 characters"}, MsgPasswordTooShort, domain.ErrPasswordTooShort},
		{&ports.IdentityError{Status: 500, Message: "boom"}, MsgGeneric, nil},
		{errors.New("dial tcp: refused"), MsgGeneric, nil},
	}
	for _, tc := range cases {
		msg, kind := ClassifyAuthError(tc.err)
		if msg != tc.msg || !errors.Is(kind, tc.kind) || (tc.kind == nil && kind != nil) {
			t.Fatalf("ClassifyAuthError(%v) = %q, %v; want %q, %v", tc.err, msg, kind, tc.msg, tc.kind)
		}
	}
}
