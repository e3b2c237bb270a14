package domain

// AuthStep is the visible step of the authentication modal.
type AuthStep string

const (
	StepSignIn        AuthStep = "signin"
	StepSignUp        AuthStep = "signup"
	StepForgot        AuthStep = "forgot"
	StepReset         AuthStep = "reset"
	StepVerify        AuthStep = "verify"
	StepInstructions  AuthStep = "instructions"
	StepAdmin         AuthStep = "admin"
	StepMagicSent     AuthStep = "magic-sent"
	StepSignupSuccess AuthStep = "signup-success"
)

// AuthEvent is a navigation action taken by the user inside the modal.
type AuthEvent string

const (
	EventMagicLink AuthEvent = "magic_link"
	EventAdmin     AuthEvent = "admin"
	EventSignUp    AuthEvent = "sign_up"
	EventBack      AuthEvent = "back"
	EventCancel    AuthEvent = "cancel"
)

// navigation holds the explicit UI-action edges. Submission outcomes are
// driven by the flow service, not by events.
var navigation = map[AuthStep]map[AuthEvent]AuthStep{
	StepSignIn: {
		EventMagicLink: StepForgot,
		EventAdmin:     StepAdmin,
		EventSignUp:    StepSignUp,
	},
}

// parents is the fixed "back" map. Steps missing here are terminal.
var parents = map[AuthStep]AuthStep{
	StepSignUp:       StepSignIn,
	StepForgot:       StepSignIn,
	StepAdmin:        StepSignIn,
	StepReset:        StepSignIn,
	StepVerify:       StepSignIn,
	StepInstructions: StepForgot,
}

// submitted is where a successful submission leads. Sign-in and admin
// sign-in close the modal, which resets it to signin.
var submitted = map[AuthStep]AuthStep{
	StepSignIn: StepSignIn,
	StepAdmin:  StepSignIn,
	StepSignUp: StepSignupSuccess,
	StepForgot: StepMagicSent,
	StepReset:  StepSignIn,
	StepVerify: StepVerify,
}

// unconfirmed is where a submission rejected for an unconfirmed email leads.
var unconfirmed = map[AuthStep]AuthStep{
	StepSignIn: StepVerify,
	StepSignUp: StepVerify,
	StepForgot: StepInstructions,
}

// Valid reports whether s is a known step.
func (s AuthStep) Valid() bool {
	switch s {
	case StepSignIn, StepSignUp, StepForgot, StepReset, StepVerify,
		StepInstructions, StepAdmin, StepMagicSent, StepSignupSuccess:
		return true
	}
	return false
}

// Terminal reports whether s has no parent to go back to.
func (s AuthStep) Terminal() bool {
	_, ok := parents[s]
	return !ok && s != StepSignIn
}

// Next returns the step reached by firing ev from s. Cancel is accepted
// from every step and always lands on signin.
func (s AuthStep) Next(ev AuthEvent) (AuthStep, error) {
	switch ev {
	case EventCancel:
		return StepSignIn, nil
	case EventBack:
		if p, ok := parents[s]; ok {
			return p, nil
		}
		return s, ErrInvalidTransition
	}
	if next, ok := navigation[s][ev]; ok {
		return next, nil
	}
	return s, ErrInvalidTransition
}

// Submittable reports whether s shows a form that can be submitted.
func (s AuthStep) Submittable() bool {
	_, ok := submitted[s]
	return ok
}

// AfterSubmit returns the step reached when a submission from s succeeds.
func (s AuthStep) AfterSubmit() (AuthStep, error) {
	if next, ok := submitted[s]; ok {
		return next, nil
	}
	return s, ErrInvalidTransition
}

// AfterUnconfirmed returns the step reached when a submission from s fails
// because the email address has not been confirmed yet.
func (s AuthStep) AfterUnconfirmed() AuthStep {
	if next, ok := unconfirmed[s]; ok {
		return next
	}
	return s
}

// AuthForm carries the fields of whichever form the active step shows.
type AuthForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// AuthFlowState is the per-browser state of the modal.
type AuthFlowState struct {
	Step AuthStep `json:"step"`
	// Email is remembered across steps so informational screens can name it.
	Email string `json:"email,omitempty"`
	// RecoverySessionID points at the session established by a recovery
	// callback; only the reset step uses it.
	RecoverySessionID string `json:"recovery_session_id,omitempty"`
}

// NewAuthFlowState returns the state of a freshly opened modal.
func NewAuthFlowState() AuthFlowState {
	return AuthFlowState{Step: StepSignIn}
}

// MinPasswordLength is the shortest password accepted on signup and reset.
const MinPasswordLength = 6
