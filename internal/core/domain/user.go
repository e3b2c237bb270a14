package domain

import "time"

// Profile is the per-user row created when an account materializes.
type Profile struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageStats holds the advisory activity counters of one user.
type UsageStats struct {
	UserID         string    `json:"user_id"`
	AnalysesCount  int64     `json:"analyses_count"`
	ProblemsSolved int64     `json:"problems_solved"`
	ChatMessages   int64     `json:"chat_messages"`
	LastActivity   time.Time `json:"last_activity"`
}

// PendingSignup holds the details of a signup between magic-link issuance
// and the first click-through. At most one exists per browser.
type PendingSignup struct {
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
