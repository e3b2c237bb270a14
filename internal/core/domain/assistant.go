package domain

import (
	"encoding/json"
	"time"
)

// HistoryKind separates the two structured operations in the history table.
type HistoryKind string

const (
	KindAnalysis HistoryKind = "analysis"
	KindSolution HistoryKind = "solution"
)

// HistoryEntry records one structured request and its parsed result.
type HistoryEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      HistoryKind     `json:"kind"`
	Language  string          `json:"language,omitempty"`
	Input     string          `json:"input"`
	Result    json.RawMessage `json:"result"`
	Provider  AIProvider      `json:"provider"`
	CreatedAt time.Time       `json:"created_at"`
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation groups the messages of one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single chat message. Messages are append-only.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Provider       AIProvider `json:"provider,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ToastLevel is the severity of a user-visible notification.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast is a user-visible notification queued for a browser.
type Toast struct {
	Level     ToastLevel `json:"level"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}
