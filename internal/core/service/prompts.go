package service

import (
	"fmt"
	"strings"

	"github.com/codepilot/assistant-api/internal/core/domain"
)

const analysisInstructions = `You are a senior software engineer reviewing code.
Analyze the code below for bugs, security problems, performance issues and style.
Respond with a single JSON object and nothing else, using exactly this shape:
{
  "summary": "one paragraph overview",
  "score": 0-100,
  "issues": [
    {"severity": "critical|high|medium|low", "line": 0, "title": "", "description": "", "suggestion": ""}
  ],
  "improvements": ["..."],
  "complexity": {"time": "", "space": ""}
}`

const solveInstructions = `You are an expert programmer solving a problem for a user.
Produce a correct, well-structured solution in the requested language.
Respond with a single JSON object and nothing else, using exactly this shape:
{
  "approach": "how the problem is solved",
  "code": "complete solution source",
  "explanation": "step by step explanation",
  "complexity": {"time": "", "space": ""},
  "test_cases": [{"input": "", "expected": ""}]
}`

const chatInstructions = `You are a friendly AI coding assistant. Answer programming questions clearly,
include short code examples when they help, and say so when you are unsure.`

const maxChatContext = 20

func analysisPrompt(language, code string) string {
	if language == "" {
		language = "auto-detect"
	}
	return fmt.Sprintf("%s\n\nLanguage: %s\n\nCode:\n```\n%s\n```", analysisInstructions, language, code)
}

func solvePrompt(language, problem string) string {
	if language == "" {
		language = "any suitable language"
	}
	return fmt.Sprintf("%s\n\nLanguage: %s\n\nProblem:\n%s", solveInstructions, language, problem)
}

// chatPrompt renders the recent transcript followed by the new user turn.
func chatPrompt(history []domain.Message, message string) string {
	if len(history) > maxChatContext {
		history = history[len(history)-maxChatContext:]
	}

	var b strings.Builder
	b.WriteString(chatInstructions)
	b.WriteString("\n\n")
	for _, m := range history {
		switch m.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}

// conversationTitle derives a thread title from its first message.
func conversationTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	const maxTitle = 60
	if r := []rune(title); len(r) > maxTitle {
		return string(r[:maxTitle-1]) + "…"
	}
	return title
}
