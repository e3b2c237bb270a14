package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

type assistantFixture struct {
	svc      *AssistantService
	switcher *ProviderSwitch
	prefs    *memPrefs
	gemini   *stubGenerator
	openai   *stubGenerator
	history  *memHistory
	convos   *memConversations
	usage    *memUsage
	notifier *memNotifier
	seq      *memSequencer
}

func newAssistantFixture() *assistantFixture {
	prefs := newMemPrefs()
	f := &assistantFixture{
		switcher: NewProviderSwitch(prefs, domain.ProviderGemini, zerolog.Nop()),
		prefs:    prefs,
		gemini:   &stubGenerator{id: domain.ProviderGemini, reply: `{"summary":"ok"}`},
		openai:   &stubGenerator{id: domain.ProviderOpenAI, reply: `{"summary":"ok"}`},
		history:  &memHistory{},
		convos:   newMemConversations(),
		usage:    newMemUsage(),
		notifier: newMemNotifier(),
		seq:      newMemSequencer(),
	}
	f.svc = NewAssistantService(AssistantDeps{
		Generators:    stubRegistry{domain.ProviderGemini: f.gemini, domain.ProviderOpenAI: f.openai},
		Switch:        f.switcher,
		History:       f.history,
		Conversations: f.convos,
		Usage:         f.usage,
		Notifier:      f.notifier,
		Sequencer:     f.seq,
	}, zerolog.Nop())
	return f
}

var testSession = &domain.Session{ID: "s1", UserID: "u1", Email: "a@x.com"}

func TestAssistant_Analyze_WithoutSession(t *testing.T) {
	f := newAssistantFixture()

	_, err := f.svc.Analyze(context.Background(), ports.AnalyzeInput{ClientID: testClient, Code: "x := 1", Language: "go"})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(f.gemini.prompts)+len(f.openai.prompts) != 0 {
		t.Fatalf("no provider call expected without a session")
	}
	if f.notifier.count(testClient) != 1 {
		t.Fatalf("expected a toast")
	}
	if f.prefs.reads != 0 {
		t.Fatalf("rejecting a signed-out request must not read preferences, got %d reads", f.prefs.reads)
	}
}

func TestAssistant_Analyze_MalformedResponse(t *testing.T) {
	f := newAssistantFixture()
	f.gemini.reply = "Sure! ```{not json}```"

	_, err := f.svc.Analyze(context.Background(), ports.AnalyzeInput{ClientID: testClient, Session: testSession, Code: "x := 1"})
	if !errors.Is(err, domain.ErrMalformedAIResponse) {
		t.Fatalf("expected ErrMalformedAIResponse, got %v", err)
	}
	if len(f.history.entries) != 0 || len(f.usage.deltas) != 0 {
		t.Fatalf("nothing should be persisted for a malformed response")
	}
	toasts, _ := f.notifier.Drain(context.Background(), testClient)
	if len(toasts) != 1 || !strings.Contains(toasts[0].Message, f.gemini.Hint()) {
		t.Fatalf("expected toast with provider hint, got %+v", toasts)
	}
}

func TestAssistant_Analyze_Success(t *testing.T) {
	f := newAssistantFixture()
	f.gemini.reply = "Here you go:\n```json\n{\"summary\": \"fine\", \"issues\": []}\n```"

	entry, err := f.svc.Analyze(context.Background(), ports.AnalyzeInput{ClientID: testClient, Session: testSession, Code: "x := 1", Language: "go"})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if string(entry.Result) != `{"summary":"fine","issues":[]}` {
		t.Fatalf("unexpected result %s", entry.Result)
	}
	if entry.Kind != domain.KindAnalysis || entry.UserID != "u1" || entry.Provider != domain.ProviderGemini {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(f.history.entries) != 1 {
		t.Fatalf("expected one history entry")
	}
	st, _ := f.usage.Get(context.Background(), "u1")
	if st == nil || st.AnalysesCount != 1 {
		t.Fatalf("expected analyses count 1, got %+v", st)
	}
	if !strings.Contains(f.gemini.prompts[0], "x := 1") {
		t.Fatalf("prompt does not carry the code")
	}
}

func TestAssistant_Solve_PersistFailure(t *testing.T) {
	f := newAssistantFixture()
	f.history.insertErr = errors.New("mongo down")

	_, err := f.svc.Solve(context.Background(), ports.SolveInput{ClientID: testClient, Session: testSession, Problem: "reverse a list"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(f.usage.deltas) != 0 {
		t.Fatalf("usage must not be recorded when persistence fails")
	}
	if f.notifier.count(testClient) != 1 {
		t.Fatalf("expected a toast")
	}
}

func TestAssistant_ProviderError(t *testing.T) {
	f := newAssistantFixture()
	f.gemini.err = errors.New("401 unauthorized")

	_, err := f.svc.Solve(context.Background(), ports.SolveInput{ClientID: testClient, Session: testSession, Problem: "p"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if f.notifier.count(testClient) != 1 {
		t.Fatalf("expected a toast")
	}
}

func TestAssistant_Chat_UsesProviderSelectedAtCallTime(t *testing.T) {
	f := newAssistantFixture()
	ctx := context.Background()
	f.gemini.reply = "hi from gemini"
	f.openai.reply = "hi from openai"

	first, err := f.svc.Chat(ctx, ports.ChatInput{ClientID: testClient, Session: testSession, Message: "hello"})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if first.Reply.Provider != domain.ProviderGemini {
		t.Fatalf("expected gemini, got %s", first.Reply.Provider)
	}

	if err := f.switcher.Set(ctx, testClient, domain.ProviderOpenAI); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	second, err := f.svc.Chat(ctx, ports.ChatInput{ClientID: testClient, Session: testSession, ConversationID: first.Conversation.ID, Message: "again"})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if second.Reply.Provider != domain.ProviderOpenAI || second.Reply.Content != "hi from openai" {
		t.Fatalf("expected openai reply, got %+v", second.Reply)
	}
	if len(f.openai.prompts) != 1 || len(f.gemini.prompts) != 1 {
		t.Fatalf("unexpected call counts: gemini=%d openai=%d", len(f.gemini.prompts), len(f.openai.prompts))
	}
	if !strings.Contains(f.openai.prompts[0], "hi from gemini") {
		t.Fatalf("follow-up prompt should carry the thread history")
	}
	if second.Conversation.ID != first.Conversation.ID {
		t.Fatalf("follow-up should stay in the same conversation")
	}
	if n := len(f.convos.messages); n != 4 {
		t.Fatalf("expected 4 stored messages, got %d", n)
	}
	st, _ := f.usage.Get(ctx, "u1")
	if st.ChatMessages != 2 {
		t.Fatalf("expected chat count 2, got %d", st.ChatMessages)
	}
}

func TestAssistant_Chat_OtherUsersConversation(t *testing.T) {
	f := newAssistantFixture()
	f.convos.convos["c1"] = domain.Conversation{ID: "c1", UserID: "someone-else"}

	_, err := f.svc.Chat(context.Background(), ports.ChatInput{ClientID: testClient, Session: testSession, ConversationID: "c1", Message: "hi"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(f.gemini.prompts) != 0 {
		t.Fatalf("provider must not be called")
	}
	if f.notifier.count(testClient) != 1 {
		t.Fatalf("expected one toast, got %d", f.notifier.count(testClient))
	}
}

func TestAssistant_Chat_UnknownConversation(t *testing.T) {
	f := newAssistantFixture()

	_, err := f.svc.Chat(context.Background(), ports.ChatInput{ClientID: testClient, Session: testSession, ConversationID: "nope", Message: "hi"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	toasts, _ := f.notifier.Drain(context.Background(), testClient)
	if len(toasts) != 1 {
		t.Fatalf("expected one toast, got %d", len(toasts))
	}
	if toasts[0].Title != opTitles[opChat] || !strings.Contains(toasts[0].Message, "not found") {
		t.Errorf("unexpected toast %+v", toasts[0])
	}
}

func TestAssistant_Chat_MessagesUnavailable(t *testing.T) {
	f := newAssistantFixture()
	f.convos.convos["c1"] = domain.Conversation{ID: "c1", UserID: testSession.UserID}
	f.convos.listErr = errors.New("mongo down")

	_, err := f.svc.Chat(context.Background(), ports.ChatInput{ClientID: testClient, Session: testSession, ConversationID: "c1", Message: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(f.gemini.prompts) != 0 {
		t.Fatalf("provider must not be called")
	}
	if f.notifier.count(testClient) != 1 {
		t.Fatalf("expected one toast, got %d", f.notifier.count(testClient))
	}
}

func TestAssistant_SupersededResponseIsDiscarded(t *testing.T) {
	f := newAssistantFixture()
	// a newer analyze request from the same browser arrives mid-flight
	f.gemini.onCall = func() { _, _ = f.seq.Next(context.Background(), testClient+":"+opAnalyze) }

	_, err := f.svc.Analyze(context.Background(), ports.AnalyzeInput{ClientID: testClient, Session: testSession, Code: "x"})
	if !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if len(f.history.entries) != 0 {
		t.Fatalf("superseded response must not be persisted")
	}
	if f.notifier.count(testClient) != 0 {
		t.Fatalf("superseded response should not toast")
	}
}
