package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Identity provider
// ---------------------------------------------------------------------------

type stubIdentity struct {
	mu    sync.Mutex
	calls []string

	signIn        func(email, password string) (domain.Tokens, error)
	sendMagicLink func(email string, createUser bool, meta map[string]string) error
	resetPassword func(email string) error
	updateUser    func(accessToken string, attrs ports.UserAttributes) error
	resend        func(email string) error
	getUser       func(accessToken string) (*domain.IdentityUser, error)
	verifyOTP     func(otpType, token string) (domain.Tokens, error)
	refresh       func(refreshToken string) (domain.Tokens, error)
	verifyAdmin   func(email, password string) (bool, error)
	isAdmin       func(email string) (bool, error)

	magicLinks []string
	updates    []ports.UserAttributes
}

func (s *stubIdentity) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *stubIdentity) called(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (s *stubIdentity) SignIn(_ context.Context, email, password string) (domain.Tokens, error) {
	s.record("SignIn")
	if s.signIn != nil {
		return s.signIn(email, password)
	}
	return domain.Tokens{AccessToken: "at-" + email, RefreshToken: "rt-" + email}, nil
}

func (s *stubIdentity) SignOut(_ context.Context, _ string) error {
	s.record("SignOut")
	return nil
}

func (s *stubIdentity) SendMagicLink(_ context.Context, email string, createUser bool, meta map[string]string) error {
	s.record("SendMagicLink")
	s.mu.Lock()
	s.magicLinks = append(s.magicLinks, email)
	s.mu.Unlock()
	if s.sendMagicLink != nil {
		return s.sendMagicLink(email, createUser, meta)
	}
	return nil
}

func (s *stubIdentity) ResetPassword(_ context.Context, email string) error {
	s.record("ResetPassword")
	if s.resetPassword != nil {
		return s.resetPassword(email)
	}
	return nil
}

func (s *stubIdentity) UpdateUser(_ context.Context, accessToken string, attrs ports.UserAttributes) error {
	s.record("UpdateUser")
	s.mu.Lock()
	s.updates = append(s.updates, attrs)
	s.mu.Unlock()
	if s.updateUser != nil {
		return s.updateUser(accessToken, attrs)
	}
	return nil
}

func (s *stubIdentity) ResendVerification(_ context.Context, email string) error {
	s.record("ResendVerification")
	if s.resend != nil {
		return s.resend(email)
	}
	return nil
}

// GetUser derives the user from the access token: "at-<email>".
func (s *stubIdentity) GetUser(_ context.Context, accessToken string) (*domain.IdentityUser, error) {
	s.record("GetUser")
	if s.getUser != nil {
		return s.getUser(accessToken)
	}
	email := accessToken
	if len(email) > 3 && email[:3] == "at-" {
		email = email[3:]
	}
	return &domain.IdentityUser{ID: "uid-" + email, Email: email, EmailVerified: true}, nil
}

func (s *stubIdentity) VerifyOTP(_ context.Context, otpType, token string) (domain.Tokens, error) {
	s.record("VerifyOTP")
	if s.verifyOTP != nil {
		return s.verifyOTP(otpType, token)
	}
	return domain.Tokens{AccessToken: "at-a@x.com", RefreshToken: "rt"}, nil
}

func (s *stubIdentity) Refresh(_ context.Context, refreshToken string) (domain.Tokens, error) {
	s.record("Refresh")
	if s.refresh != nil {
		return s.refresh(refreshToken)
	}
	return domain.Tokens{}, domain.ErrUnauthenticated
}

func (s *stubIdentity) VerifyAdminCredentials(_ context.Context, email, password string) (bool, error) {
	s.record("VerifyAdminCredentials")
	if s.verifyAdmin != nil {
		return s.verifyAdmin(email, password)
	}
	return false, nil
}

func (s *stubIdentity) IsAdmin(_ context.Context, email string) (bool, error) {
	s.record("IsAdmin")
	if s.isAdmin != nil {
		return s.isAdmin(email)
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Browser and session state
// ---------------------------------------------------------------------------

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *memSessionStore) Save(_ context.Context, s *domain.Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

type memFlowStore struct {
	flows map[string]domain.AuthFlowState
}

func newMemFlowStore() *memFlowStore {
	return &memFlowStore{flows: make(map[string]domain.AuthFlowState)}
}

func (m *memFlowStore) GetFlow(_ context.Context, clientID string) (domain.AuthFlowState, error) {
	if st, ok := m.flows[clientID]; ok {
		return st, nil
	}
	return domain.NewAuthFlowState(), nil
}

func (m *memFlowStore) SaveFlow(_ context.Context, clientID string, st domain.AuthFlowState) error {
	m.flows[clientID] = st
	return nil
}

func (m *memFlowStore) ClearFlow(_ context.Context, clientID string) error {
	delete(m.flows, clientID)
	return nil
}

type memPending struct {
	entries map[string]domain.PendingSignup
}

func newMemPending() *memPending {
	return &memPending{entries: make(map[string]domain.PendingSignup)}
}

func (m *memPending) Put(_ context.Context, clientID string, p domain.PendingSignup) error {
	m.entries[clientID] = p
	return nil
}

func (m *memPending) Take(_ context.Context, clientID string) (*domain.PendingSignup, error) {
	p, ok := m.entries[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.entries, clientID)
	return &p, nil
}

type memNotifier struct {
	mu     sync.Mutex
	toasts map[string][]domain.Toast
}

func newMemNotifier() *memNotifier {
	return &memNotifier{toasts: make(map[string][]domain.Toast)}
}

func (m *memNotifier) Toast(_ context.Context, clientID string, t domain.Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts[clientID] = append(m.toasts[clientID], t)
	return nil
}

func (m *memNotifier) Drain(_ context.Context, clientID string) ([]domain.Toast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.toasts[clientID]
	delete(m.toasts, clientID)
	return out, nil
}

func (m *memNotifier) count(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts[clientID])
}

type memPrefs struct {
	prefs map[string]domain.Preferences
	reads int
}

func newMemPrefs() *memPrefs {
	return &memPrefs{prefs: make(map[string]domain.Preferences)}
}

func (m *memPrefs) GetPreferences(_ context.Context, clientID string) (domain.Preferences, error) {
	m.reads++
	return m.prefs[clientID], nil
}

func (m *memPrefs) SetProvider(_ context.Context, clientID string, p domain.AIProvider) error {
	pr := m.prefs[clientID]
	pr.Provider = p
	m.prefs[clientID] = pr
	return nil
}

func (m *memPrefs) SetTheme(_ context.Context, clientID string, t domain.Theme) error {
	pr := m.prefs[clientID]
	pr.Theme = t
	m.prefs[clientID] = pr
	return nil
}

type memSequencer struct {
	mu  sync.Mutex
	ids map[string]int64
}

func newMemSequencer() *memSequencer {
	return &memSequencer{ids: make(map[string]int64)}
}

func (m *memSequencer) Next(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[key]++
	return m.ids[key], nil
}

func (m *memSequencer) Latest(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[key], nil
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memProfiles struct {
	byUser map[string]domain.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byUser: make(map[string]domain.Profile)}
}

func (m *memProfiles) Upsert(_ context.Context, p *domain.Profile) error {
	m.byUser[p.UserID] = *p
	return nil
}

func (m *memProfiles) FindByUserID(_ context.Context, userID string) (*domain.Profile, error) {
	p, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

type memUsage struct {
	mu     sync.Mutex
	byUser map[string]domain.UsageStats
	deltas []ports.UsageDelta
}

func newMemUsage() *memUsage {
	return &memUsage{byUser: make(map[string]domain.UsageStats)}
}

func (m *memUsage) Apply(_ context.Context, d ports.UsageDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.byUser[d.UserID]
	st.UserID = d.UserID
	st.AnalysesCount += d.Analyses
	st.ProblemsSolved += d.ProblemsSolved
	st.ChatMessages += d.ChatMessages
	st.LastActivity = d.At
	m.byUser[d.UserID] = st
	m.deltas = append(m.deltas, d)
	return nil
}

// Record lets memUsage stand in for the asynchronous recorder too.
func (m *memUsage) Record(d ports.UsageDelta) {
	_ = m.Apply(context.Background(), d)
}

func (m *memUsage) Get(_ context.Context, userID string) (*domain.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *memUsage) List(_ context.Context, page, limit int) ([]domain.UsageStats, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.UsageStats, 0, len(m.byUser))
	for _, st := range m.byUser {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, int64(len(all)), nil
	}
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (m *memUsage) Totals(_ context.Context) (ports.UsageTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t ports.UsageTotals
	for _, st := range m.byUser {
		t.Users++
		t.Analyses += st.AnalysesCount
		t.ProblemsSolved += st.ProblemsSolved
		t.ChatMessages += st.ChatMessages
	}
	return t, nil
}

type memHistory struct {
	entries   []domain.HistoryEntry
	insertErr error
	lastList  ports.HistoryFilter
}

func (m *memHistory) Insert(_ context.Context, e *domain.HistoryEntry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memHistory) List(_ context.Context, f ports.HistoryFilter) ([]domain.HistoryEntry, int64, error) {
	m.lastList = f
	var out []domain.HistoryEntry
	for _, e := range m.entries {
		if e.UserID == f.UserID && (f.Kind == "" || e.Kind == f.Kind) {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

type memConversations struct {
	convos   map[string]domain.Conversation
	messages []domain.Message
	listErr  error
}

func newMemConversations() *memConversations {
	return &memConversations{convos: make(map[string]domain.Conversation)}
}

func (m *memConversations) CreateConversation(_ context.Context, c *domain.Conversation) error {
	m.convos[c.ID] = *c
	return nil
}

func (m *memConversations) FindConversation(_ context.Context, id, userID string) (*domain.Conversation, error) {
	c, ok := m.convos[id]
	if !ok || c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memConversations) ListConversations(_ context.Context, userID string, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, c := range m.convos {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memConversations) AppendMessages(_ context.Context, msgs ...*domain.Message) error {
	for _, msg := range msgs {
		m.messages = append(m.messages, *msg)
	}
	return nil
}

func (m *memConversations) ListMessages(_ context.Context, conversationID, userID string, limit int) ([]domain.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// AI providers
// ---------------------------------------------------------------------------

type stubGenerator struct {
	id      domain.AIProvider
	reply   string
	err     error
	prompts []string
	onCall  func()
}

func (g *stubGenerator) ID() domain.AIProvider { return g.id }
func (g *stubGenerator) DisplayName() string   { return string(g.id) }
func (g *stubGenerator) Hint() string          { return "Check the " + string(g.id) + " API key." }

func (g *stubGenerator) Generate(_ context.Context, prompt string) (domain.AIResponse, error) {
	g.prompts = append(g.prompts, prompt)
	if g.onCall != nil {
		g.onCall()
	}
	if g.err != nil {
		return domain.AIResponse{}, g.err
	}
	return domain.AIResponse{Provider: g.id, Text: g.reply}, nil
}

type stubRegistry map[domain.AIProvider]*stubGenerator

func (r stubRegistry) Get(p domain.AIProvider) (ports.Generator, error) {
	g, ok := r[p]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return g, nil
}
