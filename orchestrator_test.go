package hearth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Desarso/hearth/models"
	"github.com/Desarso/hearth/stores"
	"github.com/Desarso/hearth/tools"
)

type fakeBackend struct {
	available bool
	toolCalls []models.FunctionCall
	toolText  string
	reply     string
	toolsErr  error
	invokeErr error

	toolInvokes       int
	plainInvokes      int
	lastToolMessages  []models.Message
	lastPlainMessages []models.Message
}

func (b *fakeBackend) Available() bool { return b.available }

func (b *fakeBackend) Invoke(ctx context.Context, messages []models.Message) (string, error) {
	b.plainInvokes++
	b.lastPlainMessages = messages
	return b.reply, b.invokeErr
}

func (b *fakeBackend) Invoke_With_Tools(ctx context.Context, messages []models.Message, declarations []models.FunctionDeclaration) (models.Model_Response, error) {
	b.toolInvokes++
	b.lastToolMessages = messages
	if b.toolsErr != nil {
		return models.Model_Response{}, b.toolsErr
	}
	var parts []models.Model_Part
	if len(b.toolCalls) > 0 {
		for i := range b.toolCalls {
			parts = append(parts, models.Model_Part{FunctionCall: &b.toolCalls[i]})
		}
	} else {
		text := b.toolText
		parts = append(parts, models.Model_Part{Text: &text})
	}
	return models.Model_Response{Parts: parts}, nil
}

type stubHome struct{ status string }

func (h *stubHome) EventsInRange(ctx context.Context, startDate, endDate string) (string, error) {
	return "No events found.", nil
}

func (h *stubHome) DashboardStatus(ctx context.Context) (string, error) {
	if h.status == "" {
		return "All quiet.", nil
	}
	return h.status, nil
}

func (h *stubHome) SecuritySummary(ctx context.Context) (string, error) {
	return "", nil
}

func (h *stubHome) CallAction(ctx context.Context, domain, service, entityID string) (string, error) {
	return fmt.Sprintf("success: called %s.%s on %s", domain, service, entityID), nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, filePath string) (string, error) {
	return s.text, s.err
}

type fixture struct {
	local       *fakeBackend
	cloud       Backend
	mem         *stubMemory
	home        *stubHome
	store       stores.Store
	search      tools.SearchFunc
	gate        bool
	transcriber Transcriber
	auditPath   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		local:     &fakeBackend{available: true, reply: "ok"},
		mem:       &stubMemory{},
		home:      &stubHome{},
		auditPath: filepath.Join(t.TempDir(), "audit.log"),
	}
}

func (f *fixture) build(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := &Config{
		FamilyName:           "Riveras",
		Parents:              "Ana and Luis",
		MemoryTopK:           3,
		SearchEnabled:        true,
		RequireSearchConfirm: f.gate,
	}
	registry := tools.NewRegistry(f.home, f.mem, f.search, f.store, f.gate)
	o, err := New_Orchestrator(cfg, f.local, f.cloud, registry, f.mem, f.transcriber, NewAuditLog(f.auditPath))
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o
}

func (f *fixture) auditContents(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.auditPath)
	if err != nil {
		return ""
	}
	return string(data)
}

func req(text string) Request {
	return Request{UserID: "42", UserName: "Ana", Text: text}
}

func TestNewOrchestratorRequiresBackend(t *testing.T) {
	cfg := &Config{MemoryTopK: 3}
	if _, err := New_Orchestrator(cfg, nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected an error with no backend configured")
	}
}

func TestProcessGateCodeFromContext(t *testing.T) {
	f := newFixture(t)
	f.mem.facts = []string{"gate code is 1234"}
	f.local.toolText = "Your gate code is 1234."
	o := f.build(t)

	reply := o.Process(context.Background(), req("What's my gate code?"))

	if !strings.Contains(reply.Text, "1234") {
		t.Errorf("expected the gate code in the reply, got %q", reply.Text)
	}
	system := f.local.lastToolMessages[0]
	if system.Role != models.RoleSystem {
		t.Fatalf("first message should be the system prompt, got role %q", system.Role)
	}
	if !strings.Contains(system.Content, "gate code is 1234") {
		t.Errorf("retrieved fact missing from system prompt:\n%s", system.Content)
	}
}

func TestProcessCloudFallbackAudited(t *testing.T) {
	f := newFixture(t)
	f.local.toolText = "Here's your day."
	o := f.build(t)

	reply := o.Process(context.Background(), req("/cloud summarize my day"))

	if reply.Text == "" {
		t.Error("fallback must still produce a non-empty reply")
	}
	if f.local.toolInvokes != 1 {
		t.Errorf("local backend should have served the turn, invokes=%d", f.local.toolInvokes)
	}
	if got := f.auditContents(t); !strings.Contains(got, "ROUTE=LOCAL (Fallback)") {
		t.Errorf("audit log missing fallback route tag:\n%s", got)
	}
}

func TestProcessCloudRouteUsesCloudBackend(t *testing.T) {
	f := newFixture(t)
	cloud := &fakeBackend{available: true, toolText: "From the cloud."}
	f.cloud = cloud
	o := f.build(t)

	reply := o.Process(context.Background(), req("/cloud summarize my day"))

	if reply.Text != "From the cloud." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if cloud.toolInvokes != 1 || f.local.toolInvokes != 0 {
		t.Errorf("cloud backend should have served the turn: cloud=%d local=%d",
			cloud.toolInvokes, f.local.toolInvokes)
	}
	if got := f.auditContents(t); !strings.Contains(got, "ROUTE=CLOUD") {
		t.Errorf("audit log missing cloud route tag:\n%s", got)
	}
}

func TestProcessWebSearchContext(t *testing.T) {
	f := newFixture(t)
	var searched []string
	f.search = func(ctx context.Context, query string) (string, error) {
		searched = append(searched, query)
		return "1. Sunny, 25C", nil
	}
	f.local.toolText = "It's sunny."
	o := f.build(t)

	o.Process(context.Background(), req("search for today's weather"))

	if len(searched) != 1 || searched[0] != "today's weather" {
		t.Fatalf("expected one search for the stripped query, got %v", searched)
	}
	system := f.local.lastToolMessages[0].Content
	if !strings.Contains(system, "Search Results for 'today's weather':") {
		t.Errorf("system prompt missing the search block:\n%s", system)
	}
	if got := f.auditContents(t); !strings.Contains(got, "ROUTE=WEB") {
		t.Errorf("audit log missing web route tag:\n%s", got)
	}
}

func TestProcessToolRoundTripBound(t *testing.T) {
	f := newFixture(t)
	f.local.toolCalls = []models.FunctionCall{
		{ID: "call_0", Name: "check_home", Args: map[string]interface{}{}},
	}
	f.local.reply = "All quiet at home."
	o := f.build(t)

	reply := o.Process(context.Background(), req("how's the house?"))

	if reply.Text != "All quiet at home." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if f.local.toolInvokes != 1 || f.local.plainInvokes != 1 {
		t.Errorf("backend invoked more than twice: tools=%d plain=%d",
			f.local.toolInvokes, f.local.plainInvokes)
	}
	last := f.local.lastPlainMessages[len(f.local.lastPlainMessages)-1]
	if last.Role != models.RoleTool {
		t.Errorf("tool result should be appended as a tool message, got role %q", last.Role)
	}
	if !strings.Contains(last.Content, "All quiet.") {
		t.Errorf("tool output missing from follow-up messages, got %q", last.Content)
	}
}

func TestProcessUnknownToolReported(t *testing.T) {
	f := newFixture(t)
	f.local.toolCalls = []models.FunctionCall{
		{ID: "call_0", Name: "launch_rocket", Args: map[string]interface{}{}},
	}
	f.local.reply = "Sorry, I can't do that."
	o := f.build(t)

	reply := o.Process(context.Background(), req("launch the rocket"))

	if reply.Text != "Sorry, I can't do that." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	last := f.local.lastPlainMessages[len(f.local.lastPlainMessages)-1]
	if !strings.Contains(last.Content, "tool failed") {
		t.Errorf("unknown tool should feed back a failure result, got %q", last.Content)
	}
}

func TestProcessBackendFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.local.toolsErr = fmt.Errorf("connection refused")
	o := f.build(t)

	reply := o.Process(context.Background(), req("hello"))

	if reply.Text != "I'm having trouble thinking right now (LLM Error)." {
		t.Errorf("unexpected degraded reply %q", reply.Text)
	}
	if got := f.auditContents(t); !strings.Contains(got, "RESPONSE: I'm having trouble thinking right now (LLM Error).") {
		t.Errorf("backend failure must still be audited:\n%s", got)
	}
}

func TestProcessEmptyInput(t *testing.T) {
	f := newFixture(t)
	o := f.build(t)

	reply := o.Process(context.Background(), req("   "))

	if reply.Text != "I didn't catch that." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if f.local.toolInvokes != 0 {
		t.Error("backend should not be invoked for empty input")
	}
}

func TestProcessTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.transcriber = &stubTranscriber{err: fmt.Errorf("unreadable")}
	o := f.build(t)

	reply := o.Process(context.Background(), Request{UserID: "42", UserName: "Ana", AudioPath: "clip.ogg"})

	if reply.Text != "I had trouble listening to that audio." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if got := f.auditContents(t); !strings.Contains(got, "RESPONSE: I had trouble listening to that audio.") {
		t.Errorf("transcription failure must still be audited:\n%s", got)
	}
}

func TestProcessTranscribedAudio(t *testing.T) {
	f := newFixture(t)
	f.transcriber = &stubTranscriber{text: "what time is it"}
	f.local.toolText = "It's noon."
	o := f.build(t)

	reply := o.Process(context.Background(), Request{UserID: "42", UserName: "Ana", AudioPath: "clip.ogg"})

	if reply.Text != "It's noon." {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	user := f.local.lastToolMessages[len(f.local.lastToolMessages)-1]
	if user.Content != "what time is it" {
		t.Errorf("transcript should become the prompt, got %q", user.Content)
	}
}

func TestProcessRememberHeuristic(t *testing.T) {
	f := newFixture(t)
	o := f.build(t)

	reply := o.Process(context.Background(), req("remember that the wifi password is hunter2"))

	if reply.Text != "I've remembered: the wifi password is hunter2" {
		t.Errorf("unexpected reply %q", reply.Text)
	}
	if len(f.mem.added) != 1 || f.mem.added[0] != "the wifi password is hunter2" {
		t.Errorf("fact not stored once, got %v", f.mem.added)
	}
	if f.local.toolInvokes != 0 {
		t.Error("remember trigger should skip the tool-augmented turn")
	}
	if got := f.auditContents(t); !strings.Contains(got, "I've remembered:") {
		t.Errorf("remember path must still be audited:\n%s", got)
	}
}

func TestProcessPendingPermissionExit(t *testing.T) {
	f := newFixture(t)
	f.gate = true
	store, err := stores.NewSQLiteStoreSimple(filepath.Join(t.TempDir(), "pending.sqlite"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	f.store = store

	var searched []string
	f.search = func(ctx context.Context, query string) (string, error) {
		searched = append(searched, query)
		return "results", nil
	}
	f.local.toolCalls = []models.FunctionCall{
		{ID: "call_0", Name: "web_search", Args: map[string]interface{}{"query": "is the library open today"}},
	}
	o := f.build(t)

	reply := o.Process(context.Background(), req("is the library open today?"))

	if reply.Pending == nil {
		t.Fatal("expected a pending permission marker")
	}
	if reply.Pending.Query != "is the library open today" {
		t.Errorf("pending marker lost the query, got %q", reply.Pending.Query)
	}
	if len(searched) != 0 {
		t.Errorf("gated search must not execute, got %v", searched)
	}
	if got := f.auditContents(t); got != "" {
		t.Errorf("pending exit should not be audited:\n%s", got)
	}

	// The resumption is an independent request carrying only the token.
	answer := o.ResolvePermission(context.Background(), reply.Pending.Token, true)
	if answer != "ok" {
		t.Errorf("unexpected approval reply %q", answer)
	}
	if len(searched) != 1 || searched[0] != "is the library open today" {
		t.Errorf("approval should re-run the original query, got %v", searched)
	}
	if got := f.auditContents(t); !strings.Contains(got, "ROUTE=WEB") {
		t.Errorf("resolved search must be audited:\n%s", got)
	}
}

func TestResolvePermissionDeny(t *testing.T) {
	f := newFixture(t)
	f.gate = true
	store, err := stores.NewSQLiteStoreSimple(filepath.Join(t.TempDir(), "pending.sqlite"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	f.store = store

	var searched []string
	f.search = func(ctx context.Context, query string) (string, error) {
		searched = append(searched, query)
		return "results", nil
	}
	f.local.toolCalls = []models.FunctionCall{
		{ID: "call_0", Name: "web_search", Args: map[string]interface{}{"query": "secret plans"}},
	}
	o := f.build(t)

	reply := o.Process(context.Background(), req("look up secret plans"))
	if reply.Pending == nil {
		t.Fatal("expected a pending permission marker")
	}

	answer := o.ResolvePermission(context.Background(), reply.Pending.Token, false)
	if answer != "Search denied." {
		t.Errorf("unexpected denial reply %q", answer)
	}
	if len(searched) != 0 {
		t.Errorf("denied search must not execute, got %v", searched)
	}
	if _, err := store.TakePending(reply.Pending.Token); err == nil {
		t.Error("denial should consume the pending record")
	}
}

func TestResolvePermissionExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.gate = true
	store, err := stores.NewSQLiteStoreSimple(filepath.Join(t.TempDir(), "pending.sqlite"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	f.store = store
	f.search = func(ctx context.Context, query string) (string, error) { return "results", nil }
	o := f.build(t)

	answer := o.ResolvePermission(context.Background(), "no-such-token", true)
	if answer != "That permission request has expired." {
		t.Errorf("unexpected reply %q", answer)
	}
}
