// Package hearth is the core of a local-first family assistant: a router
// picks a backend per request, a context builder grounds the prompt with
// retrieved facts, and the orchestrator drives the tool-calling turn and
// writes the audit trail.
package hearth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Desarso/hearth/memory"
	"github.com/Desarso/hearth/models"
	"github.com/Desarso/hearth/tools"
)

// Backend is the capability contract both inference backends satisfy.
type Backend interface {
	Invoke(ctx context.Context, messages []models.Message) (string, error)
	Invoke_With_Tools(ctx context.Context, messages []models.Message, declarations []models.FunctionDeclaration) (models.Model_Response, error)
	Available() bool
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

// Request is one inbound turn. It is built fresh per call and not retained
// after Process returns; no cross-request session state exists in the core.
type Request struct {
	UserID    string
	UserName  string
	Text      string
	AudioPath string
}

// Reply is the outcome of one turn: final text, or a pending-permission
// marker the caller must resolve as an explicit approve/deny choice.
type Reply struct {
	Text    string
	Pending *tools.PendingPermission
}

const (
	replyBadAudio     = "I had trouble listening to that audio."
	replyNoInput      = "I didn't catch that."
	replyLLMError     = "I'm having trouble thinking right now (LLM Error)."
	replySearchDenied = "Search denied."
	replySaveFailed   = "I couldn't save that just now."
)

// Orchestrator ties the router, context builder, backends, tool registry
// and audit log into the end-to-end turn.
type Orchestrator struct {
	cfg      *Config
	local    Backend
	cloud    Backend
	router   *Router
	builder  *ContextBuilder
	registry *tools.Registry
	memory   Memory
	audio    Transcriber
	audit    *AuditLog
}

// New_Orchestrator wires the core together. At least one backend must be
// configured; that is the only condition allowed to keep the orchestrator
// from entering service.
func New_Orchestrator(cfg *Config, local, cloud Backend, registry *tools.Registry, mem Memory, transcriber Transcriber, audit *AuditLog) (*Orchestrator, error) {
	if local == nil && cloud == nil {
		return nil, fmt.Errorf("no inference backend configured")
	}

	var search SearchFunc
	if registry != nil && registry.HasSearch() {
		search = registry.Search
	}

	cloudAvailable := func() bool { return cloud != nil && cloud.Available() }
	searchEnabled := cfg.SearchEnabled && search != nil

	return &Orchestrator{
		cfg:      cfg,
		local:    local,
		cloud:    cloud,
		router:   NewRouter(cloudAvailable, searchEnabled),
		builder:  NewContextBuilder(mem, search, cfg.MemoryTopK),
		registry: registry,
		memory:   mem,
		audio:    transcriber,
		audit:    audit,
	}, nil
}

// Process runs one request through the full turn: transcribe if needed,
// route, build context, invoke the backend with tool schemas, execute any
// tool calls, reinvoke for the final text, audit, reply. Every failure
// path substitutes a fixed apology text and still reaches the audit step;
// only a pending permission exits early, unaudited, to be resolved later.
func (o *Orchestrator) Process(ctx context.Context, req Request) Reply {
	userLabel := fmt.Sprintf("%s (%s)", displayName(req), req.UserID)

	prompt := req.Text
	if req.AudioPath != "" {
		text, err := o.transcribe(ctx, req.AudioPath)
		if err != nil {
			log.Printf("Transcription failed: %v", err)
			o.record(userLabel, "<audio>", replyBadAudio, "LOCAL")
			return Reply{Text: replyBadAudio}
		}
		log.Printf("Transcribed: %s", text)
		prompt = text
	}

	if strings.TrimSpace(prompt) == "" {
		o.record(userLabel, prompt, replyNoInput, "LOCAL")
		return Reply{Text: replyNoInput}
	}

	route, stripped := o.router.Route(prompt)

	// An explicit remember trigger stores the fact directly and skips the
	// tool-augmented turn, so one request stores at most one copy.
	if fact, ok := rememberRequest(prompt); ok {
		reply := o.rememberFact(ctx, req.UserID, fact)
		o.record(userLabel, prompt, reply, route.Tag())
		return Reply{Text: reply}
	}

	contextStr := o.builder.Build(ctx, stripped, route)

	messages := []models.Message{
		models.System_Message(o.systemPrompt(displayName(req), contextStr)),
		models.User_Message(stripped),
	}

	backend := o.backendFor(route)
	log.Printf("Invoking %s with prompt: %s", route.Tag(), truncate(stripped, 50))

	resp, err := backend.Invoke_With_Tools(ctx, messages, o.registry.Declarations())
	if err != nil {
		log.Printf("LLM Error: %v", err)
		o.record(userLabel, stripped, replyLLMError, route.Tag())
		return Reply{Text: replyLLMError}
	}

	final := resp.Text()
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		caller := tools.Caller{UserID: req.UserID, UserName: displayName(req)}
		for _, call := range calls {
			result := o.registry.Execute(ctx, caller, call)
			if result.Pending != nil {
				return Reply{Pending: result.Pending}
			}
			messages = append(messages, models.Tool_Message(result.Output))
		}
		// The second invoke omits the tool schemas to force a natural
		// language summary. Tool calls returned here are not executed.
		final, err = backend.Invoke(ctx, messages)
		if err != nil {
			log.Printf("LLM Error: %v", err)
			o.record(userLabel, stripped, replyLLMError, route.Tag())
			return Reply{Text: replyLLMError}
		}
	}

	o.record(userLabel, stripped, final, route.Tag())
	return Reply{Text: final}
}

// ResolvePermission settles a pending web-search request. Deny discards
// the stored record; approve re-runs the search with the original query
// and summarizes the results through the local backend. Each token works
// exactly once.
func (o *Orchestrator) ResolvePermission(ctx context.Context, token string, approve bool) string {
	if !approve {
		if _, err := o.registry.TakePending(token); err != nil {
			log.Printf("Pending discard failed: %v", err)
		}
		return replySearchDenied
	}

	pending, err := o.registry.TakePending(token)
	if err != nil {
		log.Printf("Pending lookup failed: %v", err)
		return "That permission request has expired."
	}

	caller := tools.Caller{UserID: pending.UserID, UserName: pending.UserName}
	result := o.registry.Execute(ctx, caller, models.FunctionCall{
		Name: "web_search",
		Args: map[string]interface{}{"query": pending.Query, "approved": true},
	})

	route := Route{Kind: KindLocal, Web: true, Query: pending.Query}
	contextStr := fmt.Sprintf("%s\n\nSearch Results for '%s':\n%s",
		noFactsPlaceholder, pending.Query, result.Output)
	messages := []models.Message{
		models.System_Message(o.systemPrompt(pending.UserName, contextStr)),
		models.User_Message(pending.Query),
	}

	backend := o.backendFor(route)
	reply, err := backend.Invoke(ctx, messages)
	if err != nil {
		log.Printf("LLM Error: %v", err)
		reply = replyLLMError
	}

	userLabel := fmt.Sprintf("%s (%s)", pending.UserName, pending.UserID)
	o.record(userLabel, pending.Query, reply, route.Tag())
	return reply
}

func (o *Orchestrator) transcribe(ctx context.Context, path string) (string, error) {
	if o.audio == nil {
		return "", fmt.Errorf("no transcriber configured")
	}
	return o.audio.Transcribe(ctx, path)
}

func (o *Orchestrator) backendFor(route Route) Backend {
	if route.Kind == KindCloud && o.cloud != nil {
		return o.cloud
	}
	if o.local != nil {
		return o.local
	}
	return o.cloud
}

func (o *Orchestrator) rememberFact(ctx context.Context, userID, fact string) string {
	if o.memory == nil {
		return replySaveFailed
	}
	if _, err := o.memory.Add(ctx, fact, memory.Metadata{Source: "user", UserID: userID}); err != nil {
		log.Printf("Fact save failed: %v", err)
		return replySaveFailed
	}
	return fmt.Sprintf("I've remembered: %s", fact)
}

func (o *Orchestrator) record(user, prompt, response, tag string) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Record(user, prompt, response, tag); err != nil {
		log.Printf("Audit write failed: %v", err)
	}
}

func (o *Orchestrator) systemPrompt(userName, contextStr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Hearth, a warm and helpful family assistant for the %s.\n", o.cfg.FamilyName)
	fmt.Fprintf(&b, "The parents are %s.\n", o.cfg.Parents)
	fmt.Fprintf(&b, "You are speaking with %s.\n", userName)
	fmt.Fprintf(&b, "Current Date: %s.\n", time.Now().Format("2006-01-02 Monday"))
	b.WriteString("You have access to the following family context:\n")
	b.WriteString(contextStr)
	b.WriteString("\n\n")
	b.WriteString("You have Long-Term Memory tools: 'remember_fact' and 'search_memory'.\n")
	b.WriteString("- If the user tells you a fact, use 'remember_fact'.\n")
	b.WriteString("- If asked a question you might know from the past, use 'search_memory'.\n")
	b.WriteString("You also have access to the Internet via the 'web_search' tool. Use it for current events.\n")
	b.WriteString("If asked about the house or calendar, use the tools provided.\n")
	b.WriteString("When asked for 'this week', use start_date=today and end_date=today+7 days. ")
	b.WriteString("When asked for 'tomorrow', use date+1. Do not hallucinate calendar events.\n")
	b.WriteString("Answer the user's request concisely and warmly. If the info isn't in context and you don't know, say so.")
	return b.String()
}

// rememberRequest reports whether the pre-strip prompt carries an explicit
// remember trigger, and extracts the fact text if so.
func rememberRequest(prompt string) (string, bool) {
	lower := strings.ToLower(prompt)
	if !strings.HasPrefix(prompt, "/remember") && !strings.Contains(lower, "remember that") {
		return "", false
	}
	fact := strings.ReplaceAll(prompt, "/remember", "")
	fact = stripFold(fact, "remember that")
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return "", false
	}
	return fact, true
}

func displayName(req Request) string {
	if req.UserName == "" {
		return "User"
	}
	return req.UserName
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
