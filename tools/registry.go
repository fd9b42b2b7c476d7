// Package tools maps tool calls issued by a backend onto real actions:
// the smart-home gateway, long-term memory, and gated web search.
package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Desarso/hearth/memory"
	"github.com/Desarso/hearth/models"
	"github.com/Desarso/hearth/stores"
	"github.com/google/uuid"
)

// ToolID enumerates the dispatchable tools.
type ToolID int

const (
	ToolUnknown ToolID = iota
	ToolCalendarEvents
	ToolCheckHome
	ToolControlDevice
	ToolWebSearch
	ToolRememberFact
	ToolSearchMemory
)

var toolIDsByName = map[string]ToolID{
	"get_calendar_events": ToolCalendarEvents,
	"check_home":          ToolCheckHome,
	"control_device":      ToolControlDevice,
	"web_search":          ToolWebSearch,
	"remember_fact":       ToolRememberFact,
	"search_memory":       ToolSearchMemory,
}

// PendingTTL is how long an unresolved permission request stays valid.
const PendingTTL = 10 * time.Minute

// HomeGateway is the slice of the smart-home client the registry needs.
type HomeGateway interface {
	EventsInRange(ctx context.Context, startDate, endDate string) (string, error)
	DashboardStatus(ctx context.Context) (string, error)
	SecuritySummary(ctx context.Context) (string, error)
	CallAction(ctx context.Context, domain, service, entityID string) (string, error)
}

// MemoryGateway is the slice of the memory system the registry needs.
type MemoryGateway interface {
	Add(ctx context.Context, text string, meta memory.Metadata) (string, error)
	Query(ctx context.Context, text string, k int) ([]string, error)
}

// Caller identifies who is behind the current request, for fact metadata
// and pending permission records.
type Caller struct {
	UserID   string
	UserName string
}

// PendingPermission is the marker returned instead of a result when a
// gated tool needs explicit approval. It short-circuits the turn.
type PendingPermission struct {
	Token string
	Query string
}

// Result is the outcome of one tool call: either output text to feed back
// to the backend, or a pending-permission marker.
type Result struct {
	Output  string
	Pending *PendingPermission
}

// Registry holds the tool schemas and the gateways tools execute against.
// Built once at startup, immutable afterwards.
type Registry struct {
	home   HomeGateway
	memory MemoryGateway
	search SearchFunc
	store  stores.Store

	// RequireSearchConfirm gates web_search behind caller approval.
	RequireSearchConfirm bool

	declarations []models.FunctionDeclaration
}

// NewRegistry creates the tool registry. A nil search function leaves
// web_search (and web routing) unconfigured.
func NewRegistry(home HomeGateway, mem MemoryGateway, search SearchFunc, store stores.Store, requireSearchConfirm bool) *Registry {
	return &Registry{
		home:                 home,
		memory:               mem,
		search:               search,
		store:                store,
		RequireSearchConfirm: requireSearchConfirm,
		declarations:         DefaultTools(),
	}
}

// Declarations returns the static tool schema list sent to backends.
func (r *Registry) Declarations() []models.FunctionDeclaration {
	return r.declarations
}

// HasSearch reports whether a web-search capability is configured.
func (r *Registry) HasSearch() bool {
	return r.search != nil
}

// Search runs the configured search capability directly (used by the
// context builder for web-augmented routes and by the approval path).
func (r *Registry) Search(ctx context.Context, query string) (string, error) {
	if r.search == nil {
		return "", fmt.Errorf("no search capability configured")
	}
	return r.search(ctx, query)
}

// Execute dispatches one tool call. Execution failures come back as a
// "tool failed" result rather than an error so the turn continues; only
// the pending-permission marker interrupts the flow.
func (r *Registry) Execute(ctx context.Context, caller Caller, call models.FunctionCall) Result {
	log.Printf("Executing tool: %s with args %v", call.Name, call.Args)

	id, ok := toolIDsByName[call.Name]
	if !ok {
		return failure(fmt.Errorf("unknown tool %q", call.Name))
	}

	switch id {
	case ToolCalendarEvents:
		return r.calendarEvents(ctx, call.Args)
	case ToolCheckHome:
		return r.checkHome(ctx)
	case ToolControlDevice:
		return r.controlDevice(ctx, call.Args)
	case ToolWebSearch:
		return r.webSearch(ctx, caller, call.Args)
	case ToolRememberFact:
		return r.rememberFact(ctx, caller, call.Args)
	case ToolSearchMemory:
		return r.searchMemory(ctx, call.Args)
	default:
		return failure(fmt.Errorf("unknown tool %q", call.Name))
	}
}

func failure(err error) Result {
	log.Printf("Tool failure: %v", err)
	return Result{Output: fmt.Sprintf("tool failed: %v", err)}
}

func (r *Registry) calendarEvents(ctx context.Context, rawArgs map[string]interface{}) Result {
	var args calendarArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return failure(err)
	}
	if err := args.validate(); err != nil {
		return failure(err)
	}

	summary, err := r.home.EventsInRange(ctx, args.StartDate, args.EndDate)
	if err != nil {
		return failure(err)
	}
	return Result{Output: summary}
}

func (r *Registry) checkHome(ctx context.Context) Result {
	status, err := r.home.DashboardStatus(ctx)
	if err != nil {
		return failure(err)
	}
	if security, err := r.home.SecuritySummary(ctx); err == nil && security != "" {
		status += "\n\nSecurity overview:\n" + security
	}
	return Result{Output: status}
}

func (r *Registry) controlDevice(ctx context.Context, rawArgs map[string]interface{}) Result {
	var args controlDeviceArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return failure(err)
	}
	if err := args.validate(); err != nil {
		return failure(err)
	}

	outcome, err := r.home.CallAction(ctx, args.Domain, args.Service, args.EntityID)
	if err != nil {
		return failure(err)
	}
	return Result{Output: outcome}
}

func (r *Registry) webSearch(ctx context.Context, caller Caller, rawArgs map[string]interface{}) Result {
	var args webSearchArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return failure(err)
	}
	if err := args.validate(); err != nil {
		return failure(err)
	}
	if r.search == nil {
		return failure(fmt.Errorf("no search capability configured"))
	}

	if r.RequireSearchConfirm && !args.Approved {
		pending := stores.PendingRequest{
			Token:     uuid.New().String(),
			UserID:    caller.UserID,
			UserName:  caller.UserName,
			Query:     args.Query,
			ExpiresAt: time.Now().Add(PendingTTL),
		}
		if err := r.store.SavePending(&pending); err != nil {
			return failure(fmt.Errorf("could not record permission request: %w", err))
		}
		log.Printf("Search for %q needs permission, token %s", args.Query, pending.Token)
		return Result{Pending: &PendingPermission{Token: pending.Token, Query: args.Query}}
	}

	results, err := r.search(ctx, args.Query)
	if err != nil {
		return failure(err)
	}
	return Result{Output: results}
}

// TakePending resolves a permission token back into the original query.
// Each token works exactly once.
func (r *Registry) TakePending(token string) (stores.PendingRequest, error) {
	return r.store.TakePending(token)
}

func (r *Registry) rememberFact(ctx context.Context, caller Caller, rawArgs map[string]interface{}) Result {
	var args rememberFactArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return failure(err)
	}
	if err := args.validate(); err != nil {
		return failure(err)
	}

	if _, err := r.memory.Add(ctx, args.Fact, memory.Metadata{Source: "tool", UserID: caller.UserID}); err != nil {
		return failure(err)
	}
	return Result{Output: "Fact saved to memory."}
}

func (r *Registry) searchMemory(ctx context.Context, rawArgs map[string]interface{}) Result {
	var args searchMemoryArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return failure(err)
	}
	if err := args.validate(); err != nil {
		return failure(err)
	}

	facts, err := r.memory.Query(ctx, args.Query, memory.DefaultTopK)
	if err != nil {
		return failure(err)
	}
	if len(facts) == 0 {
		return Result{Output: "No relevant memories found."}
	}

	out := ""
	for _, fact := range facts {
		out += "- " + fact + "\n"
	}
	return Result{Output: out}
}
