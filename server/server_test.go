package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	hearth "github.com/Desarso/hearth"
	"github.com/Desarso/hearth/tools"
)

type stubProcessor struct {
	reply        hearth.Reply
	resolveReply string

	lastRequest  hearth.Request
	lastToken    string
	lastApprove  bool
	processCalls int
}

func (p *stubProcessor) Process(ctx context.Context, req hearth.Request) hearth.Reply {
	p.processCalls++
	p.lastRequest = req
	return p.reply
}

func (p *stubProcessor) ResolvePermission(ctx context.Context, token string, approve bool) string {
	p.lastToken = token
	p.lastApprove = approve
	return p.resolveReply
}

func newTestServer(proc *stubProcessor, allowed []string) *Server {
	gin.SetMode(gin.TestMode)
	s := New(proc, allowed, nil, nil)
	s.SetReady(true)
	return s
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatBeforeReady(t *testing.T) {
	proc := &stubProcessor{}
	s := newTestServer(proc, nil)
	s.SetReady(false)

	w := postJSON(t, s.Router(), "/chat", `{"user_id":"42","text":"hi"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Brain initializing...") {
		t.Errorf("missing initializing message: %s", w.Body.String())
	}
	if proc.processCalls != 0 {
		t.Error("processor should not run before ready")
	}
}

func TestChatOK(t *testing.T) {
	proc := &stubProcessor{reply: hearth.Reply{Text: "Pasta night."}}
	s := newTestServer(proc, nil)

	w := postJSON(t, s.Router(), "/chat", `{"user_id":"42","user_name":"Ana","text":"what's for dinner?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["response"] != "Pasta night." {
		t.Errorf("unexpected response %q", resp["response"])
	}
	if proc.lastRequest.UserID != "42" || proc.lastRequest.UserName != "Ana" {
		t.Errorf("caller identity not forwarded: %+v", proc.lastRequest)
	}
}

func TestChatMissingUserID(t *testing.T) {
	proc := &stubProcessor{}
	s := newTestServer(proc, nil)

	w := postJSON(t, s.Router(), "/chat", `{"text":"hi"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChatWhitelist(t *testing.T) {
	proc := &stubProcessor{reply: hearth.Reply{Text: "hello"}}
	s := newTestServer(proc, []string{"42"})
	router := s.Router()

	w := postJSON(t, router, "/chat", `{"user_id":"99","text":"hi"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unlisted caller, got %d", w.Code)
	}
	if proc.processCalls != 0 {
		t.Error("processor should not run for a denied caller")
	}

	w = postJSON(t, router, "/chat", `{"user_id":"42","text":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for listed caller, got %d", w.Code)
	}
}

func TestChatPendingPermission(t *testing.T) {
	proc := &stubProcessor{reply: hearth.Reply{
		Pending: &tools.PendingPermission{Token: "tok-1", Query: "today's news"},
	}}
	s := newTestServer(proc, nil)

	w := postJSON(t, s.Router(), "/chat", `{"user_id":"42","text":"search for today's news"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		PermissionRequest struct {
			Token string `json:"token"`
			Query string `json:"query"`
		} `json:"permission_request"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.PermissionRequest.Token != "tok-1" || resp.PermissionRequest.Query != "today's news" {
		t.Errorf("pending marker mangled: %+v", resp.PermissionRequest)
	}
}

func TestPermissionResolution(t *testing.T) {
	proc := &stubProcessor{resolveReply: "Here's what I found."}
	s := newTestServer(proc, nil)

	w := postJSON(t, s.Router(), "/permission/tok-1", `{"approve":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if proc.lastToken != "tok-1" || !proc.lastApprove {
		t.Errorf("resolution not forwarded: token=%q approve=%v", proc.lastToken, proc.lastApprove)
	}
	if !strings.Contains(w.Body.String(), "Here's what I found.") {
		t.Errorf("missing resolution reply: %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubProcessor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ready":true`) {
		t.Errorf("health should report readiness: %s", w.Body.String())
	}
}
