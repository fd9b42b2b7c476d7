package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	models "github.com/Desarso/hearth/models"
)

func TestInvokeText(t *testing.T) {
	var gotReq OllamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(OllamaResponse{
			Message: OllamaMessage{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	}))
	defer server.Close()

	model := &Ollama_Model{BaseURL: server.URL}
	text, err := model.Invoke(context.Background(), []models.Message{
		models.System_Message("be brief"),
		models.User_Message("hi"),
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if text != "hello there" {
		t.Errorf("unexpected reply %q", text)
	}

	if gotReq.Stream {
		t.Error("expected stream=false")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages %+v", gotReq.Messages)
	}
	if len(gotReq.Tools) != 0 {
		t.Error("plain Invoke must not send tools")
	}
}

func TestInvokeWithToolsReturnsToolCall(t *testing.T) {
	var gotReq OllamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(OllamaResponse{
			Message: OllamaMessage{
				Role: "assistant",
				ToolCalls: []OllamaToolCall{{
					Function: OllamaToolCallFunction{
						Name:      "check_home",
						Arguments: json.RawMessage(`{}`),
					},
				}},
			},
			Done: true,
		})
	}))
	defer server.Close()

	tools := []models.FunctionDeclaration{{
		Name:        "check_home",
		Description: "Check device status.",
		Parameters:  models.Parameters{Type: "object", Properties: map[string]interface{}{}},
	}}

	model := &Ollama_Model{BaseURL: server.URL, Model: "llama3.2"}
	resp, err := model.Invoke_With_Tools(context.Background(), []models.Message{models.User_Message("how's the house?")}, tools)
	if err != nil {
		t.Fatalf("Invoke_With_Tools failed: %v", err)
	}

	calls := resp.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "check_home" {
		t.Fatalf("expected one check_home call, got %+v", calls)
	}
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "check_home" {
		t.Errorf("tool schema not forwarded: %+v", gotReq.Tools)
	}
	if gotReq.Tools[0].Type != "function" {
		t.Errorf("expected tool type 'function', got %q", gotReq.Tools[0].Type)
	}
}

func TestInvokeWithToolsStringArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OllamaResponse{
			Message: OllamaMessage{
				Role: "assistant",
				ToolCalls: []OllamaToolCall{{
					Function: OllamaToolCallFunction{
						Name:      "web_search",
						Arguments: json.RawMessage(`"{\"query\": \"weather\"}"`),
					},
				}},
			},
		})
	}))
	defer server.Close()

	model := &Ollama_Model{BaseURL: server.URL}
	resp, err := model.Invoke_With_Tools(context.Background(), []models.Message{models.User_Message("weather?")}, nil)
	if err != nil {
		t.Fatalf("Invoke_With_Tools failed: %v", err)
	}
	calls := resp.FunctionCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	if calls[0].Args["query"] != "weather" {
		t.Errorf("string-encoded arguments not recovered: %+v", calls[0].Args)
	}
}

func TestInvokeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	model := &Ollama_Model{BaseURL: server.URL}
	if _, err := model.Invoke(context.Background(), []models.Message{models.User_Message("hi")}); err == nil {
		t.Error("expected error from non-200 status")
	}
}

func TestAvailable(t *testing.T) {
	model := &Ollama_Model{}
	if !model.Available() {
		t.Error("local backend should always report available")
	}
}
