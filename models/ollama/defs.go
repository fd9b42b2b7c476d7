package ollama

import (
	"encoding/json"

	models "github.com/Desarso/hearth/models"
)

// OllamaMessage is one message in the Ollama chat API format.
type OllamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []OllamaToolCall `json:"tool_calls,omitempty"`
}

// OllamaToolCall is a tool call issued by the model.
type OllamaToolCall struct {
	Function OllamaToolCallFunction `json:"function"`
}

type OllamaToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// OllamaTool wraps a function declaration in the Ollama tools format.
type OllamaTool struct {
	Type     string             `json:"type"`
	Function OllamaToolFunction `json:"function"`
}

type OllamaToolFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  models.Parameters `json:"parameters"`
}

// OllamaRequest is the body sent to /api/chat.
type OllamaRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []OllamaTool    `json:"tools,omitempty"`
}

// OllamaResponse is the non-streaming /api/chat response.
type OllamaResponse struct {
	Message OllamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}
