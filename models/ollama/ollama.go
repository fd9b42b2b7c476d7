package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	models "github.com/Desarso/hearth/models"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Ollama_Model implements the backend interface for a local Ollama
// instance using its OpenAI-style chat API.
type Ollama_Model struct {
	Model   string // Model identifier (e.g., "llama3.2", "qwen2.5")
	BaseURL string // Optional: custom API base URL (defaults to localhost)
	Timeout time.Duration
}

// Available reports whether this backend can serve requests. A local
// instance is always considered configured; reachability failures surface
// at invoke time.
func (o *Ollama_Model) Available() bool {
	return true
}

// Invoke sends the message sequence without tools and returns the text
// reply.
func (o *Ollama_Model) Invoke(ctx context.Context, messages []models.Message) (string, error) {
	response, err := o.makeRequest(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return response.Message.Content, nil
}

// Invoke_With_Tools sends the message sequence plus the tool schema list.
// The response may contain text, tool calls, or both.
func (o *Ollama_Model) Invoke_With_Tools(ctx context.Context, messages []models.Message, tools []models.FunctionDeclaration) (models.Model_Response, error) {
	response, err := o.makeRequest(ctx, messages, tools)
	if err != nil {
		return models.Model_Response{}, err
	}
	return o.ollamaResponseToModelResponse(response), nil
}

// ollamaResponseToModelResponse converts an Ollama response to the
// standard Model_Response
func (o *Ollama_Model) ollamaResponseToModelResponse(response OllamaResponse) models.Model_Response {
	modelResponse := models.Model_Response{}

	if response.Message.Content != "" {
		text := response.Message.Content
		modelResponse.Parts = append(modelResponse.Parts, models.Model_Part{Text: &text})
	}

	for i, toolCall := range response.Message.ToolCalls {
		var args map[string]interface{}
		if len(toolCall.Function.Arguments) > 0 {
			if err := json.Unmarshal(toolCall.Function.Arguments, &args); err != nil {
				// Some models return arguments as a JSON-encoded string.
				var argsStr string
				if err2 := json.Unmarshal(toolCall.Function.Arguments, &argsStr); err2 == nil {
					json.Unmarshal([]byte(argsStr), &args)
				}
				if args == nil {
					log.Printf("Warning: Failed to unmarshal tool call arguments: %v", err)
					args = map[string]interface{}{}
				}
			}
		} else {
			args = map[string]interface{}{}
		}

		modelResponse.Parts = append(modelResponse.Parts, models.Model_Part{
			FunctionCall: &models.FunctionCall{
				ID:   fmt.Sprintf("call_%d", i),
				Name: toolCall.Function.Name,
				Args: args,
			},
		})
	}

	return modelResponse
}

// makeRequest sends a non-streaming request to Ollama
func (o *Ollama_Model) makeRequest(ctx context.Context, messages []models.Message, tools []models.FunctionDeclaration) (OllamaResponse, error) {
	modelToUse := o.Model
	if modelToUse == "" {
		modelToUse = DefaultModel
	}
	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	requestBody := OllamaRequest{
		Model:  modelToUse,
		Stream: false,
	}
	for _, msg := range messages {
		requestBody.Messages = append(requestBody.Messages, OllamaMessage{Role: msg.Role, Content: msg.Content})
	}
	for _, tool := range tools {
		requestBody.Tools = append(requestBody.Tools, OllamaTool{
			Type: "function",
			Function: OllamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	jsonBytes, err := json.Marshal(requestBody)
	if err != nil {
		return OllamaResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/api/chat", bytes.NewReader(jsonBytes))
	if err != nil {
		return OllamaResponse{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return OllamaResponse{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OllamaResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return OllamaResponse{}, fmt.Errorf("Ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response OllamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return OllamaResponse{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != "" {
		return OllamaResponse{}, fmt.Errorf("Ollama API error: %s", response.Error)
	}

	return response, nil
}
