// Package gemini is the cloud backend, built on the official genai SDK.
package gemini

import (
	"context"
	"fmt"
	"os"
	"time"

	models "github.com/Desarso/hearth/models"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash-001"

// Gemini_Model implements the backend interface for the Gemini API.
// The backend reports unavailable when no API key is configured, which
// lets the router degrade to the local backend without a network failure.
type Gemini_Model struct {
	Model     string `json:"model"`
	APIKeyEnv string `json:"api_key_env,omitempty"` // defaults to GEMINI_API_KEY
	Timeout   time.Duration
}

func (g *Gemini_Model) apiKey() string {
	env := g.APIKeyEnv
	if env == "" {
		env = "GEMINI_API_KEY"
	}
	return os.Getenv(env)
}

// Available reports whether cloud credentials are configured.
func (g *Gemini_Model) Available() bool {
	return g.apiKey() != ""
}

func (g *Gemini_Model) newClient(ctx context.Context) (*genai.Client, error) {
	key := g.apiKey()
	if key == "" {
		return nil, fmt.Errorf("no Gemini API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Invoke sends the message sequence without tools and returns the text
// reply.
func (g *Gemini_Model) Invoke(ctx context.Context, messages []models.Message) (string, error) {
	response, err := g.generate(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return response.Text(), nil
}

// Invoke_With_Tools sends the message sequence plus the tool schema list.
func (g *Gemini_Model) Invoke_With_Tools(ctx context.Context, messages []models.Message, tools []models.FunctionDeclaration) (models.Model_Response, error) {
	return g.generate(ctx, messages, tools)
}

func (g *Gemini_Model) generate(ctx context.Context, messages []models.Message, tools []models.FunctionDeclaration) (models.Model_Response, error) {
	client, err := g.newClient(ctx)
	if err != nil {
		return models.Model_Response{}, err
	}

	modelToUse := g.Model
	if modelToUse == "" {
		modelToUse = DefaultModel
	}
	timeout := g.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	contents, config := buildRequest(messages, tools)

	result, err := client.Models.GenerateContent(ctx, modelToUse, contents, config)
	if err != nil {
		return models.Model_Response{}, fmt.Errorf("Gemini request failed: %w", err)
	}

	return geminiResultToModelResponse(result), nil
}

// buildRequest converts the generic message sequence into Gemini contents.
// System messages become the system instruction; tool-role messages are fed
// back as user-role text so the model summarizes them.
func buildRequest(messages []models.Message, tools []models.FunctionDeclaration) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}

	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case models.RoleTool:
			contents = append(contents, genai.NewContentFromText("Tool result:\n"+msg.Content, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  parametersToSchema(tool.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	return contents, config
}

// parametersToSchema converts the registry's JSON-schema parameters into
// the genai schema type.
func parametersToSchema(params models.Parameters) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
		Required:   params.Required,
	}
	for name, raw := range params.Properties {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		propSchema := &genai.Schema{}
		if typeName, ok := prop["type"].(string); ok {
			propSchema.Type = schemaType(typeName)
		}
		if desc, ok := prop["description"].(string); ok {
			propSchema.Description = desc
		}
		schema.Properties[name] = propSchema
	}
	return schema
}

func schemaType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func geminiResultToModelResponse(result *genai.GenerateContentResponse) models.Model_Response {
	modelResponse := models.Model_Response{}
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			var modelPart models.Model_Part
			if part.Text != "" {
				text := part.Text
				modelPart.Text = &text
			}
			if part.FunctionCall != nil {
				modelPart.FunctionCall = &models.FunctionCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
			}
			if modelPart.Text != nil || modelPart.FunctionCall != nil {
				modelResponse.Parts = append(modelResponse.Parts, modelPart)
			}
		}
	}
	return modelResponse
}
