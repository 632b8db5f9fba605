// Package providers adapts concrete LLM SDKs to the agent's provider
// contract.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/golemcore/agentd/pkg/models"
)

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may
// point at any compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// OpenAI implements the agent's LLMProvider over the OpenAI chat
// completion API.
type OpenAI struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger,
	}, nil
}

// Complete performs one chat completion round.
func (p *OpenAI) Complete(ctx context.Context, req models.LLMRequest) (*models.LLMResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: buildMessages(req),
		Tools:    buildTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &models.LLMResponse{Model: resp.Model}, nil
	}

	choice := resp.Choices[0].Message
	out := &models.LLMResponse{
		Content: choice.Content,
		Model:   resp.Model,
		Usage: models.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				p.logger.Warn("unparseable tool arguments",
					"tool", tc.Function.Name, "error", err)
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func buildMessages(req models.LLMRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, convertMessage(m))
	}
	return msgs
}

func convertMessage(m models.Message) openai.ChatCompletionMessage {
	switch m.Role {
	case models.RoleAssistant:
		out := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: m.Content,
		}
		for _, call := range m.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}
		return out
	case models.RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
	case models.RoleSystem:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: m.Content,
		}
	default:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: m.Content,
		}
	}
}

func buildTools(defs []models.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}
