package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider speaks the OpenAI chat-completions API. Pointing its base
// URL at a local Ollama server's /v1 endpoint is the usual local-model path.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		// Ollama ignores the key but the client requires a non-empty header.
		key = "ollama"
	}
	cfg := openai.DefaultConfig(key)
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = "gpt-4o"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: openai: nil client")
	}
	if req == nil {
		return nil, errors.New("llm: openai: nil request")
	}

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, p.toMessages(req)))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: openai: empty choices")
	}
	return fromOpenAIChoice(&resp, &resp.Choices[0]), nil
}

func (p *OpenAIProvider) CompleteMultiTurn(
	ctx context.Context,
	req *Request,
	toolExecutor func(ToolUse) (string, error),
	maxSteps int,
) (*MultiTurnResult, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: openai: nil client")
	}
	if req == nil {
		return nil, errors.New("llm: openai: nil request")
	}
	if len(req.Tools) == 0 {
		return nil, errors.New("llm: openai: tool loop requires tools")
	}
	if maxSteps <= 0 {
		maxSteps = 5
	}

	msgs := p.toMessages(req)
	out := &MultiTurnResult{}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, msgs))
		out.Steps = step + 1
		out.TotalLatencyMs += time.Since(start).Milliseconds()

		if err != nil {
			return out, err
		}
		if len(resp.Choices) == 0 {
			return out, errors.New("llm: openai: empty choices")
		}

		choice := resp.Choices[0]
		llmResp := fromOpenAIChoice(&resp, &choice)
		out.AllResponses = append(out.AllResponses, llmResp)
		out.FinalResponse = llmResp
		out.TotalInputTokens += resp.Usage.PromptTokens
		out.TotalOutputTokens += resp.Usage.CompletionTokens

		assistantMsg := choice.Message
		if strings.TrimSpace(assistantMsg.Role) == "" {
			assistantMsg.Role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, assistantMsg)

		toolCalls := toolUsesFromMessage(assistantMsg)
		if len(toolCalls) == 0 {
			return out, nil
		}
		out.AllToolCalls = append(out.AllToolCalls, toolCalls...)

		if toolExecutor == nil {
			return out, errors.New("llm: openai: nil tool executor")
		}
		for _, call := range toolCalls {
			content, execErr := toolExecutor(call)
			if execErr != nil {
				content = execErr.Error()
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return out, fmt.Errorf("llm: openai: max steps (%d) reached", maxSteps)
}

func (p *OpenAIProvider) toMessages(req *Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    normalizeRole(m.Role),
			Content: m.Content,
		})
	}
	return msgs
}

func (p *OpenAIProvider) buildRequest(req *Request, msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		r.MaxTokens = req.MaxTokens
	}
	if tools := toOpenAITools(req.Tools); len(tools) > 0 {
		r.Tools = tools
		r.ToolChoice = "auto"
	}
	return r
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleTool:
		return role
	default:
		return openai.ChatMessageRoleUser
	}
}

func toOpenAITools(in []ToolDefinition) []openai.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(in))
	for _, t := range in {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: strings.TrimSpace(t.Description),
				Parameters:  schema,
			},
		})
	}
	return out
}

func parseToolArguments(args string) map[string]any {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return map[string]any{"_raw": args}
	}
	return out
}

func toolUsesFromMessage(msg openai.ChatCompletionMessage) []ToolUse {
	if len(msg.ToolCalls) == 0 {
		return nil
	}
	out := make([]ToolUse, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		out = append(out, ToolUse{
			ID:    strings.TrimSpace(tc.ID),
			Name:  strings.TrimSpace(tc.Function.Name),
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	return out
}

func fromOpenAIChoice(resp *openai.ChatCompletionResponse, choice *openai.ChatCompletionChoice) *Response {
	out := &Response{
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}

	msg := choice.Message
	if strings.TrimSpace(msg.Content) != "" {
		out.Content = append(out.Content, ContentBlock{
			Type: "text",
			Text: msg.Content,
		})
	}
	for _, tc := range msg.ToolCalls {
		out.Content = append(out.Content, ContentBlock{
			Type:  "tool_use",
			ID:    strings.TrimSpace(tc.ID),
			Name:  strings.TrimSpace(tc.Function.Name),
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	return out
}
