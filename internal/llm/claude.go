package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const claudeDefaultModel = "claude-sonnet-4-5-20250929"

// ClaudeProvider speaks the Anthropic messages API.
type ClaudeProvider struct {
	client anthropic.Client
	model  string
}

func NewClaudeProvider(apiKey, baseURL, model string) *ClaudeProvider {
	opts := make([]option.RequestOption, 0, 2)
	if v := strings.TrimSpace(apiKey); v != "" {
		opts = append(opts, option.WithAPIKey(v))
	}
	if v := strings.TrimSpace(baseURL); v != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(v, "/")))
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = claudeDefaultModel
	}

	return &ClaudeProvider{
		client: anthropic.NewClient(opts...),
		model:  m,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	msg, err := p.client.Messages.New(ctx, p.buildParams(req, toClaudeMessages(req.Messages)))
	if err != nil {
		return nil, err
	}
	return fromClaudeMessage(msg), nil
}

func (p *ClaudeProvider) CompleteMultiTurn(
	ctx context.Context,
	req *Request,
	toolExecutor func(ToolUse) (string, error),
	maxSteps int,
) (*MultiTurnResult, error) {
	if p == nil {
		return nil, errors.New("llm: claude: nil provider")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}
	if len(req.Tools) == 0 {
		return nil, errors.New("llm: claude: tool loop requires tools")
	}
	if maxSteps <= 0 {
		maxSteps = 5
	}

	messages := toClaudeMessages(req.Messages)
	out := &MultiTurnResult{}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := time.Now()
		msg, err := p.client.Messages.New(ctx, p.buildParams(req, messages))
		out.Steps = step + 1
		out.TotalLatencyMs += time.Since(start).Milliseconds()

		if err != nil {
			return out, err
		}

		resp := fromClaudeMessage(msg)
		out.AllResponses = append(out.AllResponses, resp)
		out.FinalResponse = resp
		out.TotalInputTokens += resp.Usage.InputTokens
		out.TotalOutputTokens += resp.Usage.OutputTokens

		messages = append(messages, msg.ToParam())

		toolCalls := toolUsesFromResponse(resp)
		if len(toolCalls) == 0 {
			if resp.StopReason == "tool_use" {
				return out, errors.New("llm: claude: stop_reason tool_use but no tool calls")
			}
			return out, nil
		}
		out.AllToolCalls = append(out.AllToolCalls, toolCalls...)

		if toolExecutor == nil {
			return out, errors.New("llm: claude: nil tool executor")
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(toolCalls))
		for _, call := range toolCalls {
			content, execErr := toolExecutor(call)
			isError := false
			if execErr != nil {
				content = execErr.Error()
				isError = true
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(call.ID, content, isError))
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: blocks,
		})
	}

	return out, fmt.Errorf("llm: claude: max steps (%d) reached", maxSteps)
}

func (p *ClaudeProvider) buildParams(req *Request, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 1024
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = toClaudeTools(req.Tools)
	}
	return params
}

func toClaudeMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		role := anthropic.MessageParamRoleUser
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}
	return out
}

func toClaudeTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			InputSchema: toClaudeInputSchema(t.InputSchema),
		}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			tool.Description = param.NewOpt(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func toClaudeInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	out := anthropic.ToolInputSchemaParam{Type: "object"}
	if schema == nil {
		return out
	}
	if props, ok := schema["properties"]; ok {
		out.Properties = props
	}
	if required, ok := schema["required"].([]string); ok {
		out.Required = required
	} else if raw, ok := schema["required"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}

func fromClaudeMessage(msg *anthropic.Message) *Response {
	if msg == nil {
		return nil
	}

	resp := &Response{
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, ContentBlock{
				Type: "text",
				Text: block.AsText().Text,
			})
		case "tool_use":
			tool := block.AsToolUse()
			resp.Content = append(resp.Content, ContentBlock{
				Type:  "tool_use",
				ID:    tool.ID,
				Name:  tool.Name,
				Input: decodeToolInput(tool.Input),
			})
		}
	}
	return resp
}

func decodeToolInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toolUsesFromResponse(resp *Response) []ToolUse {
	if resp == nil {
		return nil
	}
	var out []ToolUse
	for _, b := range resp.Content {
		if b.Type != "tool_use" {
			continue
		}
		out = append(out, ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
	}
	return out
}
