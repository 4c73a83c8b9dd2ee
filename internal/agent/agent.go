// Package agent asks table questions either directly or via a tool loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/wtq-eval/internal/llm"
	"github.com/stellarlinkco/wtq-eval/internal/tabletext"
	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

// Mode selects how a question is put to the model.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeAgent  Mode = "agent"
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return ModeDirect, nil
	case "agent":
		return ModeAgent, nil
	default:
		return "", fmt.Errorf("agent: unknown mode %q", s)
	}
}

const directSystem = "You answer questions about a table. " +
	"Reply with only the final answer, no explanation. " +
	"If the question has several answers, separate them with \" | \"."

const cotSystem = "You answer questions about a table. " +
	"Think through the table step by step, then give the final answer on " +
	"its own line prefixed with \"Answer:\". " +
	"If the question has several answers, separate them with \" | \"."

const agentSystem = "You answer questions about a table you cannot see " +
	"directly. Use the tools to inspect its headers, size and rows, then " +
	"reply with only the final answer, no explanation. " +
	"If the question has several answers, separate them with \" | \"."

// Options configure a Program.
type Options struct {
	Mode        Mode
	UseCoT      bool // direct mode only
	MaxSteps    int  // agent mode tool-loop bound
	SampleRows  int  // rows shown in the agent's opening context
	RowLimit    int  // direct mode serialization bound
	ColLimit    int
	MaxTokens   int
	Temperature float64
}

// Program asks one question per call against a provider.
type Program struct {
	provider llm.Provider
	opts     Options
}

// Answer is the outcome of one question.
type Answer struct {
	Text         string
	ToolCalls    []llm.ToolUse
	Steps        int
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
}

func New(provider llm.Provider, opts Options) (*Program, error) {
	if provider == nil {
		return nil, errors.New("agent: nil provider")
	}
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	if opts.Mode == ModeAgent {
		if _, ok := provider.(llm.ToolLoopProvider); !ok {
			return nil, errors.New("agent: provider does not support tool loops")
		}
		if opts.MaxSteps <= 0 {
			opts.MaxSteps = 5
		}
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 5
	}
	return &Program{provider: provider, opts: opts}, nil
}

// Ask answers one question about one table.
func (p *Program) Ask(ctx context.Context, table *wtq.Table, question string) (*Answer, error) {
	if p == nil || p.provider == nil {
		return nil, errors.New("agent: nil program")
	}
	if table == nil {
		return nil, errors.New("agent: nil table")
	}

	switch p.opts.Mode {
	case ModeAgent:
		return p.askAgent(ctx, table, question)
	default:
		return p.askDirect(ctx, table, question)
	}
}

func (p *Program) askDirect(ctx context.Context, table *wtq.Table, question string) (*Answer, error) {
	system := directSystem
	if p.opts.UseCoT {
		system = cotSystem
	}

	tableText := tabletext.Serialize(table, p.opts.RowLimit, p.opts.ColLimit)
	req := &llm.Request{
		System: system,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("%s\n\nQuestion: %s", tableText, question),
		}},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	}

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &Answer{Text: ExtractAnswer(llm.Text(resp)), Steps: 1}
	if resp != nil {
		out.InputTokens = resp.Usage.InputTokens
		out.OutputTokens = resp.Usage.OutputTokens
	}
	return out, nil
}

func (p *Program) askAgent(ctx context.Context, table *wtq.Table, question string) (*Answer, error) {
	looper, ok := p.provider.(llm.ToolLoopProvider)
	if !ok {
		return nil, errors.New("agent: provider does not support tool loops")
	}

	tools := NewTableTools(table, 0)
	intro := fmt.Sprintf(
		"The table has %d columns and %d rows. First rows:\n%s\n\nQuestion: %s",
		len(table.Header), len(table.Rows),
		tabletext.SampleRows(table, p.opts.SampleRows),
		question,
	)

	req := &llm.Request{
		System:      agentSystem,
		Messages:    []llm.Message{{Role: "user", Content: intro}},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Tools:       Definitions(),
	}

	res, err := looper.CompleteMultiTurn(ctx, req, tools.Execute, p.opts.MaxSteps)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:         ExtractAnswer(llm.Text(res.FinalResponse)),
		ToolCalls:    res.AllToolCalls,
		Steps:        res.Steps,
		LatencyMs:    res.TotalLatencyMs,
		InputTokens:  res.TotalInputTokens,
		OutputTokens: res.TotalOutputTokens,
	}, nil
}

// ExtractAnswer pulls the final answer out of model text. Chain-of-thought
// output puts it on an "Answer:" line; otherwise the trimmed text stands.
func ExtractAnswer(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if rest, ok := cutPrefixFold(line, "answer:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return text
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
