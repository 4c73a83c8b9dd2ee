// Package runner drives the evaluation loop over WTQ examples.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/wtq-eval/internal/agent"
	"github.com/stellarlinkco/wtq-eval/internal/metrics"
	"github.com/stellarlinkco/wtq-eval/internal/wtq"
)

// Sink observes completed examples as the run progresses. Calls arrive from
// a single goroutine, in completion order.
type Sink func(done int, total int, res ExampleResult)

// Runner evaluates examples with a Program.
type Runner struct {
	program *agent.Program
	cfg     Config
}

func New(program *agent.Program, cfg Config) (*Runner, error) {
	if program == nil {
		return nil, errors.New("runner: nil program")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{program: program, cfg: cfg}, nil
}

// Run evaluates all examples and aggregates denotation accuracy. Inference
// failures degrade to an empty (incorrect) prediction; the loop only stops
// early when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, examples []wtq.Example, sink Sink) (*RunResult, error) {
	if r == nil || r.program == nil {
		return nil, errors.New("runner: nil runner")
	}

	results := make([]ExampleResult, len(examples))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i := range examples {
		idx := i
		ex := examples[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := r.runExample(gctx, &ex)
			results[idx] = res

			mu.Lock()
			done++
			if sink != nil {
				sink(done, len(examples), res)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregate(results), nil
}

func (r *Runner) runExample(ctx context.Context, ex *wtq.Example) ExampleResult {
	res := ExampleResult{
		ID:        ex.ID,
		Question:  ex.Question,
		Gold:      ex.Answers,
		TableName: ex.Table.Name,
	}

	exCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		exCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	ans, err := r.program.Ask(exCtx, &ex.Table, ex.Question)
	res.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		// Score the example as missed rather than aborting the run.
		res.Error = err.Error()
		res.PredItems = metrics.SplitPrediction("", len(ex.Answers))
		res.Correct = metrics.SetsEqual(ex.Answers, res.PredItems)
		return res
	}

	res.PredText = ans.Text
	res.PredItems = metrics.SplitPrediction(ans.Text, len(ex.Answers))
	res.Correct = metrics.SetsEqual(ex.Answers, res.PredItems)
	res.ToolCalls = ans.ToolCalls
	res.Steps = ans.Steps
	res.Tokens = ans.InputTokens + ans.OutputTokens
	if ans.LatencyMs > 0 {
		res.LatencyMs = ans.LatencyMs
	}
	return res
}

func aggregate(results []ExampleResult) *RunResult {
	out := &RunResult{
		Examples: results,
		Total:    len(results),
	}
	for i := range results {
		res := &results[i]
		if res.Correct {
			out.Correct++
		}
		if len(res.Gold) > 1 {
			out.MultiAnswerCount++
		}
		if res.Error != "" {
			out.ErrorCount++
		}
		out.TotalLatencyMs += res.LatencyMs
		out.TotalTokens += res.Tokens
	}
	if out.Total > 0 {
		out.DenotationAccuracy = float64(out.Correct) / float64(out.Total)
	}
	return out
}
