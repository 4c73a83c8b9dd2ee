package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/wtq-eval/internal/store"
)

const defaultListLimit = 50

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type runView struct {
	ID                 string         `json:"id"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
	Model              string         `json:"model"`
	Provider           string         `json:"provider"`
	Mode               string         `json:"mode"`
	Total              int            `json:"n"`
	Correct            int            `json:"correct"`
	MultiAnswerCount   int            `json:"multi_answer_count"`
	ErrorCount         int            `json:"error_count"`
	DenotationAccuracy float64        `json:"denotation_accuracy"`
	TotalLatencyMs     int64          `json:"total_latency_ms"`
	TotalTokens        int            `json:"total_tokens"`
	Config             map[string]any `json:"config,omitempty"`
}

func runToView(r *store.RunRecord) runView {
	return runView{
		ID:                 r.ID,
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
		Model:              r.Model,
		Provider:           r.Provider,
		Mode:               r.Mode,
		Total:              r.Total,
		Correct:            r.Correct,
		MultiAnswerCount:   r.MultiAnswerCount,
		ErrorCount:         r.ErrorCount,
		DenotationAccuracy: r.DenotationAccuracy,
		TotalLatencyMs:     r.TotalLatencyMs,
		TotalTokens:        r.TotalTokens,
		Config:             r.Config,
	}
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), defaultListLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.RunFilter{
		Model:    strings.TrimSpace(c.Query("model")),
		Provider: strings.TrimSpace(c.Query("provider")),
		Mode:     strings.TrimSpace(c.Query("mode")),
		Since:    since,
		Until:    until,
		Limit:    limit,
	}
	runs, err := s.store.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		out = append(out, runToView(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, runToView(run))
}

type exampleView struct {
	ExampleID string   `json:"id"`
	Question  string   `json:"question"`
	Gold      []string `json:"gold"`
	PredText  string   `json:"pred_text"`
	PredItems []string `json:"pred_items"`
	TableName string   `json:"table_name"`
	Correct   bool     `json:"correct"`
	ToolCalls int      `json:"tool_calls,omitempty"`
	Steps     int      `json:"steps,omitempty"`
	LatencyMs int64    `json:"latency_ms"`
	Tokens    int      `json:"tokens"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) handleGetRunResults(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	examples, err := s.store.GetExampleResults(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]exampleView, 0, len(examples))
	for _, ex := range examples {
		out = append(out, exampleView{
			ExampleID: ex.ExampleID,
			Question:  ex.Question,
			Gold:      ex.Gold,
			PredText:  ex.PredText,
			PredItems: ex.PredItems,
			TableName: ex.TableName,
			Correct:   ex.Correct,
			ToolCalls: ex.ToolCalls,
			Steps:     ex.Steps,
			LatencyMs: ex.LatencyMs,
			Tokens:    ex.Tokens,
			Error:     ex.Error,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetModelHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	model := strings.TrimSpace(c.Param("model"))
	if model == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing model"))
		return
	}
	limit, err := parseLimitParam(c.Query("limit"), defaultListLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.GetModelHistory(c.Request.Context(), model, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		out = append(out, runToView(r))
	}
	c.JSON(http.StatusOK, out)
}

type leaderboardView struct {
	Rank         int       `json:"rank"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Mode         string    `json:"mode"`
	Runs         int       `json:"runs"`
	BestAccuracy float64   `json:"best_accuracy"`
	AvgAccuracy  float64   `json:"avg_accuracy"`
	LastRunAt    time.Time `json:"last_run_at"`
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), defaultListLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	entries, err := s.store.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]leaderboardView, 0, len(entries))
	for i, e := range entries {
		out = append(out, leaderboardView{
			Rank:         i + 1,
			Model:        e.Model,
			Provider:     e.Provider,
			Mode:         e.Mode,
			Runs:         e.Runs,
			BestAccuracy: e.BestAccuracy,
			AvgAccuracy:  e.AvgAccuracy,
			LastRunAt:    e.LastRunAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}
