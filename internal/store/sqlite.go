package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt     *sql.Stmt
	insertExampleStmt *sql.Stmt
	getRunStmt        *sql.Stmt
	examplesByRunStmt *sql.Stmt
	modelHistoryStmt  *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			mode TEXT NOT NULL,
			total INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			multi_answer_count INTEGER NOT NULL,
			error_count INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			total_latency_ms INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			config_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS example_results (
			run_id TEXT NOT NULL,
			example_id TEXT NOT NULL,
			question TEXT NOT NULL,
			gold BLOB NOT NULL,
			pred_text TEXT NOT NULL,
			pred_items BLOB NOT NULL,
			table_name TEXT NOT NULL,
			correct INTEGER NOT NULL,
			tool_calls INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			tokens INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, example_id),
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_example_results_run_id ON example_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model, provider, mode)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, started_at, finished_at, model, provider, mode, total, correct,
					multi_answer_count, error_count, accuracy, total_latency_ms, total_tokens, config_json
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertExampleStmt,
			query: `
				INSERT INTO example_results (
					run_id, example_id, question, gold, pred_text, pred_items, table_name,
					correct, tool_calls, steps, latency_ms, tokens, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert example: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, started_at, finished_at, model, provider, mode, total, correct,
					multi_answer_count, error_count, accuracy, total_latency_ms, total_tokens, config_json
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.examplesByRunStmt,
			query: `
				SELECT run_id, example_id, question, gold, pred_text, pred_items, table_name,
					correct, tool_calls, steps, latency_ms, tokens, error
				FROM example_results
				WHERE run_id = ?
				ORDER BY example_id ASC
			`,
			errFmt: "store: prepare get examples: %w",
		},
		{
			dst: &s.modelHistoryStmt,
			query: `
				SELECT id, started_at, finished_at, model, provider, mode, total, correct,
					multi_answer_count, error_count, accuracy, total_latency_ms, total_tokens, config_json
				FROM runs
				WHERE model = ?
				ORDER BY started_at DESC
				LIMIT ?
			`,
			errFmt: "store: prepare model history: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertExampleStmt,
		s.getRunStmt,
		s.examplesByRunStmt,
		s.modelHistoryStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary and its example results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord, examples []ExampleRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return errors.New("store: missing run timestamps")
	}

	cfgJSON := []byte("null")
	if run.Config != nil {
		var err error
		cfgJSON, err = json.Marshal(run.Config)
		if err != nil {
			return fmt.Errorf("store: marshal run config: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	runStmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer runStmt.Close()

	_, err = runStmt.ExecContext(
		ctx,
		id,
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
		run.Model,
		run.Provider,
		run.Mode,
		run.Total,
		run.Correct,
		run.MultiAnswerCount,
		run.ErrorCount,
		run.DenotationAccuracy,
		run.TotalLatencyMs,
		run.TotalTokens,
		string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	exStmt := tx.StmtContext(ctx, s.insertExampleStmt)
	defer exStmt.Close()

	for i := range examples {
		ex := &examples[i]
		exampleID := strings.TrimSpace(ex.ExampleID)
		if exampleID == "" {
			return fmt.Errorf("store: empty example id at index %d", i)
		}
		goldJSON, err := json.Marshal(ex.Gold)
		if err != nil {
			return fmt.Errorf("store: marshal gold for %s: %w", exampleID, err)
		}
		predJSON, err := json.Marshal(ex.PredItems)
		if err != nil {
			return fmt.Errorf("store: marshal predictions for %s: %w", exampleID, err)
		}
		_, err = exStmt.ExecContext(
			ctx,
			id,
			exampleID,
			ex.Question,
			goldJSON,
			ex.PredText,
			predJSON,
			ex.TableName,
			ex.Correct,
			ex.ToolCalls,
			ex.Steps,
			ex.LatencyMs,
			ex.Tokens,
			ex.Error,
		)
		if err != nil {
			return fmt.Errorf("store: insert example %s: %w", exampleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	rec, err := scanRunRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, started_at, finished_at, model, provider, mode, total, correct,
		multi_answer_count, error_count, accuracy, total_latency_ms, total_tokens, config_json
		FROM runs WHERE 1=1`)

	var args []any
	if model := strings.TrimSpace(filter.Model); model != "" {
		sb.WriteString(` AND model = ?`)
		args = append(args, model)
	}
	if provider := strings.TrimSpace(filter.Provider); provider != "" {
		sb.WriteString(` AND provider = ?`)
		args = append(args, provider)
	}
	if mode := strings.TrimSpace(filter.Mode); mode != "" {
		sb.WriteString(` AND mode = ?`)
		args = append(args, mode)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()
	return scanRunRows(rows)
}

// GetExampleResults lists per-example results for a run.
func (s *SQLiteStore) GetExampleResults(ctx context.Context, runID string) ([]ExampleRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.examplesByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get example results: %w", err)
	}
	defer rows.Close()

	var out []ExampleRecord
	for rows.Next() {
		var (
			rec      ExampleRecord
			goldJSON []byte
			predJSON []byte
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.ExampleID,
			&rec.Question,
			&goldJSON,
			&rec.PredText,
			&predJSON,
			&rec.TableName,
			&rec.Correct,
			&rec.ToolCalls,
			&rec.Steps,
			&rec.LatencyMs,
			&rec.Tokens,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("store: scan example: %w", err)
		}
		if err := json.Unmarshal(goldJSON, &rec.Gold); err != nil {
			return nil, fmt.Errorf("store: decode gold for %s: %w", rec.ExampleID, err)
		}
		if err := json.Unmarshal(predJSON, &rec.PredItems); err != nil {
			return nil, fmt.Errorf("store: decode predictions for %s: %w", rec.ExampleID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan example rows: %w", err)
	}
	return out, nil
}

// GetModelHistory returns recent runs for a model, newest first.
func (s *SQLiteStore) GetModelHistory(ctx context.Context, model string, limit int) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("store: empty model")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.modelHistoryStmt.QueryContext(ctx, model, limit)
	if err != nil {
		return nil, fmt.Errorf("store: model history: %w", err)
	}
	defer rows.Close()
	return scanRunRows(rows)
}

// Leaderboard aggregates accuracy per model/provider/mode, best first.
func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, provider, mode, COUNT(*), MAX(accuracy), AVG(accuracy), MAX(started_at)
		FROM runs
		GROUP BY model, provider, mode
		ORDER BY MAX(accuracy) DESC, model ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var (
			entry   LeaderboardEntry
			lastRun int64
		)
		if err := rows.Scan(
			&entry.Model,
			&entry.Provider,
			&entry.Mode,
			&entry.Runs,
			&entry.BestAccuracy,
			&entry.AvgAccuracy,
			&lastRun,
		); err != nil {
			return nil, fmt.Errorf("store: scan leaderboard: %w", err)
		}
		entry.LastRunAt = time.UnixMilli(lastRun).UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan leaderboard rows: %w", err)
	}
	return out, nil
}

func scanRunRows(rows *sql.Rows) ([]*RunRecord, error) {
	var out []*RunRecord
	for rows.Next() {
		rec, err := scanRunRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

func scanRunRow(scan func(dest ...any) error) (*RunRecord, error) {
	var (
		rec          RunRecord
		startedAtMS  int64
		finishedAtMS int64
		cfgJSON      sql.NullString
	)
	if err := scan(
		&rec.ID,
		&startedAtMS,
		&finishedAtMS,
		&rec.Model,
		&rec.Provider,
		&rec.Mode,
		&rec.Total,
		&rec.Correct,
		&rec.MultiAnswerCount,
		&rec.ErrorCount,
		&rec.DenotationAccuracy,
		&rec.TotalLatencyMs,
		&rec.TotalTokens,
		&cfgJSON,
	); err != nil {
		return nil, err
	}

	cfg, err := decodeConfig(cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}

	rec.StartedAt = time.UnixMilli(startedAtMS).UTC()
	rec.FinishedAt = time.UnixMilli(finishedAtMS).UTC()
	rec.Config = cfg
	return &rec, nil
}

func decodeConfig(cfgJSON sql.NullString) (map[string]any, error) {
	if !cfgJSON.Valid {
		return nil, nil
	}
	raw := strings.TrimSpace(cfgJSON.String)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
