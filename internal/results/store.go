package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/timeshift/internal/variant"
	_ "modernc.org/sqlite"
)

// ErrNoOffset is returned when a results file's offset cannot be derived
// from its path and none was given.
var ErrNoOffset = errors.New("cannot determine offset from path")

// Store is the SQLite results ledger.
type Store struct {
	db *sql.DB
}

// Run is one ingested results file.
type Run struct {
	ID             string    `json:"id"`
	OffsetDays     int       `json:"offset_days"`
	AgentLLM       string    `json:"agent_llm"`
	Source         string    `json:"source"`
	NumTasks       int       `json:"num_tasks"`
	NumTrials      int       `json:"num_trials"`
	NumSimulations int       `json:"num_simulations"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Open opens (or creates) the ledger at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("results: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("results: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS runs (
				id          TEXT    PRIMARY KEY,
				offset_days INTEGER NOT NULL,
				agent_llm   TEXT    NOT NULL,
				source      TEXT    NOT NULL UNIQUE,
				num_tasks   INTEGER NOT NULL,
				num_trials  INTEGER NOT NULL,
				ingested_at TEXT    NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_offset ON runs(offset_days);

			CREATE TABLE IF NOT EXISTS simulations (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id     TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				task_id    TEXT    NOT NULL,
				trial      INTEGER NOT NULL,
				reward     REAL    NOT NULL,
				agent_cost REAL    NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_simulations_run ON simulations(run_id);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ingest loads the results file at path under offsetDays. A nil offset is
// taken from an offset_<p|n><days>d component of the path. Re-ingesting
// the same file replaces its previous run.
func (s *Store) Ingest(ctx context.Context, path string, offsetDays *int) (*Run, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var days int
	if offsetDays != nil {
		days = *offsetDays
	} else {
		d, ok := variant.ParseSuffix(abs)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoOffset, path)
		}
		days = d
	}

	f, err := LoadFile(abs)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:             uuid.NewString(),
		OffsetDays:     days,
		AgentLLM:       f.AgentLLM(),
		Source:         abs,
		NumTasks:       f.NumTasks(),
		NumTrials:      f.NumTrials(),
		NumSimulations: len(f.Simulations),
		IngestedAt:     time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("results: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM simulations WHERE run_id IN (SELECT id FROM runs WHERE source = ?)`, abs); err != nil {
		return nil, fmt.Errorf("results: replacing run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE source = ?`, abs); err != nil {
		return nil, fmt.Errorf("results: replacing run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, offset_days, agent_llm, source, num_tasks, num_trials, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.OffsetDays, run.AgentLLM, run.Source, run.NumTasks, run.NumTrials, run.IngestedAt.Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("results: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO simulations (run_id, task_id, trial, reward, agent_cost) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("results: prepare: %w", err)
	}
	defer stmt.Close()
	for _, sim := range f.Simulations {
		if _, err := stmt.ExecContext(ctx, run.ID, string(sim.TaskID), sim.Trial, sim.RewardInfo.Reward, sim.AgentCost); err != nil {
			return nil, fmt.Errorf("results: insert simulation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("results: commit: %w", err)
	}
	slog.Info("results: ingested", "file", abs, "offset_days", days, "simulations", run.NumSimulations)
	return run, nil
}

// IngestDir ingests every *.json file in the offset_<p|n><days>d
// subdirectories of dir. Files that fail to load are logged and skipped.
func (s *Store) IngestDir(ctx context.Context, dir string) ([]*Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading results directory: %w", err)
	}

	var runs []*Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		days, ok := variant.ParseSuffix(e.Name())
		if !ok {
			continue
		}
		files, err := filepath.Glob(filepath.Join(dir, e.Name(), "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			run, err := s.Ingest(ctx, f, &days)
			if err != nil {
				if ctx.Err() != nil {
					return runs, ctx.Err()
				}
				slog.Warn("results: skipping file", "file", f, "error", err)
				continue
			}
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// Runs lists the ingested runs ordered by offset.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.offset_days, r.agent_llm, r.source, r.num_tasks, r.num_trials, r.ingested_at, COUNT(s.id)
		FROM runs r LEFT JOIN simulations s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.offset_days, r.agent_llm, r.source`)
	if err != nil {
		return nil, fmt.Errorf("results: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ingested string
		if err := rows.Scan(&r.ID, &r.OffsetDays, &r.AgentLLM, &r.Source, &r.NumTasks, &r.NumTrials, &ingested, &r.NumSimulations); err != nil {
			return nil, fmt.Errorf("results: scan run: %w", err)
		}
		r.IngestedAt, _ = time.Parse(time.RFC3339, ingested)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunMetrics are the rates of one run.
type RunMetrics struct {
	Run
	AvgReward    float64 `json:"avg_reward"`
	PassAt1      float64 `json:"pass_at_1"`
	SuccessRate  float64 `json:"success_rate"`
	AvgAgentCost float64 `json:"avg_agent_cost"`
	RewardMin    float64 `json:"rewards_min"`
	RewardMax    float64 `json:"rewards_max"`
}

// Metrics computes the rates of every run.
func (s *Store) Metrics(ctx context.Context) ([]RunMetrics, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*RunMetrics, len(runs))
	out := make([]RunMetrics, len(runs))
	for i, r := range runs {
		out[i].Run = r
		byID[r.ID] = &out[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, AVG(reward), AVG(CASE WHEN reward > ? THEN 1.0 ELSE 0.0 END),
		       AVG(agent_cost), MIN(reward), MAX(reward)
		FROM simulations GROUP BY run_id`, SuccessThreshold)
	if err != nil {
		return nil, fmt.Errorf("results: query metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var m RunMetrics
		if err := rows.Scan(&id, &m.AvgReward, &m.SuccessRate, &m.AvgAgentCost, &m.RewardMin, &m.RewardMax); err != nil {
			return nil, fmt.Errorf("results: scan metrics: %w", err)
		}
		if rm, ok := byID[id]; ok {
			rm.AvgReward, rm.SuccessRate, rm.AvgAgentCost = m.AvgReward, m.SuccessRate, m.AvgAgentCost
			rm.RewardMin, rm.RewardMax = m.RewardMin, m.RewardMax
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// pass^1 is the mean over tasks of each task's per-trial success rate.
	tasks, err := s.TaskRates(ctx)
	if err != nil {
		return nil, err
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, t := range tasks {
		sums[t.RunID] += float64(t.Successes) / float64(t.Trials)
		counts[t.RunID]++
	}
	for id, rm := range byID {
		if counts[id] > 0 {
			rm.PassAt1 = sums[id] / float64(counts[id])
		}
	}
	return out, nil
}

// TaskRate is the outcome of one task within one run.
type TaskRate struct {
	RunID      string  `json:"run_id"`
	OffsetDays int     `json:"offset_days"`
	AgentLLM   string  `json:"agent_llm"`
	TaskID     string  `json:"task_id"`
	Trials     int     `json:"trials"`
	Successes  int     `json:"successes"`
	AvgReward  float64 `json:"avg_reward"`
}

// TaskRates lists per-task outcomes ordered by offset then task id.
func (s *Store) TaskRates(ctx context.Context) ([]TaskRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.run_id, r.offset_days, r.agent_llm, s.task_id, COUNT(*),
		       SUM(CASE WHEN s.reward > ? THEN 1 ELSE 0 END), AVG(s.reward)
		FROM simulations s JOIN runs r ON r.id = s.run_id
		GROUP BY s.run_id, s.task_id`, SuccessThreshold)
	if err != nil {
		return nil, fmt.Errorf("results: query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRate
	for rows.Next() {
		var t TaskRate
		if err := rows.Scan(&t.RunID, &t.OffsetDays, &t.AgentLLM, &t.TaskID, &t.Trials, &t.Successes, &t.AvgReward); err != nil {
			return nil, fmt.Errorf("results: scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OffsetDays != out[j].OffsetDays {
			return out[i].OffsetDays < out[j].OffsetDays
		}
		if out[i].AgentLLM != out[j].AgentLLM {
			return out[i].AgentLLM < out[j].AgentLLM
		}
		return lessTaskID(out[i].TaskID, out[j].TaskID)
	})
	return out, nil
}

// lessTaskID orders numeric ids numerically and everything else
// lexically after them.
func lessTaskID(a, b string) bool {
	na, nb := isDigits(a), isDigits(b)
	switch {
	case na && nb:
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	case na != nb:
		return na
	}
	return strings.Compare(a, b) < 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
