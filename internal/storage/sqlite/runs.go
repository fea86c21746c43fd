package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yunmindata/dedupe/internal/config"
	"github.com/yunmindata/dedupe/internal/types"
)

// RunRecord is one persisted engine run: the configuration it ran
// under and the report it produced.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Config     config.Config
	Report     *types.Report
}

// SaveRun persists a completed run. The run row, its per-domain
// breakdown, and its sample pairs commit in one transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.Report == nil {
		return fmt.Errorf("run %s has no report", run.ID)
	}

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (
			id, started_at, finished_at, config,
			input_count, kept_count, duplicate_count, cluster_count,
			candidate_count, confirmed_count, overflow_skips,
			dedup_rate, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	r := run.Report
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		string(configJSON),
		r.InputCount,
		r.KeptCount,
		r.DuplicateCount,
		r.ClusterCount,
		r.CandidateCount,
		r.ConfirmedCount,
		r.OverflowSkips,
		r.DeduplicationRate,
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}

	for domain, dr := range r.PerDomain {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO domain_stats (run_id, domain, input_count, removed_count, rate)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, domain, dr.InputCount, dr.RemovedCount, dr.Rate)
		if err != nil {
			return fmt.Errorf("failed to store domain stats for %q: %w", domain, err)
		}
	}

	for _, pair := range r.SamplePairs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sample_pairs (run_id, doc_a, doc_b, similarity)
			VALUES (?, ?, ?, ?)
		`, run.ID, pair.A, pair.B, pair.Similarity)
		if err != nil {
			return fmt.Errorf("failed to store sample pair (%d,%d): %w", pair.A, pair.B, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run by id, including its per-domain breakdown and
// sample pairs.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, config,
		       input_count, kept_count, duplicate_count, cluster_count,
		       candidate_count, confirmed_count, overflow_skips,
		       dedup_rate, duration_ms
		FROM runs
		WHERE id = ?
	`
	run, err := s.scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	if err := s.loadDomainStats(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadSamplePairs(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. Per-domain and
// sample detail is left unloaded; use GetRun for a full record.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, config,
		       input_count, kept_count, duplicate_count, cluster_count,
		       candidate_count, confirmed_count, overflow_skips,
		       dedup_rate, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*RunRecord
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return result, nil
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStorage) scanRun(row scanner) (*RunRecord, error) {
	var run RunRecord
	var configJSON string
	var durationMs int64
	report := &types.Report{PerDomain: make(map[string]types.DomainReduction)}

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&configJSON,
		&report.InputCount,
		&report.KeptCount,
		&report.DuplicateCount,
		&report.ClusterCount,
		&report.CandidateCount,
		&report.ConfirmedCount,
		&report.OverflowSkips,
		&report.DeduplicationRate,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for run %s: %w", run.ID, err)
	}
	report.RunID = run.ID
	report.Duration = time.Duration(durationMs) * time.Millisecond
	run.Report = report
	return &run, nil
}

func (s *SQLiteStorage) loadDomainStats(ctx context.Context, run *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, input_count, removed_count, rate
		FROM domain_stats
		WHERE run_id = ?
	`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query domain stats for run %s: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var domain string
		var dr types.DomainReduction
		if err := rows.Scan(&domain, &dr.InputCount, &dr.RemovedCount, &dr.Rate); err != nil {
			return fmt.Errorf("failed to scan domain stats: %w", err)
		}
		run.Report.PerDomain[domain] = dr
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadSamplePairs(ctx context.Context, run *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_a, doc_b, similarity
		FROM sample_pairs
		WHERE run_id = ?
		ORDER BY doc_a, doc_b
	`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query sample pairs for run %s: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pair types.DuplicatePair
		if err := rows.Scan(&pair.A, &pair.B, &pair.Similarity); err != nil {
			return fmt.Errorf("failed to scan sample pair: %w", err)
		}
		run.Report.SamplePairs = append(run.Report.SamplePairs, pair)
	}
	return rows.Err()
}
