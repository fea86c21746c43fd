package sqlite

const schema = `
-- Runs table: one row per completed deduplication run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    config TEXT NOT NULL DEFAULT '{}',
    input_count INTEGER NOT NULL DEFAULT 0,
    kept_count INTEGER NOT NULL DEFAULT 0,
    duplicate_count INTEGER NOT NULL DEFAULT 0,
    cluster_count INTEGER NOT NULL DEFAULT 0,
    candidate_count INTEGER NOT NULL DEFAULT 0,
    confirmed_count INTEGER NOT NULL DEFAULT 0,
    overflow_skips INTEGER NOT NULL DEFAULT 0,
    dedup_rate REAL NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Per-domain reduction breakdown for a run
CREATE TABLE IF NOT EXISTS domain_stats (
    run_id TEXT NOT NULL,
    domain TEXT NOT NULL,
    input_count INTEGER NOT NULL DEFAULT 0,
    removed_count INTEGER NOT NULL DEFAULT 0,
    rate REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, domain),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Bounded sample of confirmed duplicate pairs for a run
CREATE TABLE IF NOT EXISTS sample_pairs (
    run_id TEXT NOT NULL,
    doc_a INTEGER NOT NULL,
    doc_b INTEGER NOT NULL,
    similarity REAL NOT NULL,
    PRIMARY KEY (run_id, doc_a, doc_b),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

-- Engine events table
-- No foreign key on run_id: events stream in while the run is still
-- live, before its runs row exists.
CREATE TABLE IF NOT EXISTS run_events (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('run_started', 'phase_completed', 'bucket_overflow', 'run_completed', 'config_rejected')),
    severity TEXT NOT NULL CHECK(severity IN ('info', 'warning', 'error')),
    timestamp DATETIME NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
CREATE INDEX IF NOT EXISTS idx_run_events_type ON run_events(type);
CREATE INDEX IF NOT EXISTS idx_run_events_timestamp ON run_events(timestamp);
`
