package sqlite

// schema is applied on every Open via CREATE TABLE/INDEX IF NOT EXISTS, so
// it is safe to run against an already-initialized database. Columns added
// after the initial release live in migrations.go instead of here.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    content_hash TEXT,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    priority TEXT NOT NULL DEFAULT 'medium',
    task_type TEXT NOT NULL DEFAULT 'task',
    parent_id TEXT,
    phase TEXT DEFAULT '',
    size TEXT DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    position_version INTEGER NOT NULL DEFAULT 1,
    labels TEXT NOT NULL DEFAULT '[]',
    notes TEXT NOT NULL DEFAULT '[]',
    acceptance_criteria TEXT NOT NULL DEFAULT '[]',
    files TEXT NOT NULL DEFAULT '[]',
    verification_meta TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    cancelled_at DATETIME,
    archived_at DATETIME,
    archive_reason TEXT DEFAULT '',
    cycle_time_days REAL,
    created_by TEXT DEFAULT '',
    modified_by TEXT DEFAULT '',
    session_id TEXT DEFAULT '',
    deleted_at DATETIME,
    deleted_by TEXT DEFAULT '',
    delete_reason TEXT DEFAULT '',
    FOREIGN KEY (parent_id) REFERENCES tasks(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);

CREATE TABLE IF NOT EXISTS dependencies (
    task_id TEXT NOT NULL,
    depends_on_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_by TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (task_id, depends_on_id),
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
    FOREIGN KEY (depends_on_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_dependencies_task ON dependencies(task_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on_id);

CREATE TABLE IF NOT EXISTS relations (
    task_id TEXT NOT NULL,
    related_to TEXT NOT NULL,
    relation_type TEXT NOT NULL DEFAULT 'related',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (task_id, related_to, relation_type),
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
    FOREIGN KEY (related_to) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relations_task ON relations(task_id);

-- Blocked-task cache: one row per task currently blocked by an incomplete
-- dependency, rebuilt incrementally on task/dependency writes so
-- GetReadyWork/GetBlockedTasks avoid a recursive CTE per call.
CREATE TABLE IF NOT EXISTS blocked_tasks_cache (
    task_id TEXT PRIMARY KEY,
    blocked_by_count INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    scope_type TEXT NOT NULL DEFAULT 'global',
    scope_id TEXT DEFAULT '',
    current_task TEXT DEFAULT '',
    task_started_at DATETIME,
    agent TEXT DEFAULT '',
    notes TEXT NOT NULL DEFAULT '[]',
    tasks_completed TEXT NOT NULL DEFAULT '[]',
    tasks_created TEXT NOT NULL DEFAULT '[]',
    previous_session_id TEXT DEFAULT '',
    next_session_id TEXT DEFAULT '',
    handoff_note TEXT DEFAULT '',
    debrief_note TEXT DEFAULT '',
    statistics TEXT NOT NULL DEFAULT '{}',
    resume_count INTEGER NOT NULL DEFAULT 0,
    graded INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

-- Append-only focus history: current focus for a session is the row with
-- cleared_at IS NULL (there is at most one per session, enforced in code).
CREATE TABLE IF NOT EXISTS task_work (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    set_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    cleared_at DATETIME,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_task_work_session ON task_work(session_id, set_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_task_work_open ON task_work(session_id) WHERE cleared_at IS NULL;

CREATE TABLE IF NOT EXISTS pipelines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'active',
    current_stage_id INTEGER NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS stages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pipeline_id INTEGER NOT NULL,
    stage_name TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    started_at DATETIME,
    completed_at DATETIME,
    blocked_at DATETIME,
    skipped_at DATETIME,
    reason TEXT DEFAULT '',
    notes TEXT NOT NULL DEFAULT '[]',
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (pipeline_id) REFERENCES pipelines(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_stages_pipeline ON stages(pipeline_id, sequence);

CREATE TABLE IF NOT EXISTS gate_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage_id INTEGER NOT NULL,
    gate_name TEXT NOT NULL,
    result TEXT NOT NULL,
    checked_by TEXT DEFAULT '',
    details TEXT DEFAULT '',
    reason TEXT DEFAULT '',
    checked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (stage_id) REFERENCES stages(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_gate_results_stage ON gate_results(stage_id);

CREATE TABLE IF NOT EXISTS evidence (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage_id INTEGER NOT NULL,
    uri TEXT NOT NULL,
    evidence_type TEXT NOT NULL DEFAULT 'file',
    description TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (stage_id) REFERENCES stages(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pipeline_id INTEGER NOT NULL,
    from_stage_id INTEGER NOT NULL DEFAULT 0,
    to_stage_id INTEGER NOT NULL,
    transition_type TEXT NOT NULL DEFAULT 'automatic',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (pipeline_id) REFERENCES pipelines(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    action TEXT NOT NULL,
    task_id TEXT DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    details TEXT DEFAULT '',
    before_json TEXT DEFAULT '',
    after_json TEXT DEFAULT '',
    error TEXT DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_task ON audit_log(task_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);

-- Config table: key/value settings seeded at schema creation. The daemon
-- reads its rate limits from config.json, not from this table.
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT OR IGNORE INTO config (key, value) VALUES
    ('audit_retention_days', '90'),
    ('rate_limit_query_per_min', '600'),
    ('rate_limit_mutate_per_min', '120'),
    ('rate_limit_spawn_per_min', '20');

-- Metadata table: internal bookkeeping (next task ID counter, schema version).
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('next_task_id', '1');
`
