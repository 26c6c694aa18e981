package storage

// JournalSchema is the SQL schema for the render journal database.
const JournalSchema = `
CREATE TABLE IF NOT EXISTS renders (
    id           TEXT PRIMARY KEY,
    project_id   TEXT NOT NULL,
    mode         TEXT NOT NULL CHECK(mode IN ('preview', 'render')),
    segment_id   TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    output_path  TEXT NOT NULL DEFAULT '',
    log_excerpt  TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_renders_project ON renders(project_id, created_at);
`

// journalDSN configures SQLite through connection-string pragmas.
const journalDSN = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
