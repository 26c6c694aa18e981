package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wagnerlima/manim-mcp/internal/models"
)

// JournalFile is the database file name inside the data directory.
const JournalFile = "renders.db"

// Journal records every preview and render attempt in a SQLite database so
// past outcomes survive a restart.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database in dataDir and runs
// migrations.
func OpenJournal(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, JournalFile)
	db, err := sql.Open("sqlite3", "file:"+dbPath+journalDSN)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}

	if _, err := db.Exec(JournalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts a render attempt. An empty ID is filled with a fresh UUID.
func (j *Journal) Record(rec models.RenderRecord) (models.RenderRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := j.db.Exec(
		`INSERT INTO renders (id, project_id, mode, segment_id, status, output_path, log_excerpt, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, string(rec.Mode), rec.SegmentID, rec.Status, rec.OutputPath, rec.LogExcerpt, rec.DurationMs,
	)
	if err != nil {
		return rec, fmt.Errorf("insert render record: %w", err)
	}

	// Re-read to get the timestamp
	j.db.QueryRow(`SELECT created_at FROM renders WHERE id = ?`, rec.ID).Scan(&rec.CreatedAt)
	return rec, nil
}

// List returns the most recent render attempts of a project, newest first.
// A limit of zero or less returns all of them.
func (j *Journal) List(projectID string, limit int) ([]models.RenderRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT id, project_id, mode, segment_id, status, output_path, log_excerpt, duration_ms, created_at
		 FROM renders
		 WHERE project_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	var records []models.RenderRecord
	for rows.Next() {
		var r models.RenderRecord
		var mode string
		if err := rows.Scan(&r.ID, &r.ProjectID, &mode, &r.SegmentID, &r.Status, &r.OutputPath, &r.LogExcerpt, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan render: %w", err)
		}
		r.Mode = models.RenderMode(mode)
		records = append(records, r)
	}
	return records, rows.Err()
}
