package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BalansCollective/weavemesh-git/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer; a single connection
	// serializes the MCP server's tool calls.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Repositories ---

func (s *SQLiteStore) SaveRepository(ctx context.Context, r *models.TrackedRepository) error {
	if r.ID == "" {
		r.ID = models.NewID()
	}
	snapshot, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode repository: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO repositories (id, path, name, current_branch, activity_score, snapshot, last_scanned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path=excluded.path, name=excluded.name, current_branch=excluded.current_branch,
			activity_score=excluded.activity_score, snapshot=excluded.snapshot, last_scanned=excluded.last_scanned,
			updated_at=excluded.updated_at`,
		r.ID, r.Path, r.Name, r.CurrentBranch, r.Statistics.ActivityScore, string(snapshot), r.LastScanned.UTC(), now, now,
	)
	if err != nil {
		return fmt.Errorf("save repository: %w", err)
	}
	return nil
}

func decodeRepository(snapshot string) (*models.TrackedRepository, error) {
	r := &models.TrackedRepository{}
	if err := json.Unmarshal([]byte(snapshot), r); err != nil {
		return nil, fmt.Errorf("decode repository: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) getRepository(ctx context.Context, column, value string) (*models.TrackedRepository, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM repositories WHERE "+column+" = ?", value).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %w: %s", ErrNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return decodeRepository(snapshot)
}

func (s *SQLiteStore) GetRepository(ctx context.Context, id string) (*models.TrackedRepository, error) {
	return s.getRepository(ctx, "id", id)
}

func (s *SQLiteStore) GetRepositoryByPath(ctx context.Context, path string) (*models.TrackedRepository, error) {
	return s.getRepository(ctx, "path", path)
}

func (s *SQLiteStore) ListRepositories(ctx context.Context) ([]*models.TrackedRepository, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT snapshot FROM repositories ORDER BY name, path")
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*models.TrackedRepository
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		r, err := decodeRepository(snapshot)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) DeleteRepository(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("repository %w: %s", ErrNotFound, id)
	}
	return nil
}

// --- Resolution history ---

func (s *SQLiteStore) AddResolutionRecord(ctx context.Context, rec *models.ResolutionRecord) error {
	if rec.ID == "" {
		rec.ID = models.NewID()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode resolution record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolution_records (id, conflict_id, conflict_type, file_path, resolution_type, success, minutes, record, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Conflict.ID, string(rec.Conflict.Type), rec.Conflict.FilePath, string(rec.Resolution.Type),
		boolToInt(rec.Outcome.Success), rec.ResolutionTimeMinutes, string(data), rec.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("add resolution record: %w", err)
	}
	return nil
}

// ListResolutionRecords returns records oldest first. A positive limit keeps
// only the most recent limit records.
func (s *SQLiteStore) ListResolutionRecords(ctx context.Context, limit int) ([]models.ResolutionRecord, error) {
	query := "SELECT record FROM (SELECT record, recorded_at, id FROM resolution_records ORDER BY recorded_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += ") ORDER BY recorded_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resolution records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.ResolutionRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan resolution record: %w", err)
		}
		var rec models.ResolutionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode resolution record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Learned patterns ---

// ReplacePatterns swaps the stored pattern set in one transaction.
func (s *SQLiteStore) ReplacePatterns(ctx context.Context, patterns []models.ConflictPattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM conflict_patterns"); err != nil {
		return fmt.Errorf("clear patterns: %w", err)
	}
	for _, p := range patterns {
		if p.ID == "" {
			p.ID = models.NewID()
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode pattern: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conflict_patterns (id, name, frequency, confidence, pattern) VALUES (?, ?, ?, ?, ?)",
			p.ID, p.Name, p.Frequency, p.Confidence, string(data),
		); err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListPatterns(ctx context.Context) ([]models.ConflictPattern, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT pattern FROM conflict_patterns ORDER BY frequency DESC, name")
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []models.ConflictPattern
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		var p models.ConflictPattern
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
