package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/models"
)

// Index is an optional PostgreSQL audit index of backup snapshots.
// The object backend stays the source of truth; the index survives
// backup deletion and purging as a history of what was snapshotted.
type Index struct {
	db *sql.DB
}

// OpenIndex connects to the index database and ensures its schema.
func OpenIndex(databaseURL string) (*Index, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ix := &Index{db: db}
	if err := ix.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) migrate() error {
	_, err := ix.db.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			id            TEXT PRIMARY KEY,
			original_file TEXT NOT NULL,
			size_bytes    BIGINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			deleted_at    TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create backups table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Insert records a new backup snapshot.
func (ix *Index) Insert(ctx context.Context, rec models.BackupRecord) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("backup_insert", time.Since(start)) }()

	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO backups (id, original_file, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OriginalFile, rec.SizeBytes, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert backup %s: %w", rec.ID, err)
	}
	return nil
}

// Remove marks a backup as deleted without losing its history row.
func (ix *Index) Remove(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("backup_remove", time.Since(start)) }()

	_, err := ix.db.ExecContext(ctx,
		`UPDATE backups SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("remove backup %s: %w", id, err)
	}
	return nil
}

// History returns index rows newest first, including deleted backups.
// limit <= 0 returns everything.
func (ix *Index) History(ctx context.Context, limit int) ([]models.BackupRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("backup_history", time.Since(start)) }()

	query := `SELECT id, original_file, size_bytes, created_at
	          FROM backups ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query backup history: %w", err)
	}
	defer rows.Close()

	var records []models.BackupRecord
	for rows.Next() {
		var rec models.BackupRecord
		if err := rows.Scan(&rec.ID, &rec.OriginalFile, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
