package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gss-go/internal/database/migrations"
	"gss-go/internal/gss"
)

// SQLDatabase implements gss.Database on top of database/sql. Queries use
// $n placeholders, which both go-sqlite3 and lib/pq accept, always numbered
// in order of first appearance.
type SQLDatabase struct {
	db     *sql.DB
	driver string
	path   string
	clock  gss.Clock
	idgen  gss.IDGenerator
}

// NewSQLDatabaseFromDB wraps an existing connection. The caller is
// responsible for configuring it and applying migrations.
// A nil clock or idgen selects the real implementation.
func NewSQLDatabaseFromDB(db *sql.DB, driver string, clock gss.Clock, idgen gss.IDGenerator) *SQLDatabase {
	if clock == nil {
		clock = gss.RealClock{}
	}
	if idgen == nil {
		idgen = gss.UUIDGenerator{}
	}
	return &SQLDatabase{
		db:     db,
		driver: driver,
		clock:  clock,
		idgen:  idgen,
	}
}

const recordColumns = "id, name, title, start_at, end_at, folder_id, link, created_at"

func scanRecord(row interface{ Scan(...any) error }) (*gss.Record, error) {
	var r gss.Record
	if err := row.Scan(&r.ID, &r.Name, &r.Title, &r.Start, &r.End, &r.FolderID, &r.Link, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Record operations

func (s *SQLDatabase) FindLatestRecord(ctx context.Context, title string) (*gss.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM session_records WHERE title = $1 ORDER BY end_at DESC, created_at DESC LIMIT 1",
		title)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding latest record: %w", err)
	}
	return rec, nil
}

func (s *SQLDatabase) CreateRecord(ctx context.Context, nr gss.NewRecord) (*gss.Record, error) {
	now := s.clock.Now().UTC()
	rec := &gss.Record{
		ID:        s.idgen.New(),
		Name:      nr.Name,
		Title:     nr.Title,
		Start:     nr.Start.UTC(),
		End:       nr.End.UTC(),
		FolderID:  nr.FolderID,
		Link:      nr.Link,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_records (id, name, title, start_at, end_at, folder_id, link, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Name, rec.Title, rec.Start, rec.End, rec.FolderID, rec.Link, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}
	return rec, nil
}

func (s *SQLDatabase) UpdateRecordEnd(ctx context.Context, id string, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE session_records SET end_at = $1, updated_at = $2 WHERE id = $3",
		end.UTC(), s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating record end: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record end: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating record end: no record with id %s", id)
	}
	return nil
}

func (s *SQLDatabase) ListRecords(ctx context.Context, title string, limit int) ([]*gss.Record, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString("SELECT " + recordColumns + " FROM session_records")
	if title != "" {
		args = append(args, title)
		fmt.Fprintf(&query, " WHERE title = $%d", len(args))
	}
	query.WriteString(" ORDER BY end_at DESC, created_at DESC")
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var result []*gss.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return result, nil
}

// Upload operation tracking

func (s *SQLDatabase) CreateUploadOperation(ctx context.Context, source string) (*gss.UploadOperation, error) {
	op := &gss.UploadOperation{
		Source:    source,
		StartedAt: s.clock.Now().UTC(),
		Status:    gss.OperationRunning,
	}
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO upload_operations (source, started_at, status) VALUES ($1, $2, $3) RETURNING id",
		op.Source, op.StartedAt, op.Status).Scan(&op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating upload operation: %w", err)
	}
	return op, nil
}

func (s *SQLDatabase) FinishUploadOperation(ctx context.Context, id int64, status string, res gss.UploadResult) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE upload_operations
		 SET finished_at = $1, status = $2, files_uploaded = $3, records_created = $4, records_extended = $5
		 WHERE id = $6`,
		s.clock.Now().UTC(), status, res.FilesUploaded, res.RecordsCreated, res.RecordsExtended, id)
	if err != nil {
		return fmt.Errorf("finishing upload operation: %w", err)
	}
	return nil
}

func (s *SQLDatabase) ListUploadOperations(ctx context.Context, limit int) ([]*gss.UploadOperation, error) {
	query := `SELECT id, source, started_at, finished_at, status, files_uploaded, records_created, records_extended
		 FROM upload_operations ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing upload operations: %w", err)
	}
	defer rows.Close()

	var result []*gss.UploadOperation
	for rows.Next() {
		var (
			op       gss.UploadOperation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Source, &op.StartedAt, &finished, &op.Status,
			&op.FilesUploaded, &op.RecordsCreated, &op.RecordsExtended); err != nil {
			return nil, fmt.Errorf("scanning upload operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing upload operations: %w", err)
	}
	return result, nil
}

// Driver returns the migration driver name of the connection.
func (s *SQLDatabase) Driver() string {
	return s.driver
}

// Path returns the database file path, or "" for non-file databases.
func (s *SQLDatabase) Path() string {
	return s.path
}

// Migrate applies all pending migrations.
func (s *SQLDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, s.driver)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, s.driver)
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
