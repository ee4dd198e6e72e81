// Package store keeps OpenAPI documents in PostgreSQL so a server can be
// started from a stored spec (--api db:<name>).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// ErrNotFound is returned when no spec matches the requested name.
var ErrNotFound = errors.New("openapi spec not found")

const specColumns = `id, name, title, version, spec_content, file_format, file_size, is_active, created_at, updated_at`

// Store handles database operations for OpenAPI specs.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "store"))}
}

// Open connects to PostgreSQL and checks the connection.
//
// Example usage:
//
//	st, err := store.Open(ctx, os.Getenv("DATABASE_URL"), logger)
//	if err != nil {
//		return err
//	}
//	defer st.Close()
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		return nil, fmt.Errorf("DATABASE_URL must be a PostgreSQL connection string starting with 'postgres://' or 'postgresql://'")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	s := New(db, logger)
	s.logger.Info("database connected", zap.String("url", redactURL(databaseURL)))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the openapi_specs table, its indexes and the updated_at trigger.
func (s *Store) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS openapi_specs (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		title VARCHAR(500),
		version VARCHAR(100),
		spec_content TEXT NOT NULL,
		file_format VARCHAR(10) DEFAULT 'yaml',
		file_size INTEGER,
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP(6) DEFAULT NOW(),
		updated_at TIMESTAMP(6) DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_openapi_specs_is_active ON openapi_specs(is_active);
	CREATE INDEX IF NOT EXISTS idx_openapi_specs_name ON openapi_specs(name);

	CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ language 'plpgsql';

	DROP TRIGGER IF EXISTS update_openapi_specs_updated_at ON openapi_specs;
	CREATE TRIGGER update_openapi_specs_updated_at
		BEFORE UPDATE ON openapi_specs
		FOR EACH ROW
		EXECUTE FUNCTION update_updated_at_column();
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create openapi_specs table: %w", err)
	}
	s.logger.Info("migrations completed")
	return nil
}

// Create inserts a spec and fills in its ID and timestamps.
func (s *Store) Create(ctx context.Context, spec *Spec) error {
	query := `
		INSERT INTO openapi_specs (name, title, version, spec_content, file_format, file_size, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		spec.Name,
		spec.Title,
		spec.Version,
		spec.Content,
		spec.Format,
		spec.Size,
		spec.Active,
	).Scan(&spec.ID, &spec.CreatedAt, &spec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create openapi spec: %w", err)
	}

	s.logger.Info("spec stored", zap.String("name", spec.Name), zap.Int("id", spec.ID), zap.Int("bytes", spec.Size))
	return nil
}

// GetByName retrieves a spec by its unique name.
func (s *Store) GetByName(ctx context.Context, name string) (*Spec, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+specColumns+` FROM openapi_specs WHERE name = $1`, name)
	spec, err := scanSpec(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get openapi spec: %w", err)
	}
	return spec, nil
}

// List returns stored specs, newest first.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]*Spec, error) {
	query := `SELECT ` + specColumns + ` FROM openapi_specs`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list openapi specs: %w", err)
	}
	defer rows.Close()

	var specs []*Spec
	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan openapi spec: %w", err)
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list openapi specs: %w", err)
	}
	return specs, nil
}

// SetActive sets the is_active status of a spec.
func (s *Store) SetActive(ctx context.Context, name string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE openapi_specs SET is_active = $2, updated_at = NOW() WHERE name = $1`, name, active)
	if err != nil {
		return fmt.Errorf("failed to set active status: %w", err)
	}
	return expectOneRow(result, name)
}

// Delete removes a spec.
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM openapi_specs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete openapi spec: %w", err)
	}
	return expectOneRow(result, name)
}

func expectOneRow(result sql.Result, name string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpec(row rowScanner) (*Spec, error) {
	spec := &Spec{}
	var (
		format sql.NullString
		size   sql.NullInt64
		active sql.NullBool
	)
	err := row.Scan(
		&spec.ID,
		&spec.Name,
		&spec.Title,
		&spec.Version,
		&spec.Content,
		&format,
		&size,
		&active,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	spec.Format = format.String
	spec.Size = int(size.Int64)
	spec.Active = active.Valid && active.Bool
	return spec, nil
}

// redactURL hides credentials: postgres://user:pw@host/db -> postgres://[HIDDEN]@host/db.
func redactURL(databaseURL string) string {
	at := strings.LastIndex(databaseURL, "@")
	scheme := strings.Index(databaseURL, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return databaseURL
	}
	return databaseURL[:scheme+3] + "[HIDDEN]" + databaseURL[at:]
}
