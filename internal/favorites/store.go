package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/passbi/passbi_trip/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorites (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (kind, name)
)`

// DB is the subset of pgxpool.Pool the store uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists favorites in Postgres
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a favorites store
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "favorites")}
}

// EnsureSchema creates the favorites table if needed
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create favorites table: %w", err)
	}
	return nil
}

// Save inserts a favorite, or replaces the payload of the one with the same kind and name
func (s *Store) Save(ctx context.Context, f Favorite) (Favorite, error) {
	if err := f.Validate(); err != nil {
		return Favorite{}, err
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	query := `
		INSERT INTO favorites (id, kind, name, payload)
		VALUES ($1::uuid, $2, $3, $4::jsonb)
		ON CONFLICT (kind, name) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = NOW()
		RETURNING id::text, created_at, updated_at
	`

	var id string
	err := s.db.QueryRow(ctx, query, f.ID.String(), string(f.Kind), f.Name, string(f.Payload)).
		Scan(&id, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Favorite{}, apperr.Internal("failed to save favorite", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Favorite{}, apperr.Internal("invalid favorite id", err)
	}
	f.ID = parsed

	s.logger.Debug("favorite saved", "id", f.ID, "kind", f.Kind, "name", f.Name)
	return f, nil
}

// List returns favorites, newest first. An empty kind lists every kind.
func (s *Store) List(ctx context.Context, kind Kind) ([]Favorite, error) {
	query := `
		SELECT id::text, kind, name, payload, created_at, updated_at
		FROM favorites
		WHERE ($1 = '' OR kind = $1)
		ORDER BY updated_at DESC, name
	`

	rows, err := s.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, apperr.Internal("failed to list favorites", err)
	}
	defer rows.Close()

	result := make([]Favorite, 0)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("failed to list favorites", err)
	}

	return result, nil
}

// Get returns one favorite
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Favorite, error) {
	query := `
		SELECT id::text, kind, name, payload, created_at, updated_at
		FROM favorites
		WHERE id = $1::uuid
	`

	f, err := scanFavorite(s.db.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Favorite{}, apperr.NotFound(fmt.Sprintf("favorite %s not found", id))
	}
	return f, err
}

// Delete removes a favorite
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM favorites WHERE id = $1::uuid`, id.String())
	if err != nil {
		return apperr.Internal("failed to delete favorite", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(fmt.Sprintf("favorite %s not found", id))
	}
	return nil
}

func scanFavorite(row pgx.Row) (Favorite, error) {
	var (
		f       Favorite
		id      string
		kind    string
		payload []byte
	)
	if err := row.Scan(&id, &kind, &f.Name, &payload, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Favorite{}, err
		}
		return Favorite{}, apperr.Internal("failed to scan favorite", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Favorite{}, apperr.Internal("invalid favorite id", err)
	}

	f.ID = parsed
	f.Kind = Kind(kind)
	f.Payload = payload
	return f, nil
}
