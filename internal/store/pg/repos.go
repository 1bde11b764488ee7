package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubgate/hubgate/internal/store"
)

// Store is the postgres adapter for the gateway's persistence surface.
type Store struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Connect opens a pool for dsn. The caller owns the pool's lifetime.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping reports pool health for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) UpsertUser(ctx context.Context, providerID int64, p store.Profile) (*store.User, error) {
	const query = `
		INSERT INTO app_user (id, provider_id, login, name, email, avatar_url, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'free', NOW(), NOW())
		ON CONFLICT (provider_id) DO UPDATE SET
			login = $3, name = $4, email = $5, avatar_url = $6, updated_at = NOW()
		RETURNING id, provider_id, login, name, email, avatar_url, tier, created_at, updated_at
	`
	var u store.User
	err := s.pool.QueryRow(ctx, query, uuid.NewString(), providerID, p.Login, p.Name, p.Email, p.AvatarURL).Scan(
		&u.ID, &u.ProviderID, &u.Login, &u.Name, &u.Email, &u.AvatarURL, &u.Tier, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByProviderID(ctx context.Context, providerID int64) (*store.User, error) {
	const query = `
		SELECT id, provider_id, login, name, email, avatar_url, tier, created_at, updated_at
		FROM app_user WHERE provider_id = $1
	`
	var u store.User
	err := s.pool.QueryRow(ctx, query, providerID).Scan(
		&u.ID, &u.ProviderID, &u.Login, &u.Name, &u.Email, &u.AvatarURL, &u.Tier, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpsertInstallation(ctx context.Context, installationID int64, account store.Account, status string) error {
	const query = `
		INSERT INTO installation (id, account_login, account_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			account_login = $2, account_type = $3, status = $4, updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query, installationID, account.Login, account.Type, status)
	return err
}
