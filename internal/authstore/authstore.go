// Package authstore resolves a Mastodon OAuth access token to a user's
// id and block sets, and resolves hashtag names to their numeric
// Postgres id. Mutes and per-user language settings are not loaded. Built on a
// database/sql + circuitbreaker.DatabaseWrapper connection pool,
// queried via `jmoiron/sqlx` reads against Mastodon's existing schema —
// there's no write path here, only lookups.
package authstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/circuitbreaker"
	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

// Config holds the Postgres connection parameters.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
}

// Store resolves access tokens and hashtag names against Mastodon's
// existing Postgres schema (oauth_access_tokens / tags / blocks /
// account_domain_blocks).
type Store struct {
	db     *sqlx.DB
	cb     *circuitbreaker.DatabaseWrapper
	logger *zap.Logger
}

// Open connects to Postgres and verifies connectivity with a ping.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.IdleConnections == 0 {
		cfg.IdleConnections = 5
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = 5 * time.Minute
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	rawDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("authstore: open: %w", err)
	}
	rawDB.SetMaxOpenConns(cfg.MaxConnections)
	rawDB.SetMaxIdleConns(cfg.IdleConnections)
	rawDB.SetConnMaxLifetime(cfg.MaxLifetime)

	cb := circuitbreaker.NewDatabaseWrapper(rawDB, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cb.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("authstore: ping: %w", err)
	}

	return &Store{db: sqlx.NewDb(rawDB, "postgres"), cb: cb, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB, for health checks and connection
// pool tuning.
func (s *Store) DB() *sql.DB { return s.db.DB }

// Wrapper returns the circuit-breaker-wrapped handle used by ResolveToken
// and ResolveTag, for reuse by health.DatabaseHealthChecker.
func (s *Store) Wrapper() *circuitbreaker.DatabaseWrapper { return s.cb }

// AuthenticatedUser is what the request layer needs to build a
// subscription.Subscription once a token has resolved.
type AuthenticatedUser struct {
	ID     id.Id
	Blocks subscription.Blocks
}

// ResolveToken looks up the live, non-revoked access token and returns
// the owning user's id plus their block state (accounts they block,
// accounts blocking them, and blocked domains); mutes are not loaded,
// so muted accounts are not filtered. An expired,
// revoked, or unknown token is reported as an error — the caller must
// refuse the connection.
func (s *Store) ResolveToken(ctx context.Context, accessToken string) (AuthenticatedUser, error) {
	var userID int64
	row, err := s.cb.QueryRowContextCB(ctx, `
		SELECT resource_owner_id
		FROM oauth_access_tokens
		WHERE token = $1 AND revoked_at IS NULL
		  AND (expires_in IS NULL OR created_at + (expires_in || ' seconds')::interval > now())`,
		accessToken)
	if err != nil {
		return AuthenticatedUser{}, fmt.Errorf("authstore: resolve token: %w", err)
	}
	if err := row.Scan(&userID); err != nil {
		return AuthenticatedUser{}, fmt.Errorf("authstore: invalid or expired access token: %w", err)
	}

	blocks, err := s.loadBlocks(ctx, id.Id(userID))
	if err != nil {
		return AuthenticatedUser{}, err
	}
	return AuthenticatedUser{ID: id.Id(userID), Blocks: blocks}, nil
}

func (s *Store) loadBlocks(ctx context.Context, userID id.Id) (subscription.Blocks, error) {
	blocks := subscription.NewBlocks()

	rows, err := s.cb.QueryContext(ctx,
		`SELECT target_account_id FROM blocks WHERE account_id = $1`, int64(userID))
	if err != nil {
		return blocks, fmt.Errorf("authstore: load blocked users: %w", err)
	}
	if err := scanIDsInto(rows, blocks.BlockedUsers); err != nil {
		return blocks, err
	}

	rows, err = s.cb.QueryContext(ctx,
		`SELECT account_id FROM blocks WHERE target_account_id = $1`, int64(userID))
	if err != nil {
		return blocks, fmt.Errorf("authstore: load blocking users: %w", err)
	}
	if err := scanIDsInto(rows, blocks.BlockingUsers); err != nil {
		return blocks, err
	}

	domainRows, err := s.cb.QueryContext(ctx,
		`SELECT domain FROM account_domain_blocks WHERE account_id = $1`, int64(userID))
	if err != nil {
		return blocks, fmt.Errorf("authstore: load domain blocks: %w", err)
	}
	defer domainRows.Close()
	for domainRows.Next() {
		var domain string
		if err := domainRows.Scan(&domain); err != nil {
			return blocks, fmt.Errorf("authstore: scan domain block: %w", err)
		}
		blocks.BlockedDomains[domain] = struct{}{}
	}
	return blocks, domainRows.Err()
}

func scanIDsInto(rows *sql.Rows, into map[id.Id]struct{}) error {
	defer rows.Close()
	for rows.Next() {
		var raw int64
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("authstore: scan id: %w", err)
		}
		into[id.Id(raw)] = struct{}{}
	}
	return rows.Err()
}

// ResolveTag looks up a hashtag's numeric id by name, satisfying
// httpapi.TagResolver. Names are matched case-insensitively, the way
// Mastodon's own Tag.find_normalized does.
func (s *Store) ResolveTag(name string) (id.Id, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var tagID int64
	row, err := s.cb.QueryRowContextCB(ctx,
		`SELECT id FROM tags WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return id.Invalid, fmt.Errorf("authstore: resolve tag: %w", err)
	}
	if err := row.Scan(&tagID); err != nil {
		return id.Invalid, fmt.Errorf("authstore: unknown hashtag %q: %w", name, err)
	}
	return id.Id(tagID), nil
}
