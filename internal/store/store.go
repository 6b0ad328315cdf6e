package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meshnet-labs/routing-table/internal/routing"
)

// Store is the pgx-backed implementation of routing.Store, covering the
// four persistent columns from spec.md §3: AccountAnnouncements,
// PeerComponent, ComponentEdges, LastComponentNonce. Each is its own
// table rather than a generic key-value column family (see
// migrations/0001_routing_table.sql) — the teacher's own internal/db and
// internal/history packages use typed tables the same way, never a
// generic blob store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

var _ routing.Store = (*Store)(nil)

func (s *Store) GetAnnouncement(ctx context.Context, accountID routing.AccountID) (routing.AnnounceAccount, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM account_announcements WHERE account_id = $1`,
		string(accountID),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return routing.AnnounceAccount{}, false, nil
		}
		return routing.AnnounceAccount{}, false, fmt.Errorf("store: querying account announcement: %w", err)
	}

	a, err := decodeAnnouncement(accountID, payload)
	if err != nil {
		return routing.AnnounceAccount{}, false, err
	}
	return a, true, nil
}

func (s *Store) GetPeerComponent(ctx context.Context, peer routing.PeerID) (uint64, bool, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx,
		`SELECT component_nonce FROM peer_components WHERE peer_id = $1`,
		encodePeer(peer),
	).Scan(&nonce)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("store: querying peer component: %w", err)
	}
	return uint64(nonce), true, nil
}

func (s *Store) GetComponentEdges(ctx context.Context, nonce uint64) ([]routing.Edge, error) {
	var payload []byte
	var compressed bool
	err := s.pool.QueryRow(ctx,
		`SELECT payload, compressed FROM component_edges WHERE component_nonce = $1`,
		int64(nonce),
	).Scan(&payload, &compressed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: querying component edges: %w", err)
	}

	if compressed {
		var err error
		payload, err = decompress(payload)
		if err != nil {
			return nil, err
		}
	}
	return decodeEdges(payload)
}

func (s *Store) GetLastComponentNonce(ctx context.Context) (uint64, bool, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx, `SELECT nonce FROM last_component_nonce WHERE id = 1`).Scan(&nonce)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("store: querying last component nonce: %w", err)
	}
	return uint64(nonce), true, nil
}

func (s *Store) NewBatch() routing.Batch {
	return &batch{pool: s.pool, logger: s.logger}
}
