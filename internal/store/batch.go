package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/meshnet-labs/routing-table/internal/routing"
)

type writeOp struct {
	sql  string
	args []any
}

// batch accumulates writes across the four columns for one atomic
// commit, grounded on the teacher's internal/history/writer.go
// FlushBatch: build a pgx.Batch, SendBatch once, drain every result,
// commit once.
type batch struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	ops    []writeOp
}

var _ routing.Batch = (*batch)(nil)

func (b *batch) PutAnnouncement(a routing.AnnounceAccount) {
	b.ops = append(b.ops, writeOp{
		sql: `INSERT INTO account_announcements (account_id, payload, updated_at) VALUES ($1, $2, now())
		      ON CONFLICT (account_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		args: []any{string(a.AccountID), encodeAnnouncement(a)},
	})
}

func (b *batch) PutPeerComponent(peer routing.PeerID, nonce uint64) {
	b.ops = append(b.ops, writeOp{
		sql: `INSERT INTO peer_components (peer_id, component_nonce) VALUES ($1, $2)
		      ON CONFLICT (peer_id) DO UPDATE SET component_nonce = EXCLUDED.component_nonce`,
		args: []any{encodePeer(peer), int64(nonce)},
	})
}

func (b *batch) DeletePeerComponent(peer routing.PeerID) {
	b.ops = append(b.ops, writeOp{
		sql:  `DELETE FROM peer_components WHERE peer_id = $1`,
		args: []any{encodePeer(peer)},
	})
}

// PutComponentEdges zstd-compresses the encoded edge list before
// writing it, exactly as internal/history/writer.go conditionally
// compresses raw BMP bytes before the same INSERT call.
func (b *batch) PutComponentEdges(nonce uint64, edges []routing.Edge) {
	payload := compress(encodeEdges(edges))
	b.ops = append(b.ops, writeOp{
		sql: `INSERT INTO component_edges (component_nonce, payload, compressed) VALUES ($1, $2, true)
		      ON CONFLICT (component_nonce) DO UPDATE SET payload = EXCLUDED.payload, compressed = true`,
		args: []any{int64(nonce), payload},
	})
}

func (b *batch) DeleteComponentEdges(nonce uint64) {
	b.ops = append(b.ops, writeOp{
		sql:  `DELETE FROM component_edges WHERE component_nonce = $1`,
		args: []any{int64(nonce)},
	})
}

func (b *batch) PutLastComponentNonce(nonce uint64) {
	b.ops = append(b.ops, writeOp{
		sql: `INSERT INTO last_component_nonce (id, nonce) VALUES (1, $1)
		      ON CONFLICT (id) DO UPDATE SET nonce = EXCLUDED.nonce`,
		args: []any{int64(nonce)},
	})
}

// Commit applies every queued write atomically (spec.md §5: "writes ...
// grouped into atomic batches and committed once per logical
// operation"). Per-statement failures are combined with multierr so a
// caller logging the result sees every column that failed, not just the
// first — go.uber.org/multierr is already a teacher dependency, promoted
// here from indirect to direct.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: beginning batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pgxBatch := &pgx.Batch{}
	for _, op := range b.ops {
		pgxBatch.Queue(op.sql, op.args...)
	}

	results := tx.SendBatch(ctx, pgxBatch)
	var combined error
	for i := range b.ops {
		if _, err := results.Exec(); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("store: batch op %d: %w", i, err))
		}
	}
	if err := results.Close(); err != nil {
		combined = multierr.Append(combined, fmt.Errorf("store: closing batch results: %w", err))
	}
	if combined != nil {
		return combined
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: committing batch: %w", err)
	}
	return nil
}
