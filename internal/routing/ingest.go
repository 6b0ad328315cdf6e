package routing

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/meshnet-labs/routing-table/internal/metrics"
)

// IngestConfig carries the pipeline's tunables. Zero values fall back to
// the defaults below.
type IngestConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	UpdateInterval time.Duration
}

const (
	defaultIngestBatchSize      = 256
	defaultIngestFlushInterval  = 200 * time.Millisecond
	defaultIngestUpdateInterval = time.Second
)

// IngestPipeline is the dedicated single-writer owner spec.md §5 requires
// for all RoutingTable mutation. It is grounded on the teacher's
// internal/history/pipeline.go Run method: a select loop over a flush
// ticker, an update ticker, and the inbound queue's notify channel, with
// no other goroutine ever touching the RoutingTable.
type IngestPipeline struct {
	table   *RoutingTable
	queue   *EdgeQueue
	logger  *zap.Logger
	cfg     IngestConfig
	running atomic.Bool
}

func NewIngestPipeline(table *RoutingTable, queue *EdgeQueue, logger *zap.Logger, cfg IngestConfig) *IngestPipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultIngestBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultIngestFlushInterval
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = defaultIngestUpdateInterval
	}
	return &IngestPipeline{table: table, queue: queue, logger: logger, cfg: cfg}
}

// Running reports whether Run's select loop is currently active, the
// readiness signal internal/http.Server polls in place of the teacher's
// Kafka consumer join-state check.
func (p *IngestPipeline) Running() bool {
	return p.running.Load()
}

// Run drains the edge queue into batched ProcessEdges calls until ctx is
// done, flushing on a ticker or once a batch fills, and periodically
// calls Update so peer_forwarding and the archiver stay current.
func (p *IngestPipeline) Run(ctx context.Context) {
	p.running.Store(true)
	defer p.running.Store(false)

	flushTicker := time.NewTicker(p.cfg.FlushInterval)
	defer flushTicker.Stop()
	updateTicker := time.NewTicker(p.cfg.UpdateInterval)
	defer updateTicker.Stop()

	batch := make([]Edge, 0, p.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		newEdge := p.table.ProcessEdges(ctx, batch)
		metrics.IngestBatchSize.Observe(float64(len(batch)))
		if p.logger != nil {
			p.logger.Debug("processed edge batch",
				zap.Int("batch_size", len(batch)), zap.Bool("new_edge", newEdge))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-p.queue.notify:
			batch = p.queue.DrainInto(batch)
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}

		case <-flushTicker.C:
			flush()

		case <-updateTicker.C:
			p.table.Update(ctx, true)
		}
	}
}
