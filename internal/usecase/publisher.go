package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// MaxBatchSize is the most writes the remote store accepts in one atomic batch
const MaxBatchSize = 100

// PublisherConfig holds batching configuration
type PublisherConfig struct {
	BatchSize        int
	BatchesPerSecond float64 // 0 disables throttling
}

// Publisher writes documents to the remote store in atomic batches
type Publisher struct {
	store     domain.DocumentStore
	batchSize int
	limiter   *rate.Limiter
	now       func() time.Time
}

// PublishReport counts what a publish committed
type PublishReport struct {
	Collection string `json:"collection"`
	Batches    int    `json:"batches"`
	Committed  int    `json:"committed"`
	Skipped    int    `json:"skipped"`
}

// NewPublisher creates a new publisher
func NewPublisher(store domain.DocumentStore, config PublisherConfig) *Publisher {
	size := config.BatchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}

	var limiter *rate.Limiter
	if config.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.BatchesPerSecond), 1)
	}

	return &Publisher{
		store:     store,
		batchSize: size,
		limiter:   limiter,
		now:       time.Now,
	}
}

// CommitAll commits writes in batches. Batches already committed stay applied when a later
// one fails; the error wraps ErrBatchCommit and the report says how far the run got.
func (p *Publisher) CommitAll(ctx context.Context, collection string, writes []domain.DocumentWrite) (*PublishReport, error) {
	log := logger.Component(ctx, "publisher")
	report := &PublishReport{Collection: collection}
	total := (len(writes) + p.batchSize - 1) / p.batchSize

	for start := 0; start < len(writes); start += p.batchSize {
		end := min(start+p.batchSize, len(writes))

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return report, fmt.Errorf("rate limiter error: %w", err)
			}
		}

		if err := p.store.CommitBatch(ctx, collection, writes[start:end]); err != nil {
			log.Error().Err(err).
				Str("collection", collection).
				Int("batch", report.Batches+1).
				Int("committed", report.Committed).
				Msg("batch commit failed")
			return report, fmt.Errorf("%w: %s batch %d of %d after %d documents committed: %v",
				domain.ErrBatchCommit, collection, report.Batches+1, total, report.Committed, err)
		}

		report.Batches++
		report.Committed += end - start
		log.Debug().Str("collection", collection).Int("batch", report.Batches).Int("of", total).Msg("batch committed")
	}

	log.Info().Str("collection", collection).Int("documents", report.Committed).Int("batches", report.Batches).Msg("published")
	return report, nil
}

// PublishProducts merge-sets every product under its id and stamps last_sync.
// Products without an id are skipped and counted.
func (p *Publisher) PublishProducts(ctx context.Context, collection string, products []domain.Product) (*PublishReport, error) {
	stamp := p.now().UTC().Format(time.RFC3339)

	writes := make([]domain.DocumentWrite, 0, len(products))
	skipped := 0
	for i := range products {
		id := products[i].Key()
		if id == "" {
			skipped++
			continue
		}
		data, err := domain.ToDocument(products[i])
		if err != nil {
			return nil, fmt.Errorf("encode product %s: %w", id, err)
		}
		data["last_sync"] = stamp
		writes = append(writes, domain.DocumentWrite{Op: domain.OpSet, ID: id, Data: data, Merge: true})
	}

	if skipped > 0 {
		logger.Component(ctx, "publisher").Warn().Int("skipped", skipped).Msg("products without an id were not published")
	}

	report, err := p.CommitAll(ctx, collection, writes)
	if report != nil {
		report.Skipped = skipped
	}
	return report, err
}
