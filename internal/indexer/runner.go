package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-subgraph/internal/adapter"
	"github.com/feral-file/ff-marketplace-subgraph/internal/block"
	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/mapping"
	"github.com/feral-file/ff-marketplace-subgraph/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
)

// Config holds the configuration of the block loop
type Config struct {
	Network       string
	StartBlock    uint64
	Confirmations uint64
	BatchSize     uint64
	PollInterval  time.Duration
	// ActivationBlock is visited even when it carries no events
	ActivationBlock uint64
}

// Runner pulls confirmed blocks and applies their events to the entity store
type Runner interface {
	// Run syncs until ctx is canceled or a handler fails
	Run(ctx context.Context) error

	// Sync processes the next batch of confirmed blocks.
	// It reports whether the runner has caught up with the confirmed head.
	Sync(ctx context.Context) (bool, error)
}

type runner struct {
	source     ethereum.LogSource
	blocks     block.BlockProvider
	handlers   mapping.Handlers
	store      store.TxStore
	config     Config
	clock      adapter.Clock
	metrics    *Metrics
	newBackoff func() backoff.BackOff
}

// NewRunner creates a block loop runner
func NewRunner(
	source ethereum.LogSource,
	blocks block.BlockProvider,
	handlers mapping.Handlers,
	st store.TxStore,
	cfg Config,
	clock adapter.Clock,
	metrics *Metrics,
) Runner {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	return &runner{
		source:     source,
		blocks:     blocks,
		handlers:   handlers,
		store:      st,
		config:     cfg,
		clock:      clock,
		metrics:    metrics,
		newBackoff: defaultBackoff,
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	return b
}

func (r *runner) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting subgraph runner",
		zap.String("network", r.config.Network),
		zap.Uint64("start_block", r.config.StartBlock),
		zap.Uint64("confirmations", r.config.Confirmations))

	for {
		caughtUp, err := r.Sync(ctx)
		if err != nil {
			return err
		}
		if !caughtUp {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(r.config.PollInterval):
		}
	}
}

func (r *runner) Sync(ctx context.Context) (bool, error) {
	from, err := r.nextBlock(ctx)
	if err != nil {
		return false, err
	}

	var head uint64
	err = r.retry(ctx, "latest block", func() error {
		var err error
		head, err = r.blocks.GetLatestBlock(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	if head < r.config.Confirmations {
		return true, nil
	}
	safe := head - r.config.Confirmations
	if from > safe {
		return true, nil
	}
	to := min(safe, from+r.config.BatchSize-1)

	var events []domain.Event
	err = r.retry(ctx, "logs", func() error {
		var err error
		events, err = r.source.FetchEvents(ctx, from, to)
		return err
	})
	if err != nil {
		return false, err
	}

	for _, batch := range r.group(events, from, to) {
		if err := r.apply(ctx, batch); err != nil {
			return false, err
		}
	}

	// blocks without events still move the cursor
	if err := r.store.SetBlockCursor(ctx, r.config.Network, to); err != nil {
		return false, fmt.Errorf("failed to save block cursor: %w", err)
	}
	r.metrics.blockHeight.Set(float64(to))
	logger.DebugCtx(ctx, "synced blocks",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("events", len(events)))

	return to == safe, nil
}

// nextBlock returns the first block that has not been processed
func (r *runner) nextBlock(ctx context.Context) (uint64, error) {
	cursor, found, err := r.store.GetBlockCursor(ctx, r.config.Network)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if !found || cursor < r.config.StartBlock {
		return r.config.StartBlock, nil
	}
	return cursor + 1, nil
}

// blockEvents are the events of one block
type blockEvents struct {
	number uint64
	events []domain.Event
}

// group splits ordered events by block. The activation block is included when it
// falls in [from, to] even without events.
func (r *runner) group(events []domain.Event, from, to uint64) []blockEvents {
	var out []blockEvents
	activation := r.config.ActivationBlock
	needActivation := activation > 0 && activation >= from && activation <= to

	for _, event := range events {
		number := event.Context().BlockNumber
		if needActivation && activation < number {
			out = append(out, blockEvents{number: activation})
			needActivation = false
		}
		if number == activation {
			needActivation = false
		}
		if len(out) == 0 || out[len(out)-1].number != number {
			out = append(out, blockEvents{number: number})
		}
		out[len(out)-1].events = append(out[len(out)-1].events, event)
	}
	if needActivation {
		out = append(out, blockEvents{number: activation})
	}
	return out
}

// apply runs the block hook and the events of one block in a single transaction
func (r *runner) apply(ctx context.Context, batch blockEvents) error {
	counts := make(map[string]int)
	err := r.store.InTx(ctx, func(tx store.TxStore) error {
		if err := r.handlers.OnBlock(ctx, tx, batch.number); err != nil {
			return fmt.Errorf("block hook failed: %w", err)
		}
		for _, event := range batch.events {
			if err := r.handlers.Handle(ctx, tx, event); err != nil {
				ec := event.Context()
				return fmt.Errorf("failed to handle %s (tx %s, log %d): %w", event.Name(), ec.TxHash.Hex(), ec.LogIndex, err)
			}
			counts[event.Name()]++
		}
		return tx.SetBlockCursor(ctx, r.config.Network, batch.number)
	})
	if err != nil {
		r.metrics.handlerErrors.Inc()
		logger.ErrorCtx(ctx, err, logger.Block(batch.number))
		return fmt.Errorf("%w: block %d: %v", domain.ErrBlockFailed, batch.number, err)
	}

	for name, n := range counts {
		r.metrics.events.WithLabelValues(name).Add(float64(n))
	}
	r.metrics.blockHeight.Set(float64(batch.number))
	return nil
}

// retry calls an RPC operation with exponential backoff
func (r *runner) retry(ctx context.Context, what string, operation func() error) error {
	var attempts int
	notify := func(err error, next time.Duration) {
		attempts++
		logger.WarnCtx(ctx, "RPC call failed, retrying",
			zap.String("call", what),
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", next))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(r.newBackoff(), ctx), notify)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to fetch %s after %d attempts: %w", what, attempts+1, err)
	}
	return nil
}
