// Package pipeline feeds blocks from a source through the executor, in chain order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/executor"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/source"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"golang.org/x/sync/errgroup"
)

const progressInterval = 10 * time.Second

// ErrForkAtResumption is returned when the source disagrees with the last indexed block.
var ErrForkAtResumption = errors.New("source diverges from the indexed chain")

// BlockSource yields raw blocks in chain order and io.EOF at the end.
type BlockSource interface {
	Next(ctx context.Context) (*source.RawBlock, error)
}

// BlockDecoder decodes a raw block.
type BlockDecoder interface {
	DecodeBlock(blockType uint, payload []byte) (*ledger.Block, error)
}

// BlockExecutor indexes one block atomically.
type BlockExecutor interface {
	ExecuteBlock(ctx context.Context, block *ledger.Block) (*executor.Result, error)
}

// Checkpoint returns the last indexed block.
type Checkpoint interface {
	LatestBlock(ctx context.Context) (*store.Block, error)
}

// Pipeline decodes blocks ahead on a set of workers and executes them one by one.
type Pipeline struct {
	workers    int
	retry      *config.RetryConfig
	src        BlockSource
	decoder    BlockDecoder
	exec       BlockExecutor
	checkpoint Checkpoint
	lock       func() func()
	log        *logger.Logger
}

// New creates a pipeline. A nil retry config runs every block once.
func New(
	workers int,
	retry *config.RetryConfig,
	src BlockSource,
	decoder BlockDecoder,
	exec BlockExecutor,
	checkpoint Checkpoint,
	log *logger.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		workers:    workers,
		retry:      retry,
		src:        src,
		decoder:    decoder,
		exec:       exec,
		checkpoint: checkpoint,
		lock:       func() func() { return func() {} },
		log:        log.WithComponent(common.ComponentPipeline),
	}
}

// WithOperationLock makes every block attempt hold the lock returned by acquire,
// so database maintenance never runs in the middle of a block.
func (p *Pipeline) WithOperationLock(acquire func() func()) *Pipeline {
	p.lock = acquire
	return p
}

type job struct {
	raw   *source.RawBlock
	block *ledger.Block
	err   error
	done  chan struct{}
}

// Stats summarizes a run.
type Stats struct {
	Indexed  uint64
	Skipped  uint64
	Last     *ledger.Block
	Duration time.Duration
}

// Run indexes the source until it is exhausted, ctx is cancelled or a block fails.
// Source blocks up to and including the last indexed block are skipped.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	latest, err := p.resume(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *job, p.workers)
	ordered := make(chan *job, 2*p.workers)

	g.Go(func() error {
		defer close(jobs)
		defer close(ordered)
		return p.read(gctx, jobs, ordered)
	})

	for range p.workers {
		g.Go(func() error {
			for j := range jobs {
				j.block, j.err = p.decoder.DecodeBlock(j.raw.Type, j.raw.CBOR)
				close(j.done)
			}
			return nil
		})
	}

	g.Go(func() error {
		return p.consume(gctx, ordered, latest, stats)
	})

	metrics.ComponentHealthSet(common.ComponentPipeline, true)
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		metrics.ComponentHealthSet(common.ComponentPipeline, false)
	}
	stats.Duration = time.Since(start)
	p.log.Infow("pipeline stopped",
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"duration", stats.Duration)

	return stats, err
}

func (p *Pipeline) resume(ctx context.Context) (*store.Block, error) {
	latest, err := p.checkpoint.LatestBlock(ctx)
	if errors.Is(err, store.ErrNotFound) {
		p.log.Info("empty index, starting from the first block of the source")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resumption point: %w", err)
	}

	p.log.Infow("resuming",
		"height", latest.Height,
		"slot", latest.Slot,
		"hash", latest.Hash.String())
	metrics.LastIndexedBlockSet(latest.Height, latest.Slot)
	return latest, nil
}

func (p *Pipeline) read(ctx context.Context, jobs, ordered chan<- *job) error {
	for {
		raw, err := p.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read block: %w", err)
		}

		j := &job{raw: raw, done: make(chan struct{})}
		for _, ch := range []chan<- *job{jobs, ordered} {
			select {
			case ch <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, ordered <-chan *job, latest *store.Block, stats *Stats) error {
	lastReport := time.Now()
	var sinceReport uint64

	for j := range ordered {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if j.err != nil {
			return fmt.Errorf("failed to decode block #%d: %w", j.raw.Seq, j.err)
		}

		block := j.block
		if latest != nil {
			// epoch boundary blocks share the height of the block before them,
			// so the resumption point is found by hash
			if block.Height > latest.Height {
				return fmt.Errorf("%w: block %s at height %d not found in source before height %d",
					ErrForkAtResumption, latest.Hash, latest.Height, block.Height)
			}
			if block.Hash == latest.Hash {
				latest = nil
			}
			stats.Skipped++
			continue
		}

		if err := p.execute(ctx, block); err != nil {
			return err
		}
		stats.Indexed++
		stats.Last = block
		sinceReport++

		if elapsed := time.Since(lastReport); elapsed >= progressInterval {
			rate := float64(sinceReport) / elapsed.Seconds()
			metrics.IndexingRateLog(rate)
			p.log.Infow("indexing progress",
				"height", block.Height,
				"slot", block.Slot,
				"blocks_per_second", rate)
			lastReport = time.Now()
			sinceReport = 0
		}
	}
	return nil
}

// execute runs block, re-running it while it fails with a transient store error.
func (p *Pipeline) execute(ctx context.Context, block *ledger.Block) error {
	attempts := 1
	if p.retry != nil {
		attempts = p.retry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		unlock := p.lock()
		_, err := p.exec.ExecuteBlock(ctx, block)
		unlock()
		if err == nil {
			return nil
		}
		lastErr = err

		if executor.IsFatal(err) {
			metrics.ErrorsInc(common.ComponentPipeline, "fatal")
			p.log.Errorw("index diverged from the chain, halting",
				"height", block.Height,
				"hash", block.Hash.String(),
				"error", err)
			return fmt.Errorf("fatal error at block %d: %w", block.Height, err)
		}
		if !executor.IsRetryable(err) {
			metrics.ErrorsInc(common.ComponentPipeline, "error")
			return fmt.Errorf("failed to index block %d: %w", block.Height, err)
		}
		if attempt == attempts {
			break
		}

		backoff := calculateBackoff(attempt+1, p.retry)
		p.log.Warnw("block rolled back, retrying",
			"height", block.Height,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
		metrics.BlockRetriesInc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	metrics.ErrorsInc(common.ComponentPipeline, "error")
	return fmt.Errorf("all %d attempts failed for block %d (last error: %w)", attempts, block.Height, lastErr)
}
