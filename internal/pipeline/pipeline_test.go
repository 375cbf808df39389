package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/executor"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/source"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/internal/testutil"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBusy = fmt.Errorf("failed to insert outputs: %w", sqlite3.Error{Code: sqlite3.ErrBusy})

type sliceSource struct {
	blocks []*source.RawBlock
}

func newSliceSource(n int) *sliceSource {
	payloads := make([][]byte, 0, n)
	for i := 1; i <= n; i++ {
		payloads = append(payloads, []byte{byte(i)})
	}
	return sourceOf(payloads...)
}

func sourceOf(payloads ...[]byte) *sliceSource {
	s := &sliceSource{}
	for i, p := range payloads {
		s.blocks = append(s.blocks, &source.RawBlock{
			Seq:  uint64(i + 1), //nolint:gosec
			Type: ledger.BlockTypeBabbage,
			CBOR: p,
		})
	}
	return s
}

// ebb is the payload of an epoch boundary block following the block at height.
func ebb(height byte) []byte {
	return []byte{height, 0xeb}
}

func (s *sliceSource) Next(ctx context.Context) (*source.RawBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.blocks) == 0 {
		return nil, io.EOF
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b, nil
}

// heightDecoder decodes the first payload byte as the block height and the whole
// payload as the hash seed. It sleeps a little so that workers finish out of order.
type heightDecoder struct {
	failAt uint64
}

func (d heightDecoder) DecodeBlock(blockType uint, payload []byte) (*ledger.Block, error) {
	height := uint64(payload[0])
	if height == d.failAt {
		return nil, errors.New("bad cbor")
	}
	time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond) //nolint:gosec
	return &ledger.Block{
		Hash:   testutil.Hash(payload...),
		Era:    blockType,
		Height: height,
		Slot:   height * 20,
	}, nil
}

type recordingExecutor struct {
	heights []uint64
	// errors returned, in order, for a height
	errs map[uint64][]error
}

func (e *recordingExecutor) ExecuteBlock(_ context.Context, block *ledger.Block) (*executor.Result, error) {
	e.heights = append(e.heights, block.Height)
	if errs := e.errs[block.Height]; len(errs) > 0 {
		e.errs[block.Height] = errs[1:]
		if errs[0] != nil {
			return nil, errs[0]
		}
	}
	return &executor.Result{Block: block}, nil
}

type fixedCheckpoint struct {
	block *store.Block
}

func (c fixedCheckpoint) LatestBlock(context.Context) (*store.Block, error) {
	if c.block == nil {
		return nil, store.ErrNotFound
	}
	return c.block, nil
}

func fastRetry(attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(2 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

func heights(from, to uint64) []uint64 {
	var out []uint64
	for h := from; h <= to; h++ {
		out = append(out, h)
	}
	return out
}

func TestRun_ExecutesInOrder(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	p := New(4, nil, newSliceSource(60), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, heights(1, 60), exec.heights)
	require.Equal(t, uint64(60), stats.Indexed)
	require.Equal(t, uint64(60), stats.Last.Height)
}

func TestRun_Resume(t *testing.T) {
	t.Parallel()

	withEBB := func() *sliceSource {
		return sourceOf([]byte{1}, []byte{2}, []byte{3}, ebb(3), []byte{4})
	}

	tests := []struct {
		name       string
		src        func() *sliceSource
		checkpoint *store.Block
		want       []uint64
		skipped    uint64
		wantErr    error
	}{
		{
			name: "empty index",
			want: heights(1, 5),
		},
		{
			name:       "after last indexed block",
			checkpoint: &store.Block{Height: 3, Hash: testutil.Hash(3)},
			want:       heights(4, 5),
			skipped:    3,
		},
		{
			name:       "fully indexed",
			checkpoint: &store.Block{Height: 5, Hash: testutil.Hash(5)},
			skipped:    5,
		},
		{
			name:       "source forked from the index",
			checkpoint: &store.Block{Height: 3, Hash: testutil.Hash(0xff)},
			wantErr:    ErrForkAtResumption,
		},
		{
			name:       "block before an epoch boundary",
			src:        withEBB,
			checkpoint: &store.Block{Height: 3, Hash: testutil.Hash(3)},
			want:       []uint64{3, 4},
			skipped:    3,
		},
		{
			name:       "epoch boundary block",
			src:        withEBB,
			checkpoint: &store.Block{Height: 3, Hash: testutil.Hash(ebb(3)...)},
			want:       []uint64{4},
			skipped:    4,
		},
		{
			name:       "epoch boundary missing from the source",
			src:        func() *sliceSource { return sourceOf([]byte{1}, []byte{2}, []byte{3}, []byte{4}) },
			checkpoint: &store.Block{Height: 3, Hash: testutil.Hash(ebb(3)...)},
			wantErr:    ErrForkAtResumption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newSliceSource(5)
			if tt.src != nil {
				src = tt.src()
			}
			exec := &recordingExecutor{}
			p := New(2, nil, src, heightDecoder{}, exec,
				fixedCheckpoint{block: tt.checkpoint}, logger.NewNopLogger())

			stats, err := p.Run(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Empty(t, exec.heights)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, exec.heights)
			require.Equal(t, tt.skipped, stats.Skipped)
		})
	}
}

func TestRun_RetriesBusyBlock(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{errs: map[uint64][]error{2: {errBusy, errBusy}}}
	p := New(2, fastRetry(3), newSliceSource(3), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 2, 2, 3}, exec.heights)
	require.Equal(t, uint64(3), stats.Indexed)
}

func TestRun_RetriesExhausted(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{errs: map[uint64][]error{1: {errBusy, errBusy, errBusy}}}
	p := New(1, fastRetry(2), newSliceSource(3), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.ErrorContains(t, err, "all 2 attempts failed for block 1")
	require.True(t, db.IsBusyError(err))
	require.Equal(t, []uint64{1, 1}, exec.heights)
}

func TestRun_FatalErrorHalts(t *testing.T) {
	t.Parallel()

	fatal := &executor.TaskError{Task: "outputs", Err: fmt.Errorf("address: %w", store.ErrMissingRows)}
	exec := &recordingExecutor{errs: map[uint64][]error{2: {fatal}}}
	p := New(2, fastRetry(5), newSliceSource(4), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	stats, err := p.Run(context.Background())
	require.ErrorIs(t, err, store.ErrMissingRows)
	require.True(t, executor.IsFatal(err))
	require.Equal(t, []uint64{1, 2}, exec.heights)
	require.Equal(t, uint64(1), stats.Indexed)
}

func TestRun_OtherErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{errs: map[uint64][]error{1: {errors.New("boom")}}}
	p := New(2, fastRetry(5), newSliceSource(2), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.ErrorContains(t, err, "failed to index block 1: boom")
	require.Equal(t, []uint64{1}, exec.heights)
}

func TestRun_OperationLock(t *testing.T) {
	t.Parallel()

	var acquired, released int
	exec := &recordingExecutor{errs: map[uint64][]error{1: {errBusy}}}
	p := New(1, fastRetry(2), newSliceSource(2), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger()).
		WithOperationLock(func() func() {
			acquired++
			return func() { released++ }
		})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, acquired)
	require.Equal(t, acquired, released)
}

func TestRun_DecodeError(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	p := New(3, nil, newSliceSource(10), heightDecoder{failAt: 4}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	_, err := p.Run(context.Background())
	require.ErrorContains(t, err, "failed to decode block #4: bad cbor")
	require.Equal(t, heights(1, 3), exec.heights)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &recordingExecutor{}
	p := New(2, nil, newSliceSource(10), heightDecoder{}, exec, fixedCheckpoint{}, logger.NewNopLogger())

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, exec.heights)
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	cfg := &config.RetryConfig{
		InitialBackoff:    common.NewDuration(1 * time.Second),
		MaxBackoff:        common.NewDuration(5 * time.Second),
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		name    string
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{name: "first attempt", attempt: 1},
		{name: "initial backoff", attempt: 2, min: 750 * time.Millisecond, max: 1250 * time.Millisecond},
		{name: "doubled", attempt: 3, min: 1500 * time.Millisecond, max: 2500 * time.Millisecond},
		{name: "capped", attempt: 10, min: 3750 * time.Millisecond, max: 6250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for range 10 {
				backoff := calculateBackoff(tt.attempt, cfg)
				assert.GreaterOrEqual(t, backoff, tt.min)
				assert.LessOrEqual(t, backoff, tt.max)
			}
		})
	}

	require.Zero(t, calculateBackoff(3, nil))
}
