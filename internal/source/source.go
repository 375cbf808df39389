// Package source reads raw blocks for the pipeline.
package source

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"go.uber.org/ratelimit"
)

// maxLineSize bounds one JSON line. Blocks are well below 1 MiB of CBOR.
const maxLineSize = 8 << 20

// RawBlock is an undecoded block with its position in the dump.
type RawBlock struct {
	Seq  uint64
	Type uint
	CBOR []byte
}

type line struct {
	Type *uint  `json:"type"`
	CBOR string `json:"cbor"`
}

// FileSource reads a JSON-lines block dump, one {"type":<block type>,"cbor":"<hex>"} object per line.
type FileSource struct {
	file    *os.File
	scanner *bufio.Scanner
	limiter ratelimit.Limiter
	seq     uint64
	log     *logger.Logger
}

// NewFileSource opens the dump named by cfg.Path.
func NewFileSource(cfg config.SourceConfig, log *logger.Logger) (*FileSource, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open block source: %w", err)
	}

	return newFileSource(f, cfg.RateLimit, log), nil
}

func newFileSource(f *os.File, rateLimit int, log *logger.Logger) *FileSource {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	limiter := ratelimit.NewUnlimited()
	if rateLimit > 0 {
		limiter = ratelimit.New(rateLimit, ratelimit.WithoutSlack)
	}

	return &FileSource{
		file:    f,
		scanner: scanner,
		limiter: limiter,
		log:     log.WithComponent(common.ComponentSource),
	}
}

// Next returns the next block of the dump, io.EOF once it is exhausted.
// Blank lines are skipped.
func (s *FileSource) Next(ctx context.Context) (*RawBlock, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read block source: %w", err)
			}
			return nil, io.EOF
		}

		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		s.seq++
		block, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid block #%d: %w", s.seq, err)
		}
		block.Seq = s.seq

		s.limiter.Take()
		return block, nil
	}
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	s.log.Debugw("block source closed", "blocks", s.seq)
	return nil
}

func parseLine(raw []byte) (*RawBlock, error) {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	if l.Type == nil {
		return nil, errors.New("missing block type")
	}
	cbor, err := hex.DecodeString(l.CBOR)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cbor hex: %w", err)
	}
	if len(cbor) == 0 {
		return nil, errors.New("empty block")
	}
	return &RawBlock{Type: *l.Type, CBOR: cbor}, nil
}
