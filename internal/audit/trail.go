package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/fileutil"
	"github.com/lox/blackjackd/internal/gameid"
)

const (
	defaultDir           = "audit"
	defaultFlushInterval = 5 * time.Second
	defaultFlushHands    = 100
	fileExt              = ".toml"
)

// Config configures a Trail.
type Config struct {
	Dir           string
	FlushInterval time.Duration
	FlushHands    int
	Clock         quartz.Clock
}

// Trail buffers finished games and writes one TOML record per game. It
// satisfies the session manager's result sink.
type Trail struct {
	cfg    Config
	logger zerolog.Logger

	mu       sync.Mutex
	pending  []*blackjack.GameResult
	written  int
	flushMu  sync.Mutex
	flushReq chan struct{}
}

// NewTrail creates the output directory and returns a trail writing to it.
func NewTrail(logger zerolog.Logger, cfg Config) (*Trail, error) {
	if cfg.Dir == "" {
		cfg.Dir = defaultDir
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.FlushHands <= 0 {
		cfg.FlushHands = defaultFlushHands
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}

	return &Trail{
		cfg:      cfg,
		logger:   logger.With().Str("component", "audit").Logger(),
		flushReq: make(chan struct{}, 1),
	}, nil
}

// Record queues a result. A full buffer wakes Run to flush early.
func (t *Trail) Record(_ context.Context, result *blackjack.GameResult) error {
	if result == nil {
		return fmt.Errorf("audit: result is nil")
	}
	if err := gameid.Validate(result.GameID); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	t.mu.Lock()
	t.pending = append(t.pending, result)
	full := len(t.pending) >= t.cfg.FlushHands
	t.mu.Unlock()

	if full {
		select {
		case t.flushReq <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of buffered results.
func (t *Trail) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Written returns the number of records written so far.
func (t *Trail) Written() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}

// Path returns the file a game's record is written to.
func (t *Trail) Path(gameID string) string {
	return filepath.Join(t.cfg.Dir, gameID+fileExt)
}

// Flush writes every buffered result. Results that fail to write stay
// buffered for the next flush.
func (t *Trail) Flush() error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	var (
		failed []*blackjack.GameResult
		errs   []error
		n      int
	)
	for _, result := range batch {
		err := fileutil.Publish(t.Path(result.GameID), 0o644, func(w io.Writer) error {
			return Encode(w, NewRecord(result))
		})
		switch {
		case err == nil:
			n++
		case errors.Is(err, fileutil.ErrExists):
			// A game finishes once; an existing record is never replaced.
			t.logger.Error().
				Bool("security_event", true).
				Str("game_id", result.GameID).
				Msg("Audit record already exists")
		default:
			failed = append(failed, result)
			errs = append(errs, err)
		}
	}

	t.mu.Lock()
	t.written += n
	t.pending = append(failed, t.pending...)
	t.mu.Unlock()

	if n > 0 {
		t.logger.Debug().Int("records", n).Msg("Audit records flushed")
	}
	return errors.Join(errs...)
}

// Run flushes on the configured interval and whenever the buffer fills,
// and performs a final flush when ctx is cancelled.
func (t *Trail) Run(ctx context.Context) error {
	w := t.cfg.Clock.TickerFunc(ctx, t.cfg.FlushInterval, func() error {
		t.flushLogged()
		return nil
	}, "audit", "flush")

	for {
		select {
		case <-t.flushReq:
			t.flushLogged()
		case <-ctx.Done():
			_ = w.Wait()
			return t.Flush()
		}
	}
}

func (t *Trail) flushLogged() {
	if err := t.Flush(); err != nil {
		t.logger.Error().Err(err).Int("pending", t.Pending()).Msg("Audit flush failed")
	}
}

// Scan lists the record files in dir in name order, which for game ids is
// creation order.
func Scan(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
