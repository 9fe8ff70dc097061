// Package simulator plays many games against an in-process session manager
// and re-verifies every result the way an external auditor would.
package simulator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjackd/internal/audit"
	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/randutil"
	"github.com/lox/blackjackd/internal/session"
	"github.com/lox/blackjackd/internal/statistics"
)

const ownerID = "simulator"

// Config controls a simulation run.
type Config struct {
	Hands    int
	Workers  int
	Seed     int64
	Strategy Strategy
	// Sink, if set, receives every finished game (e.g. an audit trail).
	Sink session.ResultSink
}

// Report is the outcome of a run.
type Report struct {
	Stats    *statistics.Statistics
	Verified int
	Duration time.Duration
}

// HandsPerSecond returns the simulation throughput.
func (r *Report) HandsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Stats.Hands) / r.Duration.Seconds()
}

// Simulator plays hands with a fixed strategy.
type Simulator struct {
	cfg     Config
	logger  zerolog.Logger
	manager *session.Manager

	mu       sync.Mutex
	stats    statistics.Statistics
	verified int
}

// New creates a simulator. Runs with a single worker are reproducible
// for a given seed.
func New(logger zerolog.Logger, cfg Config) (*Simulator, error) {
	if cfg.Hands <= 0 {
		return nil, fmt.Errorf("hands must be positive, got %d", cfg.Hands)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Strategy == nil {
		cfg.Strategy = DefaultStrategy
	}

	opts := []session.Option{session.WithEntropy(randutil.NewReader(cfg.Seed))}
	if cfg.Sink != nil {
		opts = append(opts, session.WithResultSink(cfg.Sink))
	}

	return &Simulator{
		cfg:     cfg,
		logger:  logger.With().Str("component", "simulator").Logger(),
		manager: session.NewManager(logger, opts...),
	}, nil
}

// Run plays the configured number of hands. It stops at the first
// integrity failure.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	s.logger.Info().
		Int("hands", s.cfg.Hands).
		Int("workers", s.cfg.Workers).
		Int64("seed", s.cfg.Seed).
		Msg("Simulation started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < s.cfg.Hands; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.playHand(gctx)
			if err != nil {
				return fmt.Errorf("hand %d: %w", i, err)
			}
			s.record(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stats := s.stats
	verified := s.verified
	s.mu.Unlock()

	if err := stats.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Stats: &stats, Verified: verified, Duration: time.Since(start)}
	s.logger.Info().
		Int("hands", stats.Hands).
		Float64("mean", stats.Mean()).
		Dur("duration", report.Duration).
		Msg("Simulation finished")
	return report, nil
}

func (s *Simulator) playHand(ctx context.Context) (*blackjack.GameResult, error) {
	deal, err := s.manager.CreateGame(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	hand := deal.PlayerHand
	for {
		update, err := s.manager.Act(ctx, deal.GameID, s.cfg.Strategy.Decide(hand, deal.DealerUpcard))
		if err != nil {
			return nil, err
		}
		if update.Finished() {
			return update.Result, s.verify(deal, update.Result)
		}
		hand = update.PlayerHand
	}
}

// verify checks the result against the commitment published at deal time
// and replays it from the disclosed seed.
func (s *Simulator) verify(deal *session.Deal, res *blackjack.GameResult) error {
	if res.DeckHash != deal.DeckHash || !deck.Verify(res.DeckSeed, deal.DeckHash) {
		return blackjack.Errorf(blackjack.KindIntegrity, "verify", res.GameID, "seed does not open the published commitment")
	}
	return audit.Check(audit.NewRecord(res))
}

func (s *Simulator) record(res *blackjack.GameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Add(statistics.FromGame(res))
	s.verified++
}
