package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/blackjackd/cmd/blackjackd/shared"
	"github.com/lox/blackjackd/internal/audit"
	"github.com/lox/blackjackd/internal/fileutil"
	"github.com/lox/blackjackd/internal/simulator"
	"github.com/lox/blackjackd/internal/statistics"
	"github.com/lox/blackjackd/internal/tui"
)

// SimulateCmd plays hands against an in-process session manager.
type SimulateCmd struct {
	Hands     int    `kong:"default='10000',help='Number of hands to play'"`
	Workers   int    `kong:"default='0',help='Concurrent games (0 = GOMAXPROCS)'"`
	Seed      *int64 `kong:"help='Deterministic entropy seed (optional)'"`
	StandOn   int    `kong:"default='17',help='Player stands on this total or more'"`
	Surrender bool   `kong:"help='Surrender hard 15 and 16 against a ten or ace'"`
	AuditDir  string `kong:"help='Also write an audit record for every hand'"`
	Report    string `kong:"help='Write a JSON summary to this file'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
	Plain     bool   `kong:"help='Disable colour output'"`
}

func (c *SimulateCmd) Run() error {
	if c.Plain {
		tui.SetPlain()
	}
	level := "warn"
	if c.Debug {
		level = "debug"
	}
	logger, err := shared.NewLogger(level, "console")
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	cfg := simulator.Config{
		Hands:    c.Hands,
		Workers:  c.Workers,
		Seed:     seed,
		Strategy: simulator.Threshold{StandOn: c.StandOn, Surrender: c.Surrender},
	}

	var trail *audit.Trail
	if c.AuditDir != "" {
		trail, err = audit.NewTrail(logger, audit.Config{Dir: c.AuditDir, Clock: quartz.NewReal()})
		if err != nil {
			return err
		}
		cfg.Sink = trail
	}

	ctx, stop := shared.SetupSignalHandler(logger)
	defer stop()

	sim, err := simulator.New(logger, cfg)
	if err != nil {
		return err
	}
	report, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	if trail != nil {
		if err := trail.Flush(); err != nil {
			return err
		}
	}

	printReport(cfg, report)

	if c.Report != "" {
		data, err := json.MarshalIndent(newSummary(cfg, report), "", "  ")
		if err != nil {
			return err
		}
		if err := fileutil.WriteFileAtomic(c.Report, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info().Str("file", c.Report).Msg("Report written")
	}
	return nil
}

// summary is the machine-readable form of a simulation report.
type summary struct {
	Strategy    string  `json:"strategy"`
	Seed        int64   `json:"seed"`
	Hands       int     `json:"hands"`
	Verified    int     `json:"verified"`
	DurationMS  int64   `json:"durationMs"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Pushes      int     `json:"pushes"`
	Blackjacks  int     `json:"blackjacks"`
	Busts       int     `json:"busts"`
	DealerBusts int     `json:"dealerBusts"`
	Surrenders  int     `json:"surrenders"`
	Mean        float64 `json:"meanUnits"`
	StdError    float64 `json:"stdError"`
	CILow       float64 `json:"ci95Low"`
	CIHigh      float64 `json:"ci95High"`
}

func newSummary(cfg simulator.Config, report *simulator.Report) summary {
	s := report.Stats
	low, high := s.ConfidenceInterval95()
	return summary{
		Strategy:    fmt.Sprint(cfg.Strategy),
		Seed:        cfg.Seed,
		Hands:       s.Hands,
		Verified:    report.Verified,
		DurationMS:  report.Duration.Milliseconds(),
		Wins:        s.Wins,
		Losses:      s.Losses,
		Pushes:      s.Pushes,
		Blackjacks:  s.Blackjacks,
		Busts:       s.Busts,
		DealerBusts: s.DealerBusts,
		Surrenders:  s.Surrenders,
		Mean:        s.Mean(),
		StdError:    s.StdError(),
		CILow:       low,
		CIHigh:      high,
	}
}

func printReport(cfg simulator.Config, report *simulator.Report) {
	s := report.Stats
	low, high := s.ConfidenceInterval95()

	fmt.Println(tui.HeaderStyle.Render(" Simulation "))
	fmt.Printf("  Strategy:   %s, seed %d\n", cfg.Strategy, cfg.Seed)
	fmt.Printf("  Hands:      %d (%d verified) in %s, %.0f hands/s\n",
		s.Hands, report.Verified, report.Duration.Round(time.Millisecond), report.HandsPerSecond())
	fmt.Printf("  %s %s %s\n",
		tui.WinStyle.Render(rate("Win", s, s.Wins)),
		tui.LoseStyle.Render(rate("Lose", s, s.Losses)),
		tui.PushStyle.Render(rate("Push", s, s.Pushes)))
	fmt.Printf("  Blackjacks: %s  Busts: %s  Dealer busts: %s  Surrenders: %s\n",
		rate("", s, s.Blackjacks), rate("", s, s.Busts), rate("", s, s.DealerBusts), rate("", s, s.Surrenders))
	fmt.Printf("  Return:     %+.4f units/hand (95%% CI %+.4f to %+.4f)\n", s.Mean(), low, high)
}

func rate(label string, s *statistics.Statistics, n int) string {
	text := fmt.Sprintf("%d (%.1f%%)", n, 100*s.Rate(n))
	if label == "" {
		return text
	}
	return label + " " + text
}
