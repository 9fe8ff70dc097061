package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/zerolog"

	"github.com/lox/blackjackd/cmd/blackjackd/shared"
	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/client"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/simulator"
	"github.com/lox/blackjackd/internal/tui"
)

// PlayCmd plays hands against a running server over WebSocket.
type PlayCmd struct {
	Config string `kong:"short='c',default='client.hcl',help='HCL client config file (optional)'"`
	Server string `kong:"help='Server URL (overrides config)'"`
	Owner  string `kong:"help='Owner id (overrides config)'"`
	Token  string `kong:"env='BLACKJACKD_TOKEN',help='Bearer token for servers that require authentication'"`
	Hands  int    `kong:"default='1',help='Number of hands to play'"`
	Auto   bool   `kong:"help='Play with the threshold strategy instead of prompting'"`
}

func (c *PlayCmd) Run() error {
	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Owner != "" {
		cfg.Player.OwnerID = c.Owner
	}
	if c.Token != "" {
		cfg.Player.Token = c.Token
	}
	if cfg.Player.OwnerID == "" && cfg.Player.Token == "" {
		cfg.Player.OwnerID = os.Getenv("USER")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.ColorEnabled() {
		tui.SetPlain()
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	if level, err := log.ParseLevel(cfg.UI.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := shared.SetupSignalHandler(shared.SetupLogger(zerolog.InfoLevel))
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ConnectTimeout)*time.Second)
	defer cancel()

	cl := client.NewClient(cfg.Server.URL, logger)
	cl.SetToken(cfg.Player.Token)
	if err := cl.Connect(connectCtx); err != nil {
		return err
	}
	defer func() { _ = cl.Close() }()

	p := &player{
		client:   cl,
		owner:    cfg.Player.OwnerID,
		timeout:  time.Duration(cfg.Server.RequestTimeout) * time.Second,
		strategy: simulator.Threshold{StandOn: cfg.Player.StandOn},
		auto:     c.Auto,
		input:    bufio.NewScanner(os.Stdin),
	}
	for i := 0; i < c.Hands; i++ {
		if err := p.playHand(ctx); err != nil {
			return err
		}
	}
	return nil
}

type player struct {
	client   *client.Client
	owner    string
	timeout  time.Duration
	strategy simulator.Strategy
	auto     bool
	input    *bufio.Scanner
}

func (p *player) playHand(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	deal, err := p.client.CreateGame(reqCtx, p.owner)
	cancel()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", tui.HeaderStyle.Render(" New hand "), tui.InfoStyle.Render("deck hash "+deal.DeckHash))
	hand, actions := deal.PlayerHand, deal.Actions
	for {
		fmt.Printf("  Dealer: %s\n  Player: %s\n", tui.RenderUpcard(deal.DealerUpcard), tui.RenderHand(hand))

		action, err := p.decide(hand, deal.DealerUpcard, actions)
		if err != nil {
			return err
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		update, err := p.client.Act(reqCtx, deal.GameID, action.String())
		cancel()
		if err != nil {
			return err
		}
		if update.Result != nil {
			if !deck.Verify(update.Result.DeckSeed, deal.DeckHash) {
				return fmt.Errorf("game %s: disclosed seed does not match the deck hash", deal.GameID)
			}
			fmt.Print(tui.RenderGame(update.Result))
			return nil
		}
		hand, actions = update.PlayerHand, update.Actions
	}
}

func (p *player) decide(hand blackjack.Hand, upcard deck.Card, actions []blackjack.Action) (blackjack.Action, error) {
	if len(actions) == 0 {
		return 0, fmt.Errorf("server offered no actions")
	}
	if p.auto {
		action := p.strategy.Decide(hand, upcard)
		if !slices.Contains(actions, action) {
			action = blackjack.Stand
		}
		fmt.Printf("  > %s\n", action)
		return action, nil
	}

	for {
		fmt.Printf("  %s? ", promptFor(actions))
		if !p.input.Scan() {
			if err := p.input.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("input closed")
		}
		if action, ok := parseChoice(p.input.Text(), actions); ok {
			return action, nil
		}
	}
}

// promptFor lists actions with their shortcut key, e.g. "[h]it or [s]tand".
func promptFor(actions []blackjack.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		name := a.String()
		key := shortcut(a)
		names[i] = strings.Replace(name, key, "["+key+"]", 1)
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

// parseChoice accepts a full action name or its shortcut, limited to the
// offered actions.
func parseChoice(input string, actions []blackjack.Action) (blackjack.Action, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	for _, a := range actions {
		if input == a.String() || input == shortcut(a) {
			return a, true
		}
	}
	return 0, false
}

func shortcut(a blackjack.Action) string {
	if a == blackjack.Surrender {
		return "r"
	}
	return a.String()[:1]
}
