package session

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/gameid"
)

const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = time.Minute
)

// ResultSink receives every finished hand exactly once. The ledger that
// settles wagers sits behind this interface.
type ResultSink interface {
	Record(ctx context.Context, result *blackjack.GameResult) error
}

// ResultSinkFunc adapts a function to ResultSink.
type ResultSinkFunc func(ctx context.Context, result *blackjack.GameResult) error

func (f ResultSinkFunc) Record(ctx context.Context, result *blackjack.GameResult) error {
	return f(ctx, result)
}

// Deal is what a player learns when a game is created. The dealer's hole
// card stays hidden until the result.
type Deal struct {
	GameID       string             `json:"gameId"`
	PlayerHand   blackjack.Hand     `json:"playerHand"`
	PlayerTotal  int                `json:"playerTotal"`
	DealerUpcard deck.Card          `json:"dealerUpcard"`
	DeckHash     string             `json:"deckHash"`
	ExpiresAt    time.Time          `json:"expiresAt"`
	Actions      []blackjack.Action `json:"actions"`
}

// Update is the state of a game after an action. Result is set once the
// hand is finished, at which point the session no longer exists.
type Update struct {
	GameID       string                `json:"gameId"`
	Phase        blackjack.Phase       `json:"phase"`
	PlayerHand   blackjack.Hand        `json:"playerHand"`
	PlayerTotal  int                   `json:"playerTotal"`
	DealerUpcard deck.Card             `json:"dealerUpcard"`
	Actions      []blackjack.Action    `json:"actions,omitempty"`
	Result       *blackjack.GameResult `json:"result,omitempty"`
}

// Finished reports whether the update carries a final result.
func (u *Update) Finished() bool {
	return u.Result != nil
}

// Manager runs the create and action operations against a Store.
type Manager struct {
	logger        zerolog.Logger
	store         Store
	clock         quartz.Clock
	sink          ResultSink
	ttl           time.Duration
	sweepInterval time.Duration

	entropyMu sync.Mutex
	entropy   io.Reader
	ids       *gameid.Generator
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the session store. Defaults to a MemoryStore on the
// manager's clock.
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithClock sets the clock used for expiry and result timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithEntropy sets the source of deck seeds and game ids. Production code
// leaves this as crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(m *Manager) {
		m.entropy = r
	}
}

// WithResultSink sets where finished hands are recorded.
func WithResultSink(sink ResultSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithTTL sets how long a session lives without an action. Every accepted
// action restarts the timer.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithSweepInterval sets how often Run removes expired sessions.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.sweepInterval = d
	}
}

// NewManager constructs a manager. Without options it uses an in-memory
// store, the real clock, crypto/rand and no result sink.
func NewManager(logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:        logger.With().Str("component", "session_manager").Logger(),
		clock:         quartz.NewReal(),
		entropy:       rand.Reader,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewMemoryStore(m.clock)
	}
	m.ids = gameid.NewGenerator(m.entropy)
	return m
}

// Store returns the underlying session store.
func (m *Manager) Store() Store {
	return m.store
}

// CreateGame starts a new hand for ownerID.
func (m *Manager) CreateGame(ctx context.Context, ownerID string) (*Deal, error) {
	if ownerID == "" {
		return nil, blackjack.Errorf(blackjack.KindNotAuthorized, "create game", "", "owner id is required")
	}

	id, seed, err := m.nextGame()
	if err != nil {
		return nil, &blackjack.Error{Kind: blackjack.KindIntegrity, Op: "create game", Err: err}
	}

	now := m.clock.Now("session", "create")
	g, err := blackjack.NewGame(id, ownerID, seed, now, now.Add(m.ttl))
	if err != nil {
		m.securityEvent(err).Msg("Failed to deal new game")
		return nil, err
	}
	if err := m.store.Put(ctx, g); err != nil {
		return nil, err
	}

	m.logger.Debug().
		Str("game_id", id).
		Str("owner_id", ownerID).
		Str("deck_hash", g.Hash).
		Msg("Game created")

	return &Deal{
		GameID:       g.ID,
		PlayerHand:   g.Player.Clone(),
		PlayerTotal:  g.Player.Total(),
		DealerUpcard: g.DealerUpcard(),
		DeckHash:     g.Hash,
		ExpiresAt:    g.ExpiresAt,
		Actions:      g.LegalActions(),
	}, nil
}

func (m *Manager) nextGame() (string, deck.Seed, error) {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()

	seed, err := deck.NewSeed(m.entropy)
	if err != nil {
		return "", deck.Seed{}, err
	}

	var id string
	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("game id entropy exhausted")
			}
		}()
		id = m.ids.Generate()
		return nil
	}()
	return id, seed, err
}

// ProcessAction applies action to the game and returns the result once the
// hand is finished, nil while it is still in progress.
func (m *Manager) ProcessAction(ctx context.Context, gameID string, action blackjack.Action) (*blackjack.GameResult, error) {
	update, err := m.Act(ctx, gameID, action)
	if err != nil {
		return nil, err
	}
	return update.Result, nil
}

// Act is ProcessAction returning the visible state of the game as well.
//
// The whole read-modify-write runs under the game's lock. Failed actions
// never reach the store, so a rejected action leaves the session as it
// was. Integrity failures and deck exhaustion end the session.
func (m *Manager) Act(ctx context.Context, gameID string, action blackjack.Action) (*Update, error) {
	if err := gameid.Validate(gameID); err != nil {
		return nil, &blackjack.Error{Kind: blackjack.KindNotFound, Op: "process action", GameID: gameID, Err: err}
	}

	result, update, err := m.apply(ctx, gameID, action)
	if err != nil {
		return nil, err
	}

	if result != nil {
		m.logger.Info().
			Str("game_id", result.GameID).
			Str("owner_id", result.OwnerID).
			Str("result", string(result.Outcome.Result)).
			Int("player_total", result.Outcome.PlayerTotal).
			Int("dealer_total", result.Outcome.DealerTotal).
			Bool("surrendered", result.Surrendered).
			Msg("Game finished")

		if m.sink != nil {
			if err := m.sink.Record(ctx, result); err != nil {
				m.logger.Error().Err(err).Str("game_id", result.GameID).Msg("Failed to record game result")
			}
		}
	}
	return update, nil
}

func (m *Manager) apply(ctx context.Context, gameID string, action blackjack.Action) (*blackjack.GameResult, *Update, error) {
	unlock, err := m.store.Lock(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	g, err := m.store.Get(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}

	now := m.clock.Now("session", "action")
	result, err := g.Apply(action, now)
	if err != nil {
		if blackjack.KindOf(err).Fatal() {
			m.securityEvent(err).Str("game_id", gameID).Msg("Game terminated")
			if derr := m.store.Delete(ctx, gameID); derr != nil {
				m.logger.Error().Err(derr).Str("game_id", gameID).Msg("Failed to remove compromised game")
			}
		}
		return nil, nil, err
	}

	if result != nil {
		err = m.store.Delete(ctx, gameID)
	} else {
		// Sessions expire after ttl without activity.
		g.ExpiresAt = now.Add(m.ttl)
		err = m.store.Put(ctx, g)
	}
	if err != nil {
		return nil, nil, err
	}

	return result, &Update{
		GameID:       g.ID,
		Phase:        g.Phase,
		PlayerHand:   g.Player.Clone(),
		PlayerTotal:  g.Player.Total(),
		DealerUpcard: g.DealerUpcard(),
		Actions:      g.LegalActions(),
		Result:       result,
	}, nil
}

func (m *Manager) securityEvent(err error) *zerolog.Event {
	return m.logger.Error().
		Err(err).
		Bool("security_event", true).
		Str("kind", blackjack.KindOf(err).String())
}

// Sweep removes expired sessions now.
func (m *Manager) Sweep(ctx context.Context) int {
	removed, err := m.store.SweepExpired(ctx, m.clock.Now("session", "sweep"))
	if err != nil {
		m.logger.Error().Err(err).Msg("Session sweep failed")
		return 0
	}
	if len(removed) > 0 {
		m.logger.Debug().Strs("game_ids", removed).Int("count", len(removed)).Msg("Expired sessions removed")
	}
	return len(removed)
}

// Run sweeps expired sessions on the configured interval until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info().
		Dur("ttl", m.ttl).
		Dur("sweep_interval", m.sweepInterval).
		Msg("Session sweeper started")

	w := m.clock.TickerFunc(ctx, m.sweepInterval, func() error {
		m.Sweep(ctx)
		return nil
	}, "session", "sweep")

	err := w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
