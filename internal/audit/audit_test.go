package audit

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/gameid"
)

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// playedResult plays a game to completion by hitting below 17.
func playedResult(t *testing.T, seedByte byte) *blackjack.GameResult {
	t.Helper()
	var seed deck.Seed
	seed[0] = seedByte
	g, err := blackjack.NewGame(gameid.Generate(), "owner", seed, testNow, testNow.Add(time.Hour))
	require.NoError(t, err)

	for {
		action := blackjack.Stand
		if g.Player.Total() < 17 {
			action = blackjack.Hit
		}
		res, err := g.Apply(action, testNow)
		require.NoError(t, err)
		if res != nil {
			return res
		}
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	res := playedResult(t, 1)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, NewRecord(res)))
	text := buf.String()
	assert.Contains(t, text, "version = 1")
	assert.Contains(t, text, "[game]")
	assert.Contains(t, text, res.DeckSeed.String())
	assert.Contains(t, text, res.PlayerHand[0].Token())

	rec, err := Decode(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, res.PlayerHand, rec.Game.PlayerHand)
	assert.Equal(t, res.DealerHand, rec.Game.DealerHand)
	assert.Equal(t, res.Outcome, rec.Game.Outcome)
	assert.Equal(t, res.DeckSeed, rec.Game.DeckSeed)
	assert.Equal(t, res.FinalAction, rec.Game.FinalAction)
	assert.True(t, res.FinishedAt.Equal(rec.Game.FinishedAt))
	require.NoError(t, Check(rec))

	_, err = Decode(strings.NewReader("version = 9\n"))
	assert.Error(t, err)
	assert.Error(t, Encode(&buf, nil))
}

func TestCheckAcceptsPlayedGames(t *testing.T) {
	for i := 0; i < 40; i++ {
		rec := NewRecord(playedResult(t, byte(i)))
		require.NoError(t, Check(rec), "seed %d", i)
	}
}

func TestCheckDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *blackjack.GameResult)
		kind   blackjack.Kind
	}{
		{
			name:   "wrong seed",
			mutate: func(g *blackjack.GameResult) { g.DeckSeed[0] ^= 0xff },
			kind:   blackjack.KindIntegrity,
		},
		{
			name: "swapped player card",
			mutate: func(g *blackjack.GameResult) {
				g.PlayerHand[0], g.DealerHand[0] = g.DealerHand[0], g.PlayerHand[0]
			},
			kind: blackjack.KindIntegrity,
		},
		{
			name: "flipped result",
			mutate: func(g *blackjack.GameResult) {
				if g.Outcome.Result == blackjack.Push {
					g.Outcome.Result = blackjack.Win
				} else {
					g.Outcome.Result = blackjack.Push
				}
			},
			kind: blackjack.KindIntegrity,
		},
		{
			name:   "miscounted cards",
			mutate: func(g *blackjack.GameResult) { g.CardsUsed++ },
			kind:   blackjack.KindIntegrity,
		},
		{
			name:   "validation only result",
			mutate: func(g *blackjack.GameResult) { g.Authoritative = false },
			kind:   blackjack.KindValidation,
		},
		{
			name:   "truncated hand",
			mutate: func(g *blackjack.GameResult) { g.PlayerHand = g.PlayerHand[:1] },
			kind:   blackjack.KindValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := playedResult(t, 9)
			res.PlayerHand = res.PlayerHand.Clone()
			res.DealerHand = res.DealerHand.Clone()
			tt.mutate(res)
			err := Check(NewRecord(res))
			require.Error(t, err)
			assert.Equal(t, tt.kind, blackjack.KindOf(err))
		})
	}
}

func TestTrailFlushWritesRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	trail, err := NewTrail(testLogger(), Config{Dir: dir, Clock: quartz.NewMock(t)})
	require.NoError(t, err)

	var results []*blackjack.GameResult
	for i := 0; i < 3; i++ {
		res := playedResult(t, byte(i))
		results = append(results, res)
		require.NoError(t, trail.Record(ctx, res))
	}
	assert.Equal(t, 3, trail.Pending())

	require.NoError(t, trail.Flush())
	assert.Equal(t, 0, trail.Pending())
	assert.Equal(t, 3, trail.Written())

	paths, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, res := range results {
		rec, err := Load(trail.Path(res.GameID))
		require.NoError(t, err)
		assert.Equal(t, res.GameID, rec.Game.GameID)
		assert.NoError(t, Check(rec))
	}

	// Recording a game twice never overwrites the first record.
	require.NoError(t, trail.Record(ctx, results[0]))
	require.NoError(t, trail.Flush())
	assert.Equal(t, 3, trail.Written())
	assert.Equal(t, 0, trail.Pending())
}

func TestTrailRejectsBadIDs(t *testing.T) {
	trail, err := NewTrail(testLogger(), Config{Dir: t.TempDir(), Clock: quartz.NewMock(t)})
	require.NoError(t, err)

	assert.Error(t, trail.Record(context.Background(), nil))
	assert.Error(t, trail.Record(context.Background(), &blackjack.GameResult{GameID: "../escape"}))
	assert.Equal(t, 0, trail.Pending())
}

func TestTrailKeepsFailedWrites(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewTrail(testLogger(), Config{Dir: dir, Clock: quartz.NewMock(t)})
	require.NoError(t, err)

	require.NoError(t, trail.Record(context.Background(), playedResult(t, 3)))
	require.NoError(t, os.RemoveAll(dir))

	assert.Error(t, trail.Flush())
	assert.Equal(t, 1, trail.Pending(), "failed records stay buffered")

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, trail.Flush())
	assert.Equal(t, 1, trail.Written())
}

func TestTrailRunFlushesWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	trail, err := NewTrail(testLogger(), Config{
		Dir:           dir,
		FlushHands:    2,
		FlushInterval: time.Hour,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- trail.Run(ctx) }()

	require.NoError(t, trail.Record(ctx, playedResult(t, 1)))
	require.NoError(t, trail.Record(ctx, playedResult(t, 2)))
	assert.Eventually(t, func() bool { return trail.Written() == 2 }, time.Second, 5*time.Millisecond)

	// Anything still buffered is written on shutdown.
	require.NoError(t, trail.Record(ctx, playedResult(t, 3)))
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 3, trail.Written())

	paths, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	for _, p := range paths {
		assert.Equal(t, ".toml", filepath.Ext(p))
	}
}
