package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackd/internal/audit"
	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/simulator"
	"github.com/lox/blackjackd/internal/tui"
)

func init() {
	tui.SetPlain()
}

// writeRecords simulates a few hands into an audit directory.
func writeRecords(t *testing.T, dir string, hands int) {
	t.Helper()
	trail, err := audit.NewTrail(zerolog.Nop(), audit.Config{Dir: dir})
	require.NoError(t, err)

	sim, err := simulator.New(zerolog.Nop(), simulator.Config{Hands: hands, Workers: 2, Seed: 5, Sink: trail})
	require.NoError(t, err)
	_, err = sim.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, trail.Flush())
}

func TestVerifyCmdRecords(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, 5)

	cmd := &VerifyCmd{Paths: []string{dir}, Plain: true}
	require.NoError(t, cmd.Run())

	paths, err := audit.Scan(dir)
	require.NoError(t, err)
	require.Len(t, paths, 5)

	// Tamper with one record: flip the recorded dealer total.
	rec, err := audit.Load(paths[0])
	require.NoError(t, err)
	rec.Game.Outcome.DealerTotal++
	f, err := os.Create(paths[0])
	require.NoError(t, err)
	require.NoError(t, audit.Encode(f, rec))
	require.NoError(t, f.Close())

	err = (&VerifyCmd{Paths: []string{dir}, Plain: true}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 5")

	err = (&VerifyCmd{Paths: []string{filepath.Join(dir, "missing.toml")}}).Run()
	assert.Error(t, err)
	assert.Error(t, (&VerifyCmd{}).Run())
}

func TestVerifyCmdSeed(t *testing.T) {
	var seed deck.Seed
	seed[0] = 42
	hash := deck.Commit(deck.Shuffle(deck.NewDeck(), seed))

	require.NoError(t, (&VerifyCmd{Seed: seed.String(), Hash: hash}).Run())

	seed[0]++
	assert.Error(t, (&VerifyCmd{Seed: seed.String(), Hash: hash}).Run())
	assert.Error(t, (&VerifyCmd{Seed: "zz", Hash: hash}).Run())
}

func TestServerCmdLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blackjackd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  port = 9090
  log_level = "warn"
}
session {
  ttl = "10m"
}
`), 0o644))

	cmd := &ServerCmd{Config: path, Address: "0.0.0.0", Debug: true, AuditDir: filepath.Join(dir, "audit")}
	cfg, err := cmd.load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.True(t, cfg.Audit.Enabled)

	ttl, err := cfg.SessionTTL()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	_, err = (&ServerCmd{Config: path, LogFormat: "xml"}).load()
	assert.Error(t, err)

	cfg, err = (&ServerCmd{Config: path, AuthURL: "http://auth.local/validate"}).load()
	require.NoError(t, err)
	assert.True(t, cfg.AuthEnabled())
}

func TestSimulateCmd(t *testing.T) {
	seed := int64(3)
	dir := t.TempDir()
	report := filepath.Join(t.TempDir(), "report.json")
	cmd := &SimulateCmd{Hands: 20, Workers: 2, Seed: &seed, StandOn: 17, AuditDir: dir, Report: report, Plain: true}
	require.NoError(t, cmd.Run())

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var sum summary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, 20, sum.Hands)
	assert.Equal(t, 20, sum.Verified)
	assert.Equal(t, int64(3), sum.Seed)
	assert.Equal(t, "threshold(17)", sum.Strategy)
	assert.Equal(t, sum.Hands, sum.Wins+sum.Losses+sum.Pushes)

	paths, err := audit.Scan(dir)
	require.NoError(t, err)
	assert.Len(t, paths, 20)
	for _, p := range paths {
		rec, err := audit.Load(p)
		require.NoError(t, err)
		assert.NoError(t, audit.Check(rec))
		assert.True(t, rec.Game.Authoritative)
		assert.NotEqual(t, blackjack.Result(""), rec.Game.Outcome.Result)
	}
}

func TestPlayPromptFollowsOfferedActions(t *testing.T) {
	all := []blackjack.Action{blackjack.Hit, blackjack.Stand, blackjack.Surrender}
	assert.Equal(t, "[h]it, [s]tand or su[r]render", promptFor(all))
	assert.Equal(t, "[s]tand or su[r]render", promptFor(all[1:]))

	action, ok := parseChoice(" R ", all)
	require.True(t, ok)
	assert.Equal(t, blackjack.Surrender, action)

	action, ok = parseChoice("stand", all)
	require.True(t, ok)
	assert.Equal(t, blackjack.Stand, action)

	_, ok = parseChoice("h", all[1:])
	assert.False(t, ok, "hit is refused when the server does not offer it")
}
