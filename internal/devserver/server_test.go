package devserver_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/crashdice/internal/devserver"
	"github.com/cory-johannsen/crashdice/internal/game/dice"
	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/observability"
	"github.com/cory-johannsen/crashdice/internal/relay"
)

func fixedSeeds() (string, string, error) { return "server-seed", "client-seed", nil }

type harness struct {
	srv     *devserver.Server
	http    *httptest.Server
	metrics *observability.Metrics
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, balance string) *harness {
	t.Helper()
	return newHarnessWith(t, devserver.Config{
		GameIDs:         []string{"CrashDice"},
		StartingBalance: decimal.RequireFromString(balance),
		Currency:        "FUN",
	})
}

func newHarnessWith(t *testing.T, cfg devserver.Config) *harness {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	m := observability.NewMetrics()
	srv := devserver.New(cfg, m, zap.New(core), devserver.WithSeedFunc(fixedSeeds))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, http: ts, metrics: m, logs: logs}
}

func (h *harness) relay(gameID string) *relay.RemoteRelay {
	return relay.NewRemoteRelay(relay.RemoteConfig{BaseURL: h.http.URL, GameID: gameID}, nil, nil)
}

func insideBet(amount string) relay.BetRequest {
	return relay.BetRequest{
		ID:         uuid.New(),
		Amount:     decimal.RequireFromString(amount),
		RollMode:   slider.Inside,
		Targets:    []float64{25, 75},
		WinChance:  50,
		Multiplier: 1.98,
	}
}

func TestRelayRoundTrip(t *testing.T) {
	h := newHarness(t, "100")
	r := h.relay("CrashDice")
	ctx := context.Background()

	join, err := r.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CrashDice"}, join.GameIDs)
	require.NotNil(t, join.UserData)
	assert.Equal(t, "100", join.UserData.Balance.String())
	require.NotNil(t, join.GameData)
	assert.NotEmpty(t, join.GameData.UserToken)
	assert.Equal(t, 1, h.srv.SessionCount())

	// The first three rolls for these seeds are 45.54, 66.46 and 77.36.
	res, err := r.PlaceBet(ctx, insideBet("10"))
	require.NoError(t, err)
	assert.Equal(t, 45.54, res.Roll)
	assert.True(t, res.IsWin)
	assert.Equal(t, "19.8", res.Payout.String())
	assert.Equal(t, "9.8", res.Profit.String())
	assert.Equal(t, uint64(0), res.Nonce)
	assert.Equal(t, dice.NewSeededSource("server-seed", "").ServerSeedHash(), res.ServerSeedHash)

	res, err = r.PlaceBet(ctx, insideBet("10"))
	require.NoError(t, err)
	assert.Equal(t, 66.46, res.Roll)
	assert.True(t, res.IsWin)

	res, err = r.PlaceBet(ctx, insideBet("10"))
	require.NoError(t, err)
	assert.Equal(t, 77.36, res.Roll)
	assert.False(t, res.IsWin)
	assert.True(t, res.Payout.IsZero())
	assert.Equal(t, "-10", res.Profit.String())
	assert.Equal(t, uint64(2), res.Nonce)

	assert.Len(t, h.logs.FilterMessage("bet settled").All(), 3)
}

func TestBet_BetweenModeUsesServerRules(t *testing.T) {
	h := newHarness(t, "100")
	r := h.relay("CrashDice")
	_, err := r.Connect(context.Background())
	require.NoError(t, err)

	req := insideBet("1")
	req.RollMode = slider.Between
	req.Targets = []float64{40, 50, 60, 70}
	// The client claims a generous multiplier; the payout uses the targets.
	req.Multiplier = 50

	res, err := r.PlaceBet(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 45.54, res.Roll)
	assert.True(t, res.IsWin)
	assert.Equal(t, "4.95", res.Payout.String())
}

func TestBet_InsufficientBalanceRejected(t *testing.T) {
	h := newHarness(t, "5")
	r := h.relay("CrashDice")
	_, err := r.Connect(context.Background())
	require.NoError(t, err)

	_, err = r.PlaceBet(context.Background(), insideBet("10"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, relay.ErrRejected))
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestJoin_UnknownGame(t *testing.T) {
	h := newHarness(t, "5")
	r := h.relay("Roulette")
	_, err := r.Connect(context.Background())
	require.Error(t, err)

	var httpErr *relay.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestBet_BeforeJoinConflicts(t *testing.T) {
	h := newHarness(t, "5")
	r := h.relay("CrashDice")
	_, err := r.InitSession(context.Background())
	require.NoError(t, err)

	_, err = r.PlaceBet(context.Background(), insideBet("1"))
	var httpErr *relay.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, "5")

	resp, err := http.Get(h.http.URL + "/join/CrashDice/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/bet/", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set(relay.HeaderToken, uuid.NewString())
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBet_MalformedBody(t *testing.T) {
	h := newHarness(t, "5")
	r := h.relay("CrashDice")
	_, err := r.Connect(context.Background())
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/bet/", strings.NewReader(`{"amount": "1", "bogus": true}`))
	require.NoError(t, err)
	req.Header.Set(relay.HeaderToken, r.SessionID())
	req.Header.Set(relay.HeaderProtocolVersion, relay.ProtocolVersion)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeedRotationRevealsReplayableSeed(t *testing.T) {
	h := newHarness(t, "100")
	r := h.relay("CrashDice")
	ctx := context.Background()
	_, err := r.Connect(ctx)
	require.NoError(t, err)
	res, err := r.PlaceBet(ctx, insideBet("1"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/seed/rotate/", nil)
	require.NoError(t, err)
	req.Header.Set(relay.HeaderToken, r.SessionID())
	req.Header.Set(relay.HeaderProtocolVersion, relay.ProtocolVersion)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"previousServerSeed":"server-seed"`)
	assert.Contains(t, string(body), `"previousNonce":1`)
	assert.Contains(t, string(body), `"nonce":0`)

	replayed := dice.RollFromFloat(dice.FloatAt("server-seed", "client-seed", res.Nonce))
	assert.Equal(t, res.Roll, replayed)
}

func TestBet_PayloadValidation(t *testing.T) {
	h := newHarness(t, "5")
	r := h.relay("CrashDice")
	_, err := r.Connect(context.Background())
	require.NoError(t, err)

	bodies := map[string]string{
		"no targets":      `{"amount": "1", "rollMode": "inside"}`,
		"one target":      `{"amount": "1", "targets": [50]}`,
		"target too high": `{"amount": "1", "targets": [10, 120]}`,
		"unknown mode":    `{"amount": "1", "rollMode": "sideways", "targets": [10, 20]}`,
		"bad id":          `{"id": "not-a-uuid", "amount": "1", "targets": [10, 20]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, h.http.URL+"/bet/", strings.NewReader(body))
			require.NoError(t, err)
			req.Header.Set(relay.HeaderToken, r.SessionID())
			req.Header.Set(relay.HeaderProtocolVersion, relay.ProtocolVersion)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarnessWith(t, devserver.Config{
		GameIDs:         []string{"CrashDice"},
		StartingBalance: decimal.NewFromInt(1),
		AllowedOrigins:  []string{"http://localhost:5173"},
	})

	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/bet/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", relay.HeaderToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessions_LeastRecentlyUsedEvicted(t *testing.T) {
	h := newHarnessWith(t, devserver.Config{
		GameIDs:         []string{"CrashDice"},
		StartingBalance: decimal.NewFromInt(1),
		MaxSessions:     2,
	})
	ctx := context.Background()

	first := h.relay("CrashDice")
	_, err := first.InitSession(ctx)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := h.relay("CrashDice").InitSession(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.srv.SessionCount())

	_, err = first.Join(ctx)
	var httpErr *relay.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t, "100")
	r := h.relay("CrashDice")
	_, err := r.Connect(context.Background())
	require.NoError(t, err)
	_, err = r.PlaceBet(context.Background(), insideBet("1"))
	require.NoError(t, err)

	resp, err := http.Get(h.http.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"sessions":1`)

	resp, err = http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `crashdice_bets_total{mode="inside",outcome="win"} 1`)
	assert.Contains(t, string(body), `crashdice_sessions_created_total 1`)
	assert.Contains(t, string(body), `route="/bet/"`)
}
