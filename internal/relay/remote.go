package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/observability"
)

// DefaultBaseURL and DefaultGameID are used when RemoteConfig leaves them empty.
const (
	DefaultBaseURL = "https://dev.securesocket.net:8443"
	DefaultGameID  = "CrashDice"
)

// RemoteConfig configures a RemoteRelay.
type RemoteConfig struct {
	// BaseURL is the game server root. Defaults to DefaultBaseURL.
	BaseURL string
	// GameID is joined by Connect. Defaults to DefaultGameID.
	GameID string
	// ProtocolVersion is sent on authenticated requests. Defaults to ProtocolVersion.
	ProtocolVersion string
	// Timeout bounds each request when HTTPClient is nil. Defaults to 10s.
	Timeout time.Duration
	// HTTPClient allows injecting a custom client.
	HTTPClient *http.Client
	// Tap receives every request and response. Optional.
	Tap Tap
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("relay: http %d: %s", e.StatusCode, e.Body)
}

// RemoteRelay settles bets against the HTTP game server. Connect must succeed
// before PlaceBet.
type RemoteRelay struct {
	cfg     RemoteConfig
	http    *http.Client
	metrics *observability.Metrics
	logger  *zap.Logger

	mu        sync.RWMutex
	sessionID string
	joined    *JoinData
}

// NewRemoteRelay returns an unconnected RemoteRelay.
//
// Postcondition: DemoMode() is false and SessionID() is empty.
func NewRemoteRelay(cfg RemoteConfig, metrics *observability.Metrics, logger *zap.Logger) *RemoteRelay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.GameID == "" {
		cfg.GameID = DefaultGameID
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = ProtocolVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteRelay{cfg: cfg, http: client, metrics: metrics, logger: logger}
}

// DemoMode always reports false.
func (r *RemoteRelay) DemoMode() bool { return false }

// SessionID returns the current session id, empty before InitSession.
func (r *RemoteRelay) SessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

// GameSession returns the last successful join, if any.
func (r *RemoteRelay) GameSession() (JoinData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.joined == nil {
		return JoinData{}, false
	}
	return *r.joined, true
}

// Connect obtains a session id and joins the configured game.
func (r *RemoteRelay) Connect(ctx context.Context) (JoinData, error) {
	if _, err := r.InitSession(ctx); err != nil {
		return JoinData{}, err
	}
	return r.Join(ctx)
}

// InitSession requests a new session id. The body may be a bare id, a JSON
// string or a {"sessionId": ...} object.
//
// Postcondition: on success SessionID() returns the new non-empty id.
func (r *RemoteRelay) InitSession(ctx context.Context) (string, error) {
	r.tap(Message{Direction: Send, Event: EventSessionRequest})
	start := time.Now()
	body, err := r.do(ctx, http.MethodGet, "/get_session_id", nil, "")
	if err == nil {
		var id string
		id, err = parseSessionID(body)
		if err == nil {
			r.mu.Lock()
			r.sessionID = id
			r.joined = nil
			r.mu.Unlock()
		}
	}
	r.metrics.ObserveRelay("get_session_id", time.Since(start), err)
	if err != nil {
		err = fmt.Errorf("initializing session: %w", err)
		r.tap(Message{Direction: Deliver, Event: EventSessionResponse, Err: err})
		return "", err
	}
	id := r.SessionID()
	r.logger.Info("session initialized", zap.String("session_id", id))
	r.tap(Message{Direction: Deliver, Event: EventSessionResponse, Payload: SessionResponse{SessionID: id}})
	return id, nil
}

func parseSessionID(body []byte) (string, error) {
	raw := strings.TrimSpace(string(body))
	id := raw
	var s string
	var obj SessionResponse
	switch {
	case json.Unmarshal(body, &s) == nil:
		id = s
	case json.Unmarshal(body, &obj) == nil:
		id = obj.SessionID
	}
	if id == "" {
		return "", errors.New("response did not include a session id value")
	}
	return id, nil
}

// Join joins the configured game with the current session.
//
// Precondition: InitSession succeeded; otherwise ErrNoSession is returned.
func (r *RemoteRelay) Join(ctx context.Context) (JoinData, error) {
	token := r.SessionID()
	if token == "" {
		err := fmt.Errorf("joining game: %w", ErrNoSession)
		r.tap(Message{Direction: Deliver, Event: EventJoinResponse, Err: err})
		return JoinData{}, err
	}
	r.tap(Message{Direction: Send, Event: EventJoinRequest, Payload: map[string]string{"gameId": r.cfg.GameID}})

	start := time.Now()
	var data JoinData
	body, err := r.do(ctx, http.MethodGet, "/join/"+url.PathEscape(r.cfg.GameID)+"/", nil, token)
	if err == nil {
		err = decodeEnvelope(body, &data)
	}
	r.metrics.ObserveRelay("join", time.Since(start), err)
	if err != nil {
		err = fmt.Errorf("joining game %s: %w", r.cfg.GameID, err)
		r.tap(Message{Direction: Deliver, Event: EventJoinResponse, Err: err})
		return JoinData{}, err
	}

	r.mu.Lock()
	r.joined = &data
	r.mu.Unlock()
	r.logger.Info("joined game",
		zap.String("game_id", r.cfg.GameID),
		zap.Strings("game_ids", data.GameIDs),
	)
	r.tap(Message{Direction: Deliver, Event: EventJoinResponse, Payload: data})
	return data, nil
}

// PlaceBet posts req to the server and converts the reported state.
func (r *RemoteRelay) PlaceBet(ctx context.Context, req BetRequest) (BetResult, error) {
	token := r.SessionID()
	if token == "" {
		return BetResult{}, fmt.Errorf("placing bet: %w", ErrNoSession)
	}
	if err := req.Validate(); err != nil {
		return BetResult{}, err
	}
	payload := BetPayload{
		ID:               req.ID.String(),
		Amount:           req.Amount,
		Rate:             req.WinChance,
		TargetMultiplier: req.Multiplier,
		RollMode:         req.RollMode.String(),
		Targets:          req.Targets,
	}
	r.tap(Message{Direction: Send, Event: EventBetRequest, Payload: payload})

	start := time.Now()
	var data BetData
	body, err := r.do(ctx, http.MethodPost, "/bet/", payload, token)
	if err == nil {
		err = decodeEnvelope(body, &data)
	}
	r.metrics.ObserveRelay("bet", time.Since(start), err)
	if err != nil {
		err = fmt.Errorf("placing bet %s: %w", req.ID, err)
		r.tap(Message{Direction: Deliver, Event: EventBetResponse, Err: err})
		return BetResult{}, err
	}
	r.tap(Message{Direction: Deliver, Event: EventBetResponse, Payload: data})

	st := data.State
	res := BetResult{
		ID:             req.ID,
		Roll:           math.Round(st.ResultValue*10000) / 100,
		IsWin:          st.Status == StatusWon,
		Payout:         st.WinAmount,
		Nonce:          st.Nonce,
		ServerSeedHash: st.ServerSeedHash,
	}
	res.Profit = res.Payout.Sub(req.Amount)
	r.metrics.ObserveBet(req.RollMode.String(), res.IsWin, req.Amount.InexactFloat64())
	r.logger.Debug("remote bet settled",
		zap.String("bet_id", req.ID.String()),
		zap.Float64("roll", res.Roll),
		zap.Bool("win", res.IsWin),
		zap.String("payout", res.Payout.String()),
	)
	return res, nil
}

// do sends one request and returns the body of a 2xx response.
func (r *RemoteRelay) do(ctx context.Context, method, path string, body any, token string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(HeaderToken, token)
		req.Header.Set(HeaderProtocolVersion, r.cfg.ProtocolVersion)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

func decodeEnvelope(body []byte, into any) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("response was not valid JSON: %w", err)
	}
	if !env.IsSuccess {
		if env.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return ErrRejected
	}
	if len(env.ResponseData) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.ResponseData, into); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

func (r *RemoteRelay) tap(m Message) {
	if r.cfg.Tap != nil {
		r.cfg.Tap(m)
	}
}
