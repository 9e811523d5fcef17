package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/dice"
	"github.com/cory-johannsen/crashdice/internal/game/slider"
	"github.com/cory-johannsen/crashdice/internal/relay"
)

type ctxKey struct{}

// SeedInfo is the ResponseData of GET /seed/.
type SeedInfo struct {
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
}

// SeedRotation is the ResponseData of POST /seed/rotate/. The previous server
// seed is revealed so earlier rolls can be replayed.
type SeedRotation struct {
	PreviousServerSeed     string `json:"previousServerSeed"`
	PreviousServerSeedHash string `json:"previousServerSeedHash"`
	PreviousClientSeed     string `json:"previousClientSeed"`
	PreviousNonce          uint64 `json:"previousNonce"`
	SeedInfo
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(relay.HeaderToken)
		sess, ok := s.lookup(token)
		if token == "" || !ok {
			s.writeError(w, http.StatusUnauthorized, "unknown session")
			return
		}
		if v := r.Header.Get(relay.HeaderProtocolVersion); v != relay.ProtocolVersion {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported protocol version %q", v))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session {
	sess, _ := ctx.Value(ctxKey{}).(*session)
	return sess
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.SessionCount()})
}

func (s *Server) handleSessionID(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.newSession()
	if err != nil {
		s.logger.Error("creating session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.logger.Info("session created", zap.String("session_id", sess.id.String()))
	s.writeJSON(w, http.StatusOK, relay.SessionResponse{SessionID: sess.id.String()})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	gameID := chi.URLParam(r, "gameID")
	if !s.joinable(gameID) {
		s.writeEnvelope(w, http.StatusNotFound, false, nil, fmt.Sprintf("unknown game %q", gameID))
		return
	}

	sess.mu.Lock()
	sess.gameID = gameID
	user := relay.UserData{UserID: sess.userID, Balance: sess.balance, Currency: s.cfg.Currency}
	sess.mu.Unlock()

	s.logger.Info("session joined game",
		zap.String("session_id", sess.id.String()),
		zap.String("game_id", gameID),
	)
	s.writeEnvelope(w, http.StatusOK, true, relay.JoinData{
		GameIDs: s.cfg.GameIDs,
		GameData: &relay.GameData{
			GameURL:   "/play/" + gameID + "/",
			UserToken: uuid.NewSHA1(sess.id, []byte(gameID)).String(),
		},
		UserData:     &user,
		UserDataList: []relay.UserData{user},
	}, "")
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var payload relay.BetPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		s.writeEnvelope(w, http.StatusBadRequest, false, nil, "malformed bet: "+err.Error())
		return
	}
	if err := s.valid.Struct(payload); err != nil {
		s.writeEnvelope(w, http.StatusBadRequest, false, nil, "malformed bet: "+err.Error())
		return
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		id = uuid.New()
	}
	req := relay.BetRequest{
		ID:       id,
		Amount:   payload.Amount,
		RollMode: slider.ParseRollMode(payload.RollMode),
		Targets:  payload.Targets,
	}

	state, err := s.settle(sess, req)
	switch {
	case errors.Is(err, relay.ErrInvalidBet), errors.Is(err, errInsufficientBalance):
		s.writeEnvelope(w, http.StatusOK, false, nil, err.Error())
		return
	case err != nil:
		s.writeEnvelope(w, http.StatusConflict, false, nil, err.Error())
		return
	}
	s.writeEnvelope(w, http.StatusOK, true, relay.BetData{State: state}, "")
}

// settle debits the stake, rolls and credits the payout atomically per session.
func (s *Server) settle(sess *session, req relay.BetRequest) (relay.BetState, error) {
	if err := req.Validate(); err != nil {
		return relay.BetState{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.gameID == "" {
		return relay.BetState{}, errors.New("session has not joined a game")
	}
	if req.Amount.GreaterThan(sess.balance) {
		return relay.BetState{}, fmt.Errorf("%w: balance %s, stake %s", errInsufficientBalance, sess.balance, req.Amount)
	}

	nonce := sess.source.Nonce()
	res := relay.Settle(req, sess.roller.Roll())
	sess.balance = sess.balance.Add(res.Profit)

	status := relay.StatusLost
	if res.IsWin {
		status = relay.StatusWon
	}
	s.metrics.ObserveBet(req.RollMode.String(), res.IsWin, req.Amount.InexactFloat64())
	s.logger.Info("bet settled",
		zap.String("session_id", sess.id.String()),
		zap.String("bet_id", req.ID.String()),
		zap.String("mode", req.RollMode.String()),
		zap.Float64s("targets", req.Targets),
		zap.Float64("roll", res.Roll),
		zap.String("status", status),
		zap.String("balance", sess.balance.String()),
	)
	return relay.BetState{
		ResultValue:    res.Roll / 100,
		WinAmount:      res.Payout,
		Status:         status,
		Balance:        sess.balance,
		Nonce:          nonce,
		ServerSeedHash: sess.source.ServerSeedHash(),
	}, nil
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	info := seedInfo(sess)
	sess.mu.Unlock()
	s.writeEnvelope(w, http.StatusOK, true, info, "")
}

func (s *Server) handleRotateSeed(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	serverSeed, clientSeed, err := s.seeds()
	if err != nil {
		s.logger.Error("rotating seed", zap.Error(err))
		s.writeEnvelope(w, http.StatusInternalServerError, false, nil, "seed unavailable")
		return
	}

	sess.mu.Lock()
	rot := SeedRotation{
		PreviousServerSeed:     sess.serverSeed,
		PreviousServerSeedHash: sess.source.ServerSeedHash(),
		PreviousClientSeed:     sess.clientSeed,
		PreviousNonce:          sess.source.Nonce(),
	}
	sess.serverSeed, sess.clientSeed = serverSeed, clientSeed
	sess.source = dice.NewSeededSource(serverSeed, clientSeed)
	sess.roller = dice.NewLoggedRoller(sess.source, s.logger.Named("dice"))
	rot.SeedInfo = seedInfo(sess)
	sess.mu.Unlock()

	s.writeEnvelope(w, http.StatusOK, true, rot, "")
}

func seedInfo(sess *session) SeedInfo {
	return SeedInfo{
		ServerSeedHash: sess.source.ServerSeedHash(),
		ClientSeed:     sess.clientSeed,
		Nonce:          sess.source.Nonce(),
	}
}

// writeEnvelope wraps data in the relay envelope.
func (s *Server) writeEnvelope(w http.ResponseWriter, status int, ok bool, data any, msg string) {
	env := relay.Envelope{IsSuccess: ok, Error: msg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.logger.Error("encoding response data", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "encoding failed")
			return
		}
		env.ResponseData = raw
	}
	s.writeJSON(w, status, env)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, relay.Envelope{IsSuccess: false, Error: message})
}
