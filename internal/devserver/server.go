// Package devserver implements a development game server speaking the relay
// protocol. Each session settles bets from its own provably fair seed pair.
package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/game/dice"
	"github.com/cory-johannsen/crashdice/internal/observability"
	"github.com/cory-johannsen/crashdice/internal/relay"
)

// Config holds the game rules the server enforces.
type Config struct {
	// GameIDs lists the joinable games.
	GameIDs []string
	// StartingBalance is credited to each new session.
	StartingBalance decimal.Decimal
	// Currency labels balances.
	Currency string
	// MaxSessions bounds live sessions; the least recently used is evicted.
	// 0 uses DefaultMaxSessions.
	MaxSessions int
	// SessionTTL expires sessions this long after creation. 0 uses DefaultSessionTTL.
	SessionTTL time.Duration
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
}

const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = time.Hour
)

// SeedFunc returns a fresh server and client seed pair.
type SeedFunc func() (serverSeed, clientSeed string, err error)

// Option customizes a Server.
type Option func(*Server)

// WithSeedFunc replaces the random seed generator.
func WithSeedFunc(fn SeedFunc) Option {
	return func(s *Server) { s.seeds = fn }
}

// Server holds sessions and serves the relay protocol.
type Server struct {
	cfg     Config
	metrics *observability.Metrics
	logger  *zap.Logger
	seeds   SeedFunc
	valid   *validator.Validate

	sessions *expirable.LRU[string, *session]
}

type session struct {
	mu         sync.Mutex
	id         uuid.UUID
	userID     string
	balance    decimal.Decimal
	gameID     string
	serverSeed string
	clientSeed string
	source     *dice.SeededSource
	roller     *dice.Roller
}

// New returns a Server with no sessions.
//
// Precondition: cfg.GameIDs is non-empty. metrics and logger may be nil.
func New(cfg Config, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		seeds:   randomSeeds,
		valid:   validator.New(validator.WithRequiredStructEnabled()),
	}
	s.sessions = expirable.NewLRU[string, *session](cfg.MaxSessions, s.evicted, cfg.SessionTTL)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomSeeds() (string, string, error) {
	server, err := dice.NewServerSeed()
	if err != nil {
		return "", "", err
	}
	client, err := dice.NewServerSeed()
	if err != nil {
		return "", "", err
	}
	return server, client[:16], nil
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", relay.HeaderToken, relay.HeaderProtocolVersion},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	r.Get("/get_session_id", s.handleSessionID)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/join/{gameID}/", s.handleJoin)
		r.Post("/bet/", s.handleBet)
		r.Get("/seed/", s.handleSeed)
		r.Post("/seed/rotate/", s.handleRotateSeed)
	})
	return r
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int { return s.sessions.Len() }

func (s *Server) evicted(token string, _ *session) {
	s.logger.Debug("session evicted", zap.String("session_id", token))
}

func (s *Server) newSession() (*session, error) {
	serverSeed, clientSeed, err := s.seeds()
	if err != nil {
		return nil, fmt.Errorf("generating seeds: %w", err)
	}
	src := dice.NewSeededSource(serverSeed, clientSeed)
	sess := &session{
		id:         uuid.New(),
		userID:     uuid.NewString(),
		balance:    s.cfg.StartingBalance,
		serverSeed: serverSeed,
		clientSeed: clientSeed,
		source:     src,
		roller:     dice.NewLoggedRoller(src, s.logger.Named("dice")),
	}
	s.sessions.Add(sess.id.String(), sess)
	s.metrics.SessionCreated()
	return sess, nil
}

func (s *Server) lookup(token string) (*session, bool) {
	return s.sessions.Get(token)
}

func (s *Server) joinable(gameID string) bool {
	return slices.Contains(s.cfg.GameIDs, gameID)
}

var errInsufficientBalance = errors.New("insufficient balance")
