// Package server exposes the partition modules over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	playerservice "github.com/Black-And-White-Club/shardboard/app/modules/player/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/timeparse"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Tournaments is the leaderboard module's admin surface.
type Tournaments interface {
	CreateTournament(ctx context.Context, spec leaderboardservice.TournamentSpec) (*leaderboarddb.LeaderboardState, error)
	UpdateTournament(ctx context.Context, id sharedtypes.TournamentID, name, description string) (*leaderboarddb.LeaderboardState, error)
	TogglePin(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error)
	EndTournament(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error)
}

// Shards provisions shards.
type Shards interface {
	CreateShard(ctx context.Context, spec shardservice.ShardSpec) (*sharddb.ShardState, error)
}

// Players drives player partitions.
type Players interface {
	CreateGame(ctx context.Context, player sharedtypes.PlayerID, tournamentID sharedtypes.TournamentID) (playerservice.GameResult, error)
	ReportScore(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool) (*playerdb.Game, error)
	ApplyMove(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction) (*playerdb.Game, error)
}

// Options configures the listener and the per-IP limiter.
type Options struct {
	Address string
	// RateLimit is requests per second per client. Zero disables limiting.
	RateLimit float64
	RateBurst int
	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	router      chi.Router
	http        *http.Server
	logger      *slog.Logger
	tournaments Tournaments
	shards      Shards
	players     Players
	times       *timeparse.Parser
	now         func() time.Time
}

// New builds the router. registry is served on /metrics when set.
func New(logger *slog.Logger, registry *prometheus.Registry, tournaments Tournaments, shards Shards, players Players, opts Options) *Server {
	s := &Server{
		logger:      logger,
		tournaments: tournaments,
		shards:      shards,
		players:     players,
		times:       timeparse.New(time.UTC),
		now:         opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(RateLimitMiddleware(NewIPRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)))
		}

		r.Post("/tournaments", s.handleCreateTournament)
		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Patch("/", s.handleUpdateTournament)
			r.Post("/pin", s.handleTogglePin)
			r.Post("/end", s.handleEndTournament)
			r.Post("/shards", s.handleCreateShard)
		})

		r.Route("/players/{player}/games", func(r chi.Router) {
			r.Post("/", s.handleCreateGame)
			r.Post("/{board}/scores", s.handleReportScore)
			r.Post("/{board}/moves", s.handleApplyMove)
		})
	})

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", attr.String("address", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "HTTP server failed", attr.Error(err))
		}
	case <-ctx.Done():
		if err := s.Close(); err != nil {
			s.logger.Error("HTTP server shutdown failed", attr.Error(err))
		}
	}
}

// Close drains in-flight requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
