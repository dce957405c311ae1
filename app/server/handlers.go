package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/partition"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

type tournamentRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Host        string `json:"host"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type updateTournamentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type shardRequest struct {
	ShardID string `json:"shard_id"`
}

type gameRequest struct {
	TournamentID string `json:"tournament_id"`
}

type scoreRequest struct {
	Score uint64 `json:"score"`
	Final bool   `json:"final"`
}

type moveRequest struct {
	Direction string `json:"direction"`
}

type tournamentView struct {
	ID                sharedtypes.TournamentID                     `json:"id"`
	Name              string                                       `json:"name"`
	Description       string                                       `json:"description"`
	Host              string                                       `json:"host"`
	Window            sharedtypes.Window                           `json:"window"`
	Status            sharedtypes.TournamentStatus                 `json:"status"`
	Pinned            bool                                         `json:"pinned"`
	Shards            []sharedtypes.ShardID                        `json:"shards"`
	Triggerers        []sharedtypes.PlayerID                       `json:"triggerers"`
	TriggerCount      uint64                                       `json:"trigger_count"`
	TotalParticipants uint32                                       `json:"total_participants"`
	TotalBoards       uint32                                       `json:"total_boards"`
	BestScore         map[sharedtypes.PlayerID]uint64              `json:"best_score"`
	BestBoard         map[sharedtypes.PlayerID]sharedtypes.BoardID `json:"best_board"`
}

type shardView struct {
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	Window       sharedtypes.Window       `json:"window"`
}

type gameView struct {
	BoardID      sharedtypes.BoardID      `json:"board_id"`
	TournamentID sharedtypes.TournamentID `json:"tournament_id,omitempty"`
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	Strategy     string                   `json:"strategy,omitempty"`
	Board        uint64                   `json:"board"`
	Score        uint64                   `json:"score"`
	Moves        uint64                   `json:"moves"`
	Finished     bool                     `json:"finished"`
}

func (s *Server) viewTournament(st *leaderboarddb.LeaderboardState) tournamentView {
	window := sharedtypes.Window{Start: st.WindowStart, End: st.WindowEnd}
	return tournamentView{
		ID:                st.TournamentID,
		Name:              st.Name,
		Description:       st.Description,
		Host:              st.Host,
		Window:            window,
		Status:            sharedtypes.StatusAt(window, sharedtypes.TimestampFrom(s.now()), st.Ended),
		Pinned:            st.Pinned,
		Shards:            st.ShardRegistry,
		Triggerers:        st.Pool.Members(),
		TriggerCount:      st.TriggerCount,
		TotalParticipants: st.Standings.TotalParticipants,
		TotalBoards:       st.Standings.TotalBoards,
		BestScore:         st.Standings.BestScore,
		BestBoard:         st.Standings.BestBoard,
	}
}

func viewGame(g *playerdb.Game) gameView {
	return gameView{
		BoardID:      g.BoardID,
		TournamentID: g.TournamentID,
		ShardID:      g.ShardID,
		Board:        uint64(g.Board),
		Score:        g.Score,
		Moves:        g.Moves,
		Finished:     g.Finished,
	}
}

func (s *Server) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	var req tournamentRequest
	if !s.decode(w, r, &req) {
		return
	}

	now := s.now()
	window, err := s.times.Window(req.Start, req.End, now)
	if err != nil {
		s.fail(w, r, "create_tournament", err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	state, err := s.tournaments.CreateTournament(r.Context(), leaderboardservice.TournamentSpec{
		ID:          sharedtypes.TournamentID(id),
		Name:        req.Name,
		Description: req.Description,
		Host:        req.Host,
		Window:      window,
		Now:         sharedtypes.TimestampFrom(now),
	})
	if err != nil {
		s.fail(w, r, "create_tournament", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.viewTournament(state))
}

func (s *Server) handleUpdateTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := s.param(w, r, "id")
	if !ok {
		return
	}
	var req updateTournamentRequest
	if !s.decode(w, r, &req) {
		return
	}
	state, err := s.tournaments.UpdateTournament(r.Context(), sharedtypes.TournamentID(id), req.Name, req.Description)
	s.respondTournament(w, r, "update_tournament", state, err)
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.param(w, r, "id")
	if !ok {
		return
	}
	state, err := s.tournaments.TogglePin(r.Context(), sharedtypes.TournamentID(id))
	s.respondTournament(w, r, "toggle_pin", state, err)
}

func (s *Server) handleEndTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := s.param(w, r, "id")
	if !ok {
		return
	}
	state, err := s.tournaments.EndTournament(r.Context(), sharedtypes.TournamentID(id))
	s.respondTournament(w, r, "end_tournament", state, err)
}

func (s *Server) respondTournament(w http.ResponseWriter, r *http.Request, op string, state *leaderboarddb.LeaderboardState, err error) {
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewTournament(state))
}

func (s *Server) handleCreateShard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.param(w, r, "id")
	if !ok {
		return
	}
	var req shardRequest
	if !s.decode(w, r, &req) {
		return
	}

	shardID := strings.TrimSpace(req.ShardID)
	if shardID == "" {
		shardID = uuid.NewString()
	}

	state, err := s.shards.CreateShard(r.Context(), shardservice.ShardSpec{
		ShardID:      sharedtypes.ShardID(shardID),
		TournamentID: sharedtypes.TournamentID(id),
		Now:          sharedtypes.TimestampFrom(s.now()),
	})
	if err != nil {
		s.fail(w, r, "create_shard", err)
		return
	}
	writeJSON(w, http.StatusCreated, shardView{
		ShardID:      state.ShardID,
		TournamentID: state.TournamentID,
		Window:       sharedtypes.Window{Start: state.WindowStart, End: state.WindowEnd},
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	player, ok := s.param(w, r, "player")
	if !ok {
		return
	}
	var req gameRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.players.CreateGame(r.Context(), sharedtypes.PlayerID(player), sharedtypes.TournamentID(strings.TrimSpace(req.TournamentID)))
	if err != nil {
		s.fail(w, r, "create_game", err)
		return
	}
	writeJSON(w, http.StatusCreated, gameView{
		BoardID:      res.BoardID,
		TournamentID: sharedtypes.TournamentID(req.TournamentID),
		ShardID:      res.ShardID,
		Strategy:     string(res.Strategy),
	})
}

func (s *Server) handleReportScore(w http.ResponseWriter, r *http.Request) {
	player, ok := s.param(w, r, "player")
	if !ok {
		return
	}
	board, ok := s.param(w, r, "board")
	if !ok {
		return
	}
	var req scoreRequest
	if !s.decode(w, r, &req) {
		return
	}

	game, err := s.players.ReportScore(r.Context(), sharedtypes.PlayerID(player), sharedtypes.BoardID(board), req.Score, req.Final)
	if err != nil {
		s.fail(w, r, "report_score", err)
		return
	}
	writeJSON(w, http.StatusOK, viewGame(game))
}

func (s *Server) handleApplyMove(w http.ResponseWriter, r *http.Request) {
	player, ok := s.param(w, r, "player")
	if !ok {
		return
	}
	board, ok := s.param(w, r, "board")
	if !ok {
		return
	}
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}
	dir, err := playerdomain.ParseDirection(req.Direction)
	if err != nil {
		s.fail(w, r, "apply_move", apperrors.Validation("%v", err))
		return
	}

	game, err := s.players.ApplyMove(r.Context(), sharedtypes.PlayerID(player), sharedtypes.BoardID(board), dir)
	if err != nil {
		s.fail(w, r, "apply_move", err)
		return
	}
	writeJSON(w, http.StatusOK, viewGame(game))
}

// param reads a path parameter. Partitions cannot be addressed by an empty id.
func (s *Server) param(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		s.fail(w, r, "path", apperrors.Validation("%s is required", name))
		return "", false
	}
	return v, true
}

// decode reads a JSON body. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, "decode", apperrors.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := s.logger.With(
		attr.String("operation", op),
		attr.String("request_id", middleware.GetReqID(r.Context())),
		attr.String("error_kind", apperrors.Kind(err)),
		attr.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed")
	} else {
		logger.InfoContext(r.Context(), "Request rejected")
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  apperrors.Kind(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrState),
		errors.Is(err, partition.ErrClosed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
