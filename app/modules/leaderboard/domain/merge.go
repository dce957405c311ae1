package leaderboarddomain

import (
	"maps"

	"github.com/Black-And-White-Club/shardboard/app/events"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Standings is the canonical ranking of one tournament.
type Standings struct {
	BestScore map[sharedtypes.PlayerID]uint64              `json:"best_score"`
	BestBoard map[sharedtypes.PlayerID]sharedtypes.BoardID `json:"best_board"`

	// Participants and Boards are sets. Their sizes are kept in the totals
	// so a flush seen twice counts once.
	Participants      map[sharedtypes.PlayerID]bool `json:"participants"`
	Boards            map[sharedtypes.BoardID]bool  `json:"boards"`
	TotalParticipants uint32                        `json:"total_participants"`
	TotalBoards       uint32                        `json:"total_boards"`
}

// NewStandings returns empty standings.
func NewStandings() Standings {
	return Standings{
		BestScore:    map[sharedtypes.PlayerID]uint64{},
		BestBoard:    map[sharedtypes.PlayerID]sharedtypes.BoardID{},
		Participants: map[sharedtypes.PlayerID]bool{},
		Boards:       map[sharedtypes.BoardID]bool{},
	}
}

// MergeOutcome summarizes what a flush changed.
type MergeOutcome struct {
	Improved        int
	Ignored         int
	NewParticipants int
	NewBoards       int
}

// Changed reports whether the merge touched the standings at all.
func (o MergeOutcome) Changed() bool {
	return o.Improved > 0 || o.NewParticipants > 0 || o.NewBoards > 0
}

// MergeFlush folds a flush report into s with a max-register rule.
//
// A higher score replaces the best score and its board. An equal score
// keeps the lexically smaller board, so the result does not depend on the
// order flushes arrive in. Applying a report twice is a no-op the second
// time, and no best score ever decreases.
func MergeFlush(s *Standings, report events.FlushReport) MergeOutcome {
	s.ensure()

	var out MergeOutcome
	for player, score := range report.Scores {
		if player == "" {
			out.Ignored++
			continue
		}
		board := report.BoardIDs[player]

		nPlayer, nBoard := s.RecordGame(player, board)
		if nPlayer {
			out.NewParticipants++
		}
		if nBoard {
			out.NewBoards++
		}

		best, ok := s.BestScore[player]
		switch {
		case score > best:
			s.BestScore[player] = score
			s.BestBoard[player] = board
			out.Improved++
		case ok && score == best && boardLess(board, s.BestBoard[player]):
			s.BestBoard[player] = board
			out.Improved++
		default:
			out.Ignored++
		}
	}
	return out
}

// RecordGame counts player and board if they were not seen before.
func (s *Standings) RecordGame(player sharedtypes.PlayerID, board sharedtypes.BoardID) (newPlayer, newBoard bool) {
	s.ensure()
	if player != "" && !s.Participants[player] {
		s.Participants[player] = true
		s.TotalParticipants++
		newPlayer = true
	}
	if board != "" && !s.Boards[board] {
		s.Boards[board] = true
		s.TotalBoards++
		newBoard = true
	}
	return newPlayer, newBoard
}

// Clone returns a deep copy.
func (s Standings) Clone() Standings {
	out := s
	out.BestScore = maps.Clone(s.BestScore)
	out.BestBoard = maps.Clone(s.BestBoard)
	out.Participants = maps.Clone(s.Participants)
	out.Boards = maps.Clone(s.Boards)
	out.ensure()
	return out
}

func (s *Standings) ensure() {
	if s.BestScore == nil {
		s.BestScore = map[sharedtypes.PlayerID]uint64{}
	}
	if s.BestBoard == nil {
		s.BestBoard = map[sharedtypes.PlayerID]sharedtypes.BoardID{}
	}
	if s.Participants == nil {
		s.Participants = map[sharedtypes.PlayerID]bool{}
	}
	if s.Boards == nil {
		s.Boards = map[sharedtypes.BoardID]bool{}
	}
}

// boardLess orders boards for tie-breaks. An empty board sorts last.
func boardLess(a, b sharedtypes.BoardID) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}
