package leaderboardqueue

import (
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Job kinds.
const (
	KindTournamentStart = "tournament_start"
	KindTournamentEnd   = "tournament_end"
)

// TournamentStartJob opens a tournament when its window starts.
type TournamentStartJob struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	StartsAt     sharedtypes.Timestamp    `json:"starts_at"`
}

// Kind returns the job type identifier for River
func (TournamentStartJob) Kind() string { return KindTournamentStart }

// TournamentEndJob closes a tournament when its window ends.
type TournamentEndJob struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	EndsAt       sharedtypes.Timestamp    `json:"ends_at"`
}

// Kind returns the job type identifier for River
func (TournamentEndJob) Kind() string { return KindTournamentEnd }

// JobInfo represents information about a scheduled job (for debugging/monitoring)
type JobInfo struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	TournamentID string `json:"tournament_id"`
	State        string `json:"state"`
	ScheduledAt  string `json:"scheduled_at"`
}
