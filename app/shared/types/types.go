package sharedtypes

import (
	"fmt"
	"time"
)

// TournamentID identifies a tournament. The leaderboard partition of a
// tournament is addressed by the same value.
type TournamentID string

// ShardID identifies a shard partition.
type ShardID string

// PlayerID identifies a player partition.
type PlayerID string

// BoardID identifies a single game board. A new board is created per game.
type BoardID string

// PartitionID is the address of any partition regardless of its kind.
type PartitionID string

func (id TournamentID) String() string { return string(id) }
func (id ShardID) String() string      { return string(id) }
func (id PlayerID) String() string     { return string(id) }
func (id BoardID) String() string      { return string(id) }
func (id PartitionID) String() string  { return string(id) }

// Timestamp is a count of microseconds since the Unix epoch.
type Timestamp uint64

// TimestampFrom converts a wall-clock time into a Timestamp.
func TimestampFrom(t time.Time) Timestamp {
	if t.IsZero() || t.Before(time.Unix(0, 0)) {
		return 0
	}
	return Timestamp(t.UnixMicro())
}

// Time converts the timestamp back to a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

// Add returns ts shifted forward by d. Negative durations are ignored.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	if d <= 0 {
		return ts
	}
	return ts + Timestamp(d.Microseconds())
}

// Window bounds a tournament in time. A zero bound is unbounded.
type Window struct {
	Start Timestamp `json:"start"`
	End   Timestamp `json:"end"`
}

// Validate checks that a bounded window ends after it starts.
func (w Window) Validate() error {
	if w.Start != 0 && w.End != 0 && w.Start >= w.End {
		return fmt.Errorf("window start %d must be before end %d", w.Start, w.End)
	}
	return nil
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts Timestamp) bool {
	return (w.Start == 0 || ts >= w.Start) && (w.End == 0 || ts <= w.End)
}

// TournamentStatus is the lifecycle stage of a tournament.
type TournamentStatus string

const (
	TournamentStatusUpcoming TournamentStatus = "upcoming"
	TournamentStatusActive   TournamentStatus = "active"
	TournamentStatusEnded    TournamentStatus = "ended"
)

// StatusAt derives the status of a tournament at now. An explicitly ended
// tournament stays ended.
func StatusAt(w Window, now Timestamp, ended bool) TournamentStatus {
	switch {
	case ended, w.End != 0 && now > w.End:
		return TournamentStatusEnded
	case w.Start != 0 && now < w.Start:
		return TournamentStatusUpcoming
	default:
		return TournamentStatusActive
	}
}
