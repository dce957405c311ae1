package playerdomain

import (
	"slices"
	"time"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// PoolPosition returns player's index among triggerers, primary first, or
// -1 if player is not in the pool.
func PoolPosition(triggerers []sharedtypes.PlayerID, player sharedtypes.PlayerID) int {
	return slices.Index(triggerers, player)
}

// ShouldFire decides whether a pool member at position should request
// aggregation at now.
//
// Position p waits p intervals past the cooldown, so backups step in one
// after another when the members ahead of them stay quiet. No member sends
// more than once per interval.
func ShouldFire(now, cooldownUntil, lastSent sharedtypes.Timestamp, position int, interval time.Duration) bool {
	if position < 0 {
		return false
	}
	due := cooldownUntil.Add(time.Duration(position) * interval)
	if now < due {
		return false
	}
	return lastSent == 0 || now >= lastSent.Add(interval)
}
