package leaderboarddomain

import (
	"slices"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// DefaultPoolCapacity is the number of triggerers a pool holds, primary
// included.
const DefaultPoolCapacity = 5

// Phase is the election state of a triggerer pool.
type Phase string

const (
	PhaseUnset          Phase = "unset"
	PhasePopulated      Phase = "populated"
	PhaseActivePrimary  Phase = "active_primary"
	PhaseActiveFallback Phase = "active_fallback"
)

// Trigger decision reasons, used as metric labels.
const (
	ReasonAccepted  = "accepted"
	ReasonNotMember = "not_member"
	ReasonCooldown  = "cooldown"
)

// Pool is the set of players allowed to request aggregation for a
// tournament. The zero value is an empty pool.
type Pool struct {
	Primary             sharedtypes.PlayerID   `json:"primary,omitempty"`
	Backups             []sharedtypes.PlayerID `json:"backups"`
	LastTriggerTime     sharedtypes.Timestamp  `json:"last_trigger_time"`
	CooldownUntil       sharedtypes.Timestamp  `json:"cooldown_until"`
	LastPrimaryActivity sharedtypes.Timestamp  `json:"last_primary_activity"`
	Phase               Phase                  `json:"phase"`
	Capacity            int                    `json:"capacity"`
}

// Decision is the answer to one trigger request.
type Decision struct {
	Accepted      bool
	Reason        string
	Promoted      bool
	CooldownUntil sharedtypes.Timestamp
}

// Err returns an authorization error for a rejected request.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return apperrors.Authorization("trigger rejected: %s", d.Reason)
}

// AddCandidate enrolls player. The first candidate becomes primary, later
// ones queue up as backups. It returns false when player is already a
// member or the pool is full.
func (p *Pool) AddCandidate(player sharedtypes.PlayerID, ts sharedtypes.Timestamp) bool {
	if player == "" || p.IsMember(player) {
		return false
	}
	if p.Primary == "" {
		p.Primary = player
		p.LastPrimaryActivity = ts
		if p.Phase == "" || p.Phase == PhaseUnset {
			p.Phase = PhasePopulated
		}
		return true
	}
	if len(p.Members()) >= p.capacity() {
		return false
	}
	p.Backups = append(p.Backups, player)
	return true
}

// Authorize decides a trigger request at ts. A member is accepted once the
// cooldown has passed, which starts a new cooldown of interval.
//
// A backup accepted while the primary has been silent for promoteAfter
// takes over as primary; the old primary moves to the end of the backups.
// A zero promoteAfter disables promotion.
func (p *Pool) Authorize(requester sharedtypes.PlayerID, ts sharedtypes.Timestamp, interval, promoteAfter time.Duration) Decision {
	isPrimary := requester != "" && requester == p.Primary
	if isPrimary && ts > p.LastPrimaryActivity {
		p.LastPrimaryActivity = ts
	}

	if !p.IsMember(requester) {
		return Decision{Reason: ReasonNotMember, CooldownUntil: p.CooldownUntil}
	}
	if ts < p.CooldownUntil {
		return Decision{Reason: ReasonCooldown, CooldownUntil: p.CooldownUntil}
	}

	p.LastTriggerTime = ts
	p.CooldownUntil = ts.Add(interval)
	d := Decision{Accepted: true, Reason: ReasonAccepted, CooldownUntil: p.CooldownUntil}

	switch {
	case isPrimary:
		p.Phase = PhaseActivePrimary
	case promoteAfter > 0 && ts >= p.LastPrimaryActivity.Add(promoteAfter):
		p.promote(requester, ts)
		d.Promoted = true
	default:
		p.Phase = PhaseActiveFallback
	}
	return d
}

func (p *Pool) promote(backup sharedtypes.PlayerID, ts sharedtypes.Timestamp) {
	stale := p.Primary
	p.Backups = slices.DeleteFunc(p.Backups, func(id sharedtypes.PlayerID) bool { return id == backup })
	if stale != "" {
		p.Backups = append(p.Backups, stale)
	}
	p.Primary = backup
	p.LastPrimaryActivity = ts
	p.Phase = PhaseActivePrimary
}

// IsMember reports whether player is the primary or a backup.
func (p *Pool) IsMember(player sharedtypes.PlayerID) bool {
	if player == "" {
		return false
	}
	return player == p.Primary || slices.Contains(p.Backups, player)
}

// Members lists the pool, primary first.
func (p *Pool) Members() []sharedtypes.PlayerID {
	out := make([]sharedtypes.PlayerID, 0, len(p.Backups)+1)
	if p.Primary != "" {
		out = append(out, p.Primary)
	}
	return append(out, p.Backups...)
}

// Clone returns a deep copy.
func (p Pool) Clone() Pool {
	out := p
	out.Backups = slices.Clone(p.Backups)
	return out
}

func (p *Pool) capacity() int {
	if p.Capacity <= 0 {
		return DefaultPoolCapacity
	}
	return p.Capacity
}
