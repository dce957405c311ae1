package discoverydb

import (
	"time"

	"github.com/uptrace/bun"
)

// Entry is one immutable discovery record.
type Entry struct {
	bun.BaseModel `bun:"table:discovery_entries,alias:de"`

	Publisher string    `bun:"publisher,pk,notnull"`
	Topic     string    `bun:"topic,pk,notnull"`
	Index     uint64    `bun:"idx,pk,notnull"`
	Value     []byte    `bun:"value,type:bytea,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
