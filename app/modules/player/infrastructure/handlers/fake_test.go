package playerhandlers

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
)

// ------------------------
// Fake Mailbox
// ------------------------

type delivery struct {
	ID  string
	Msg events.PlayerMessage
}

type FakeMailbox struct {
	deliveries []delivery

	DeliverFunc func(ctx context.Context, id string, msg events.PlayerMessage) error
}

func NewFakeMailbox() *FakeMailbox {
	return &FakeMailbox{}
}

func (f *FakeMailbox) Deliver(ctx context.Context, id string, msg events.PlayerMessage) error {
	f.deliveries = append(f.deliveries, delivery{ID: id, Msg: msg})
	if f.DeliverFunc != nil {
		return f.DeliverFunc(ctx, id, msg)
	}
	return nil
}

func (f *FakeMailbox) Deliveries() []delivery {
	out := make([]delivery, len(f.deliveries))
	copy(out, f.deliveries)
	return out
}

var _ Deliverer = (*FakeMailbox)(nil)
