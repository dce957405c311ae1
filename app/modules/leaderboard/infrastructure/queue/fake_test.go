package leaderboardqueue

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
)

// ------------------------
// Fake Sender
// ------------------------

type sentMessage struct {
	Topic       string
	PartitionID string
	Payload     any
}

type FakeSender struct {
	mu   sync.Mutex
	sent []sentMessage

	SendFunc func(ctx context.Context, topic, partitionID string, payload any) error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

func (f *FakeSender) Send(ctx context.Context, topic string, partitionID string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendFunc != nil {
		if err := f.SendFunc(ctx, topic, partitionID, payload); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentMessage{Topic: topic, PartitionID: partitionID, Payload: payload})
	return nil
}

func (f *FakeSender) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

var _ eventbus.Sender = (*FakeSender)(nil)
