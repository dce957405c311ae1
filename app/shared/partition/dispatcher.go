// Package partition runs partition handlers one message at a time per
// partition id.
//
// Every partition id gets its own mailbox goroutine. Messages addressed to the
// same id are handled strictly in arrival order and never concurrently, while
// different ids proceed in parallel. Deliver waits for the handler so the
// transport acks only processed messages.
package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
)

// ErrClosed is returned by Deliver once the dispatcher is closed.
var ErrClosed = errors.New("partition dispatcher closed")

// Handler processes one message for one partition.
type Handler[M any] func(ctx context.Context, id string, msg M) error

// Options tunes a Dispatcher.
type Options struct {
	// Buffer is the mailbox capacity per partition.
	Buffer int
	// IdleTimeout stops a mailbox goroutine after this long without
	// messages. Zero keeps mailboxes for the dispatcher's lifetime.
	IdleTimeout time.Duration
}

// Dispatcher serializes messages per partition id.
type Dispatcher[M any] struct {
	name    string
	handler Handler[M]
	logger  *slog.Logger
	opts    Options

	mu        sync.RWMutex
	mailboxes map[string]*mailbox[M]
	closed    bool

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type envelope[M any] struct {
	ctx  context.Context
	msg  M
	fn   func(ctx context.Context) error
	done chan error
}

type mailbox[M any] struct {
	ch      chan envelope[M]
	stopped chan struct{}
}

// NewDispatcher creates a dispatcher calling handler for every delivered message.
func NewDispatcher[M any](name string, handler Handler[M], logger *slog.Logger, opts Options) *Dispatcher[M] {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	return &Dispatcher[M]{
		name:      name,
		handler:   handler,
		logger:    logger,
		opts:      opts,
		mailboxes: make(map[string]*mailbox[M]),
		quit:      make(chan struct{}),
	}
}

// Deliver enqueues msg for partition id and waits for its handler to return.
func (d *Dispatcher[M]) Deliver(ctx context.Context, id string, msg M) error {
	return d.enqueue(ctx, id, envelope[M]{ctx: ctx, msg: msg, done: make(chan error, 1)})
}

// Do runs fn on partition id's mailbox, in line with its messages, and
// waits for it. User operations use it to share the single writer.
func (d *Dispatcher[M]) Do(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return d.enqueue(ctx, id, envelope[M]{ctx: ctx, fn: fn, done: make(chan error, 1)})
}

func (d *Dispatcher[M]) enqueue(ctx context.Context, id string, env envelope[M]) error {
	if id == "" {
		return fmt.Errorf("%s: empty partition id", d.name)
	}

	var mb *mailbox[M]
	for {
		var err error
		mb, err = d.mailboxFor(id)
		if err != nil {
			return err
		}

		d.mu.RLock()
		if d.mailboxes[id] != mb {
			// Evicted between lookup and send.
			d.mu.RUnlock()
			continue
		}
		select {
		case mb.ch <- env:
			d.mu.RUnlock()
		case <-d.quit:
			d.mu.RUnlock()
			return ErrClosed
		case <-ctx.Done():
			d.mu.RUnlock()
			return ctx.Err()
		}
		break
	}

	select {
	case err := <-env.done:
		return err
	case <-mb.stopped:
		select {
		case err := <-env.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher[M]) mailboxFor(id string) (*mailbox[M], error) {
	d.mu.RLock()
	mb, ok := d.mailboxes[id]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return mb, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if mb, ok := d.mailboxes[id]; ok {
		return mb, nil
	}

	mb = &mailbox[M]{
		ch:      make(chan envelope[M], d.opts.Buffer),
		stopped: make(chan struct{}),
	}
	d.mailboxes[id] = mb
	d.wg.Add(1)
	go d.run(id, mb)
	return mb, nil
}

func (d *Dispatcher[M]) run(id string, mb *mailbox[M]) {
	defer d.wg.Done()
	defer close(mb.stopped)

	var idle <-chan time.Time
	var timer *time.Timer
	if d.opts.IdleTimeout > 0 {
		timer = time.NewTimer(d.opts.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case env := <-mb.ch:
			d.process(id, env)
			if timer != nil {
				timer.Reset(d.opts.IdleTimeout)
			}
		case <-idle:
			if d.evict(id, mb) {
				return
			}
			timer.Reset(d.opts.IdleTimeout)
		case <-d.quit:
			for {
				select {
				case env := <-mb.ch:
					d.process(id, env)
				default:
					return
				}
			}
		}
	}
}

// evict removes an empty mailbox. Senders hold the read lock while
// enqueueing, so TryLock failing means someone is about to deliver.
func (d *Dispatcher[M]) evict(id string, mb *mailbox[M]) bool {
	if !d.mu.TryLock() {
		return false
	}
	defer d.mu.Unlock()
	if len(mb.ch) > 0 || d.mailboxes[id] != mb {
		return false
	}
	delete(d.mailboxes, id)
	return true
}

func (d *Dispatcher[M]) process(id string, env envelope[M]) {
	if err := env.ctx.Err(); err != nil {
		env.done <- err
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(env.ctx, "Partition handler panicked",
				attr.String("dispatcher", d.name),
				attr.String("partition_id", id),
				attr.Any("panic", r),
			)
			env.done <- fmt.Errorf("%s: handler panic for %s: %v", d.name, id, r)
		}
	}()

	if env.fn != nil {
		env.done <- env.fn(env.ctx)
		return
	}
	env.done <- d.handler(env.ctx, id, env.msg)
}

// Active returns the number of live mailboxes.
func (d *Dispatcher[M]) Active() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.mailboxes)
}

// Close stops accepting messages, lets every mailbox finish what it has
// queued and waits for all mailbox goroutines to exit.
func (d *Dispatcher[M]) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.quit)
	})
	d.wg.Wait()
}
