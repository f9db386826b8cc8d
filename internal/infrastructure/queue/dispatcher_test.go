package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/ports"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []ports.Message
	fail  bool
	block chan struct{}
	done  chan struct{}
}

func (n *recordingNotifier) Send(_ context.Context, msg ports.Message) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	if n.done != nil {
		n.done <- struct{}{}
	}
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestDispatcher_DeliversMessages(t *testing.T) {
	n := &recordingNotifier{done: make(chan struct{}, 4)}
	d := NewDispatcher(2, 4, n, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for i := 0; i < 3; i++ {
		if !d.Enqueue(ports.Message{Kind: ports.KindInvitation, To: "a@x.com"}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-n.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}
	cancel()
	d.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(n.sent))
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	n := &recordingNotifier{}
	// Workers are not started, so the buffer fills up.
	d := NewDispatcher(1, 1, n, zerolog.Nop())

	if !d.Enqueue(ports.Message{Kind: ports.KindPasswordReset}) {
		t.Fatalf("first message should fit in the buffer")
	}
	if d.Enqueue(ports.Message{Kind: ports.KindPasswordReset}) {
		t.Fatalf("expected second message to be dropped")
	}
}

func TestDispatcher_FailureIsContained(t *testing.T) {
	n := &recordingNotifier{fail: true, done: make(chan struct{}, 1)}
	d := NewDispatcher(1, 1, n, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue(ports.Message{Kind: ports.KindInvitation})
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery attempt")
	}
	cancel()
	d.Wait()
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(1, 4, n, zerolog.Nop())
	d.Enqueue(ports.Message{Kind: ports.KindInvitation})
	d.Enqueue(ports.Message{Kind: ports.KindPasswordReset})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) != 2 {
		t.Fatalf("expected queued messages to be delivered, got %d", len(n.sent))
	}
}
