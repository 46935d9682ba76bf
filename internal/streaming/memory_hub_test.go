package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := StreamEvent{
		SessionID:  "s-1",
		WorkflowID: "wf-1",
		NodeID:     "fetch",
		EventType:  EventNodeStatus,
		Payload:    map[string]any{"state": "COMPLETED"},
	}
	require.NoError(t, hub.Publish(ctx, event))

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFilterBySessionAndWorkflow(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{SessionID: "s-1", WorkflowID: "wf-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", WorkflowID: "wf-1", EventType: EventNodeStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-2", WorkflowID: "wf-1", EventType: EventNodeStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", WorkflowID: "wf-2", EventType: EventNodeStatus}))

	select {
	case got := <-ch:
		assert.Equal(t, "s-1", got.SessionID)
		assert.Equal(t, "wf-1", got.WorkflowID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{EventWorkflowStatus, EventTreeChanged}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventWorkflowStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventNodeStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventTreeChanged}))

	var received []string
	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			received = append(received, got.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{EventWorkflowStatus, EventTreeChanged}, received)
}

func TestMultipleSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventNodeStatus}))

	for _, ch := range []<-chan StreamEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, EventNodeStatus, got.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventNodeStatus}))
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestBackpressure(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < watcherBuffer+10; i++ {
		require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventNodeStatus}))
	}

	drained := 0
	for len(ch) > 0 {
		<-ch
		drained++
	}
	assert.Equal(t, watcherBuffer, drained)
	assert.Equal(t, uint64(10), hub.Dropped())
}

func TestFilterByNode(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{NodeIDs: []string{"pay"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{NodeID: "ship", EventType: EventNodeStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{NodeID: "pay", EventType: EventNodeStatus}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{EventType: EventWorkflowStatus}))

	require.Len(t, ch, 2)
	assert.Equal(t, "pay", (<-ch).NodeID)
	assert.Equal(t, EventWorkflowStatus, (<-ch).EventType)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventNodeStatus})
			}
		}()
		go func() {
			defer wg.Done()
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
			if err != nil {
				return
			}
			for range 5 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Subscribers())
}

func TestCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, StreamEvent{EventType: EventNodeStatus}), context.Canceled)
	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
