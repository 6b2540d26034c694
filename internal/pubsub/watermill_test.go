package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillBridge_PublishSubscribe(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	err := bridge.Subscribe(ctx, "runner.state.changed", func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	err = bridge.Publish(ctx, Message{
		Topic:    "runner.state.changed",
		Payload:  []byte("RUNNING"),
		Metadata: map[string]string{"script": "demo.tengo"},
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "runner.state.changed", msg.Topic)
		assert.Equal(t, []byte("RUNNING"), msg.Payload)
		assert.Equal(t, "demo.tengo", msg.Metadata["script"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestWatermillBridge_TopicsAreIsolated(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	err := bridge.Subscribe(ctx, "runner.state.changed", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(msg.Payload))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bridge.Publish(ctx, Message{Topic: "runner.file.change_ignored", Payload: []byte("other")}))
	require.NoError(t, bridge.Publish(ctx, Message{Topic: "runner.state.changed", Payload: []byte("STOPPED")}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "STOPPED"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatermillBridge_HandlerErrorDoesNotStopLoop(t *testing.T) {
	bridge := NewWatermillBridge()
	t.Cleanup(func() { _ = bridge.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 2)
	calls := 0
	err := bridge.Subscribe(ctx, "runner.state.changed", func(ctx context.Context, msg Message) error {
		calls++
		if calls == 1 {
			return errors.New("transient failure")
		}
		received <- msg
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bridge.Publish(ctx, Message{Topic: "runner.state.changed", Payload: []byte("RUNNING")}))

	// The nacked message is redelivered by the in-memory channel.
	select {
	case msg := <-received:
		assert.Equal(t, []byte("RUNNING"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redelivery")
	}
}
