package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerCall struct {
	orgID   string
	event   string
	payload interface{}
}

type fakeTriggerer struct {
	mu    sync.Mutex
	calls []triggerCall
	err   error
}

func (f *fakeTriggerer) Trigger(ctx context.Context, orgID, eventType string, payload interface{}) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerCall{orgID: orgID, event: eventType, payload: payload})
	return 1, f.err
}

func (f *fakeTriggerer) recorded() []triggerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]triggerCall(nil), f.calls...)
}

func TestEventListener_Run(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	fake := &fakeTriggerer{}
	listener := NewEventListener(client, "wazeapp:events", fake, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("wazeapp:events")["wazeapp:events"] == 1
	}, 5*time.Second, 10*time.Millisecond)

	publish := func(v string) {
		require.NoError(t, client.Publish(context.Background(), "wazeapp:events", v).Err())
	}
	publish(`not json`)
	publish(`{"event":"message.received","data":{}}`)
	publish(`{"organization_id":"org_1","event":"message.received","data":{"message_id":"m1"}}`)
	publish(`{"organization_id":"org_2","event":"whatsapp.disconnected"}`)

	require.Eventually(t, func() bool { return len(fake.recorded()) == 2 }, 5*time.Second, 10*time.Millisecond)

	calls := fake.recorded()
	assert.Equal(t, "org_1", calls[0].orgID)
	assert.Equal(t, "message.received", calls[0].event)
	raw, ok := calls[0].payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(raw))

	assert.Equal(t, "org_2", calls[1].orgID)
	assert.Nil(t, calls[1].payload)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop in time")
	}
}

func TestEventListener_HandleRejectsIncompleteMessages(t *testing.T) {
	fake := &fakeTriggerer{}
	listener := NewEventListener(nil, "events", fake, zerolog.Nop())

	err := listener.handle(context.Background(), `{"organization_id":"org_1"}`)
	assert.ErrorIs(t, err, errInvalidMessage)

	err = listener.handle(context.Background(), `[1,2]`)
	assert.ErrorIs(t, err, errInvalidMessage)

	assert.Empty(t, fake.recorded())
}

func TestEventListener_HandleTriggerError(t *testing.T) {
	fake := &fakeTriggerer{err: assert.AnError}
	listener := NewEventListener(nil, "events", fake, zerolog.Nop())

	err := listener.handle(context.Background(), `{"organization_id":"org_1","event":"agent.assigned","data":{"agent":"a1"}}`)
	assert.ErrorIs(t, err, assert.AnError)
}
