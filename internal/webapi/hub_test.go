package webapi

import (
	"testing"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishFansOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	assert.Equal(t, 2, h.SubscriberCount())

	h.Publish(procgraph.PhotoacousticResult{Signal: []float32{1, 2, 3}})

	select {
	case env := <-a:
		assert.Equal(t, []float32{1, 2, 3}, env.Signal)
	case <-time.After(time.Second):
		t.Fatal("subscriber a did not receive publish")
	}
	select {
	case env := <-b:
		assert.Equal(t, []float32{1, 2, 3}, env.Signal)
	case <-time.After(time.Second):
		t.Fatal("subscriber b did not receive publish")
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestHubPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			h.Publish(procgraph.PhotoacousticResult{Signal: []float32{float32(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	require.NotNil(t, ch)
}
