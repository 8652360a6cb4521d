package audiobus

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(n uint64) AudioFrame {
	return AudioFrame{
		A:           []float32{0.1, 0.2, 0.3},
		B:           []float32{0.4, 0.5, 0.6},
		SampleRate:  44100,
		TimestampMs: int64(n) * 10,
		FrameNumber: n,
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	t.Parallel()

	bus := New(4)
	for i := uint64(0); i < 10; i++ {
		bus.Publish(testFrame(i))
	}

	stats := bus.Stats()
	assert.Equal(t, uint64(10), stats.TotalFrames)
	assert.Equal(t, 0, stats.ActiveSubscribers)
}

func TestLatestReflectsMostRecentFrame(t *testing.T) {
	t.Parallel()

	bus := New(4)
	_, ok := bus.Latest()
	assert.False(t, ok, "no frame published yet")

	bus.Publish(testFrame(1))
	bus.Publish(testFrame(2))

	latest, ok := bus.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.FrameNumber)
}

func TestSubscribeStartsAtCurrentHead(t *testing.T) {
	t.Parallel()

	bus := New(4)
	bus.Publish(testFrame(1)) // published before subscribe, must not be observed

	consumer := bus.Subscribe()
	defer consumer.Close()

	bus.Publish(testFrame(2))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, lagged, err := consumer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, lagged)
	assert.Equal(t, uint64(2), frame.FrameNumber)
}

func TestConsumerPreservesOrderWithoutLag(t *testing.T) {
	t.Parallel()

	bus := New(100)
	consumer := bus.Subscribe()
	defer consumer.Close()

	for i := uint64(1); i <= 5; i++ {
		bus.Publish(testFrame(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := uint64(1); i <= 5; i++ {
		frame, lagged, err := consumer.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, lagged)
		assert.Equal(t, i, frame.FrameNumber)
	}
}

func TestConsumerSkipsForwardOnLag(t *testing.T) {
	t.Parallel()

	bus := New(4)
	consumer := bus.Subscribe()
	defer consumer.Close()

	// Publish well past the ring capacity before the consumer reads anything.
	for i := uint64(1); i <= 10; i++ {
		bus.Publish(testFrame(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, lagged, err := consumer.Next(ctx)
	require.NoError(t, err)
	assert.Positive(t, lagged, "consumer should report a skip after falling behind")
	assert.Equal(t, uint64(10), frame.FrameNumber, "consumer must skip straight to the latest frame, not the oldest retained one")

	stats := bus.Stats()
	assert.Positive(t, stats.DroppedFrames)

	// The next frame published after the skip is read in order.
	bus.Publish(testFrame(11))
	frame2, lagged2, err := consumer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, lagged2)
	assert.Equal(t, uint64(11), frame2.FrameNumber)
}

func TestCloseYieldsEOFAfterDraining(t *testing.T) {
	t.Parallel()

	bus := New(10)
	consumer := bus.Subscribe()
	defer consumer.Close()

	bus.Publish(testFrame(1))
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := consumer.Next(ctx)
	require.NoError(t, err)

	_, _, err = consumer.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBlockedConsumerWakesOnPublish(t *testing.T) {
	t.Parallel()

	bus := New(10)
	consumer := bus.Subscribe()
	defer consumer.Close()

	result := make(chan AudioFrame, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		frame, _, err := consumer.Next(ctx)
		if err == nil {
			result <- frame
		}
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Publish(testFrame(42))

	select {
	case frame := <-result:
		assert.Equal(t, uint64(42), frame.FrameNumber)
	case <-time.After(time.Second):
		t.Fatal("consumer did not wake up after publish")
	}
}

func TestMultipleConsumersAreIndependent(t *testing.T) {
	t.Parallel()

	bus := New(10)
	fast := bus.Subscribe()
	defer fast.Close()
	slow := bus.Subscribe()
	defer slow.Close()

	bus.Publish(testFrame(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, _, err := fast.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.FrameNumber)

	// slow has not read frame 1 yet; it still observes it independently.
	frame, _, err = slow.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.FrameNumber)
}

func TestConcurrentPublishAndSubscribeIsRaceFree(t *testing.T) {
	t.Parallel()

	bus := New(64)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 200; i++ {
			bus.Publish(testFrame(i))
		}
		bus.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer := bus.Subscribe()
		defer consumer.Close()
		ctx := context.Background()
		for {
			_, _, err := consumer.Next(ctx)
			if err != nil {
				return
			}
		}
	}()

	wg.Wait()
}
