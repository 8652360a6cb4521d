// Package audiobus implements the audio frame bus: a single-producer,
// multi-consumer lossy broadcast channel with lag recovery. It fans frames
// out from the acquisition source to every graph executor and sideline
// consumer without ever blocking the producer on a slow subscriber.
package audiobus

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// AudioFrame is a dual-channel block of samples captured from the
// Helmholtz resonance cell's microphone pair. len(A) must equal len(B) and
// both must be non-empty; a frame is immutable once published onto a bus.
type AudioFrame struct {
	A, B        []float32
	SampleRate  int
	TimestampMs int64
	FrameNumber uint64
}

// Clone returns a deep copy of the frame. The bus clones every frame it
// stores so that a subscriber mutating its own copy can never corrupt
// another subscriber's view.
func (f AudioFrame) Clone() AudioFrame {
	a := make([]float32, len(f.A))
	b := make([]float32, len(f.B))
	copy(a, f.A)
	copy(b, f.B)
	f.A = a
	f.B = b
	return f
}

// Stats is a snapshot of bus-wide counters, suitable for the live
// instrumentation surface.
type Stats struct {
	TotalFrames       uint64
	DroppedFrames     uint64
	ActiveSubscribers int
	FramesPerSecond   float64
	LastSampleRate    int
}

// Bus fans frames from a single producer out to N independent consumers.
// It holds a fixed-capacity ring shared by all consumers plus a
// single-value "latest frame" slot for late joiners.
type Bus struct {
	capacity int

	mu        sync.RWMutex
	ring      []AudioFrame
	writeHead uint64
	closed    bool
	wake      chan struct{}

	latest atomic.Pointer[AudioFrame]

	activeSubs atomic.Int64

	totalFrames   atomic.Uint64
	droppedFrames atomic.Uint64
	lastSampleRate atomic.Int64

	statsMu     sync.Mutex
	windowStart time.Time
	windowCount uint64
	fps         float64
}

// New creates a bus with the given ring capacity. A non-positive capacity
// falls back to 1000, the same default as conf.Settings.AudioBus.RingCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Bus{
		capacity: capacity,
		ring:     make([]AudioFrame, capacity),
		wake:     make(chan struct{}),
	}
}

// Publish fans frame out to every subscriber. It never blocks on a slow
// consumer and succeeds even with zero subscribers.
func (b *Bus) Publish(frame AudioFrame) {
	frame = frame.Clone()

	b.mu.Lock()
	idx := int(b.writeHead % uint64(b.capacity))
	b.ring[idx] = frame
	b.writeHead++
	oldWake := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(oldWake)

	b.latest.Store(&frame)
	b.recordPublish(frame.SampleRate)
}

// Close marks the bus as closed. Every blocked or future Consumer.Next
// call returns io.EOF once the consumer has drained the frames already in
// the ring.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	oldWake := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(oldWake)
}

// Latest returns the most recently published frame, or false if the bus
// has never published one.
func (b *Bus) Latest() (AudioFrame, bool) {
	p := b.latest.Load()
	if p == nil {
		return AudioFrame{}, false
	}
	return *p, true
}

// Stats returns a snapshot of the bus's counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	fps := b.fps
	b.statsMu.Unlock()

	return Stats{
		TotalFrames:       b.totalFrames.Load(),
		DroppedFrames:     b.droppedFrames.Load(),
		ActiveSubscribers: int(b.activeSubs.Load()),
		FramesPerSecond:   fps,
		LastSampleRate:    int(b.lastSampleRate.Load()),
	}
}

func (b *Bus) recordPublish(sampleRate int) {
	b.totalFrames.Add(1)
	b.lastSampleRate.Store(int64(sampleRate))

	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	if b.windowStart.IsZero() {
		b.windowStart = time.Now()
	}
	b.windowCount++
	if elapsed := time.Since(b.windowStart); elapsed >= time.Second {
		b.fps = float64(b.windowCount) / elapsed.Seconds()
		b.windowCount = 0
		b.windowStart = time.Now()
	}
}

// Consumer is a per-subscriber read cursor into a Bus's ring.
type Consumer struct {
	bus *Bus
	pos uint64
}

// Subscribe returns a consumer cursor positioned at the bus's current
// write head: it will only observe frames published after this call.
func (b *Bus) Subscribe() *Consumer {
	b.mu.RLock()
	pos := b.writeHead
	b.mu.RUnlock()

	b.activeSubs.Add(1)
	return &Consumer{bus: b, pos: pos}
}

// Close releases the consumer's slot in the bus's active-subscriber count.
func (c *Consumer) Close() {
	c.bus.activeSubs.Add(-1)
}

// Next blocks until a frame is available, the bus is closed, or ctx is
// done. lagged is the number of frames this consumer skipped to catch up
// with the ring; it is 0 on an in-order read.
func (c *Consumer) Next(ctx context.Context) (frame AudioFrame, lagged int, err error) {
	for {
		c.bus.mu.RLock()
		head := c.bus.writeHead
		closed := c.bus.closed
		wake := c.bus.wake
		c.bus.mu.RUnlock()

		if c.pos < head {
			oldest := uint64(0)
			if head > uint64(c.bus.capacity) {
				oldest = head - uint64(c.bus.capacity)
			}
			if c.pos < oldest {
				// Fallen out of the ring's retained window: skip straight to
				// the freshest published frame instead of the oldest one
				// still retained, and report everything in between as lagged.
				latest := head - 1
				lagged = int(latest - c.pos)
				c.bus.droppedFrames.Add(uint64(lagged))
				c.pos = latest
			}

			c.bus.mu.RLock()
			frame = c.bus.ring[c.pos%uint64(c.bus.capacity)]
			c.bus.mu.RUnlock()
			c.pos++
			return frame, lagged, nil
		}

		if closed {
			return AudioFrame{}, 0, io.EOF
		}

		select {
		case <-ctx.Done():
			return AudioFrame{}, 0, ctx.Err()
		case <-wake:
		}
	}
}
