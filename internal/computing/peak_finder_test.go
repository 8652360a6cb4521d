package computing

import (
	"math"
	"testing"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSamples(freqHz float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestPeakFinderLocatesDominantFrequency(t *testing.T) {
	const sampleRate = 44100
	samples := sineSamples(1000, sampleRate, 4096)

	state := pastate.New()
	node := NewPeakFinderNode("pf", 800, 1200, 0, 0)
	node.BindSharedState(state)

	input := procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: samples, SampleRate: sampleRate, TimestampMs: 0, FrameNumber: 1,
	})

	out, err := node.Process(input)
	require.NoError(t, err)
	assert.True(t, input.Equal(out))

	result, ok := state.PeakResult("pf")
	require.True(t, ok)
	assert.InDelta(t, 1000, result.Frequency, 10)
}

func TestPeakFinderPassThroughInvariance(t *testing.T) {
	node := NewPeakFinderNode("pf", 800, 1200, 0, 0)
	input := procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: sineSamples(1000, 44100, 1024), SampleRate: 44100,
	})
	out, err := node.Process(input)
	require.NoError(t, err)
	assert.True(t, input.Equal(out))
}

func TestPeakFinderBelowThresholdDoesNotPublish(t *testing.T) {
	state := pastate.New()
	node := NewPeakFinderNode("pf", 800, 1200, 10, 0)
	node.BindSharedState(state)

	input := procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: sineSamples(1000, 44100, 1024), SampleRate: 44100,
	})
	_, err := node.Process(input)
	require.NoError(t, err)

	_, ok := state.PeakResult("pf")
	assert.False(t, ok)
}

func TestPeakFinderSmoothingBlendsAcrossFrames(t *testing.T) {
	state := pastate.New()
	node := NewPeakFinderNode("pf", 800, 1200, 0, 0.5)
	node.BindSharedState(state)

	input := procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: sineSamples(1000, 44100, 2048), SampleRate: 44100,
	})

	_, err := node.Process(input)
	require.NoError(t, err)
	first, _ := state.PeakResult("pf")

	_, err = node.Process(input)
	require.NoError(t, err)
	second, _ := state.PeakResult("pf")

	// With identical frames the smoothed value should converge, not
	// jump, so the second amplitude should sit close to the first.
	assert.InDelta(t, first.Amplitude, second.Amplitude, first.Amplitude*0.5+1e-6)
}

func TestPeakFinderHotReloadUpdatesBandInPlace(t *testing.T) {
	node := NewPeakFinderNode("pf", 800, 1200, 0, 0)
	applied, err := node.UpdateConfig(map[string]any{"low_hz": 500.0, "high_hz": 700.0})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 500.0, node.Parameters()["low_hz"])
}

func TestPeakFinderResetClearsSmoothingHistory(t *testing.T) {
	node := NewPeakFinderNode("pf", 800, 1200, 0, 0.5)
	input := procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: sineSamples(1000, 44100, 1024), SampleRate: 44100,
	})
	_, err := node.Process(input)
	require.NoError(t, err)

	node.Reset()
	assert.False(t, node.haveSmoothed)
}
