package procgraph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freqHz float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate)))
	}
	return out
}

func peakAmplitude(samples []float32) float64 {
	peak := 0.0
	for _, s := range samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	return peak
}

func TestFilterOutputLengthMatchesInput(t *testing.T) {
	node := NewLowpassFilterNode("f", 500, ChannelA)
	samples := sineWave(100, 44100, 512)
	out, err := node.Process(NewSingleChannelData(testSingleChannel(samples)))
	require.NoError(t, err)

	sc, _ := out.SingleChannel()
	assert.Len(t, sc.Samples, len(samples))
}

func TestLowpassAttenuatesHighFrequencyMoreThanLowFrequency(t *testing.T) {
	const sampleRate = 44100
	low := sineWave(100, sampleRate, 2048)
	high := sineWave(8000, sampleRate, 2048)

	lowNode := NewLowpassFilterNode("lp1", 500, ChannelA)
	outLow, err := lowNode.Process(NewSingleChannelData(testSingleChannel(low)))
	require.NoError(t, err)
	lowSC, _ := outLow.SingleChannel()

	highNode := NewLowpassFilterNode("lp2", 500, ChannelA)
	outHigh, err := highNode.Process(NewSingleChannelData(testSingleChannel(high)))
	require.NoError(t, err)
	highSC, _ := outHigh.SingleChannel()

	// Settle past the filter's transient before comparing steady-state
	// amplitude.
	assert.Greater(t, peakAmplitude(lowSC.Samples[200:]), peakAmplitude(highSC.Samples[200:]))
}

func TestHighpassAttenuatesLowFrequencyMoreThanHighFrequency(t *testing.T) {
	const sampleRate = 44100
	low := sineWave(50, sampleRate, 2048)
	high := sineWave(10000, sampleRate, 2048)

	lowNode := NewHighpassFilterNode("hp1", 2000, ChannelA)
	outLow, err := lowNode.Process(NewSingleChannelData(testSingleChannel(low)))
	require.NoError(t, err)
	lowSC, _ := outLow.SingleChannel()

	highNode := NewHighpassFilterNode("hp2", 2000, ChannelA)
	outHigh, err := highNode.Process(NewSingleChannelData(testSingleChannel(high)))
	require.NoError(t, err)
	highSC, _ := outHigh.SingleChannel()

	assert.Greater(t, peakAmplitude(highSC.Samples[200:]), peakAmplitude(lowSC.Samples[200:]))
}

func TestFilterDualChannelRespectsTarget(t *testing.T) {
	node := NewLowpassFilterNode("lp", 500, ChannelA)
	dc := testDualChannel()
	out, err := node.Process(NewDualChannelData(dc))
	require.NoError(t, err)

	got, _ := out.DualChannel()
	assert.NotEqual(t, dc.A, got.A)
	assert.Equal(t, dc.B, got.B)
}

func TestFilterRejectsUnequalLengthChannels(t *testing.T) {
	node := NewLowpassFilterNode("lp", 500, ChannelA)
	dc := testDualChannel()
	dc.B = dc.B[:1]
	_, err := node.Process(NewDualChannelData(dc))
	assert.Error(t, err)
}

func TestFilterHotReloadUpdatesCenterInPlace(t *testing.T) {
	node := NewBandpassFilterNode("bp", 1000, 200, ChannelA)
	applied, err := node.UpdateConfig(map[string]any{"center_hz": 1500.0})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1500.0, node.Parameters()["center_hz"])
}

func TestFilterHotReloadRequiresReconstructionOnKindChange(t *testing.T) {
	node := NewBandpassFilterNode("bp", 1000, 200, ChannelA)
	applied, err := node.UpdateConfig(map[string]any{"kind": "lowpass"})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestFilterResetClearsHistory(t *testing.T) {
	node := NewLowpassFilterNode("lp", 500, ChannelA)
	samples := sineWave(100, 44100, 128)
	_, err := node.Process(NewSingleChannelData(testSingleChannel(samples)))
	require.NoError(t, err)

	node.Reset()
	assert.Equal(t, biquadState{}, node.stateA)
}
