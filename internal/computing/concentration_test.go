package computing

import (
	"testing"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() procgraph.ProcessingData {
	return procgraph.NewSingleChannelData(procgraph.SingleChannelData{
		Samples: []float32{0.1, 0.2}, SampleRate: 44100, FrameNumber: 1,
	})
}

func TestConcentrationLinearPolynomial(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 1000, Amplitude: 0.5, Timestamp: time.Now()})

	node := NewConcentrationNode("conc", [5]float64{0, 1, 0, 0, 0}).WithPeakFinderSource("pf")
	node.BindSharedState(state)

	out, err := node.Process(testInput())
	require.NoError(t, err)
	assert.True(t, testInput().Equal(out))

	result, ok := state.ConcentrationResult("conc")
	require.True(t, ok)
	assert.InDelta(t, 0.5, result.PPM, 1e-6)
}

func TestConcentrationMultiInstanceIsolation(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf_co2", pastate.PeakResult{Frequency: 2000, Amplitude: 0.001, Timestamp: time.Now()})
	state.PutPeakResult("pf_ch4", pastate.PeakResult{Frequency: 3000, Amplitude: 0.002, Timestamp: time.Now()})

	co2 := NewConcentrationNode("conc_co2", [5]float64{0, 1000, 0, 0, 0}).WithPeakFinderSource("pf_co2")
	co2.BindSharedState(state)
	ch4 := NewConcentrationNode("conc_ch4", [5]float64{100, 500, 0, 0, 0}).WithPeakFinderSource("pf_ch4")
	ch4.BindSharedState(state)

	_, err := co2.Process(testInput())
	require.NoError(t, err)
	_, err = ch4.Process(testInput())
	require.NoError(t, err)

	co2Result, ok := state.ConcentrationResult("conc_co2")
	require.True(t, ok)
	assert.InDelta(t, 1.0, co2Result.PPM, 1e-6)

	ch4Result, ok := state.ConcentrationResult("conc_ch4")
	require.True(t, ok)
	assert.InDelta(t, 101.0, ch4Result.PPM, 1e-6)

	assert.Equal(t, "pf_co2", co2Result.SourcePeakFinderID)
	assert.Equal(t, "pf_ch4", ch4Result.SourcePeakFinderID)
}

func TestConcentrationFallsBackToLegacyPeakFields(t *testing.T) {
	state := pastate.New()
	// No bound source id; write via a PeakFinder with a different id so
	// only the legacy flat mirror carries the value.
	state.PutPeakResult("some_other_pf", pastate.PeakResult{Frequency: 1200, Amplitude: 0.04, Timestamp: time.Now()})

	node := NewConcentrationNode("legacy", [5]float64{10, 50, 0, 0, 0})
	node.BindSharedState(state)

	_, err := node.Process(testInput())
	require.NoError(t, err)

	result, ok := state.ConcentrationResult("legacy")
	require.True(t, ok)
	assert.InDelta(t, 12.0, result.PPM, 1e-6)
}

func TestConcentrationBelowMinAmplitudeDoesNotPublish(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 1000, Amplitude: 0.005, Timestamp: time.Now()})

	node := NewConcentrationNode("conc", [5]float64{0, 1000, 0, 0, 0}).
		WithPeakFinderSource("pf").
		WithMinAmplitudeThreshold(0.01)
	node.BindSharedState(state)

	_, err := node.Process(testInput())
	require.NoError(t, err)

	_, ok := state.ConcentrationResult("conc")
	assert.False(t, ok)
}

func TestConcentrationTemperatureCompensationScalesResult(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 1000, Amplitude: 1.0, Timestamp: time.Now()})
	state.RecordAmbientTemperature(50) // above the 25C reference

	node := NewConcentrationNode("conc", [5]float64{0, 100, 0, 0, 0}).
		WithPeakFinderSource("pf").
		WithTemperatureCompensation(true)
	node.BindSharedState(state)

	_, err := node.Process(testInput())
	require.NoError(t, err)

	result, ok := state.ConcentrationResult("conc")
	require.True(t, ok)
	// raw = 100; compensated = 100 * (298.15/323.15) < 100
	assert.Less(t, result.PPM, 100.0)
}

func TestConcentrationHotReloadUpdatesPolynomialInPlace(t *testing.T) {
	node := NewConcentrationNode("conc", [5]float64{0, 100, 0, 0, 0})
	applied, err := node.UpdateConfig(map[string]any{
		"polynomial_coefficients": []any{50.0, 200.0, 0.0, 0.0, 0.0},
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, [5]float64{50, 200, 0, 0, 0}, node.Parameters()["polynomial_coefficients"])
}
