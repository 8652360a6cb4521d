package procgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoacousticOutputBelowThresholdOmitsDetection(t *testing.T) {
	node := NewPhotoacousticOutputNode("out", 0.9, 0)
	out, err := node.Process(NewSingleChannelData(testSingleChannel([]float32{0.1, -0.2, 0.3})))
	require.NoError(t, err)

	result, ok := out.Result()
	require.True(t, ok)
	assert.Contains(t, result.Metadata.ProcessingSteps, "photoacoustic_analysis")
	assert.NotContains(t, result.Metadata.ProcessingSteps, "detection_confirmed")
}

func TestPhotoacousticOutputAboveThresholdConfirmsDetection(t *testing.T) {
	node := NewPhotoacousticOutputNode("out", 0.5, 0)
	out, err := node.Process(NewSingleChannelData(testSingleChannel([]float32{0.1, -0.9, 0.3})))
	require.NoError(t, err)

	result, ok := out.Result()
	require.True(t, ok)
	assert.Contains(t, result.Metadata.ProcessingSteps, "detection_confirmed")
}

func TestPhotoacousticOutputRejectsNonSingleChannel(t *testing.T) {
	node := NewPhotoacousticOutputNode("out", 0.5, 0)
	_, err := node.Process(NewDualChannelData(testDualChannel()))
	assert.Error(t, err)
}

func TestPhotoacousticOutputPreservesProvenance(t *testing.T) {
	node := NewPhotoacousticOutputNode("out", 0.9, 0)
	sc := testSingleChannel([]float32{0.1, 0.2})
	out, err := node.Process(NewSingleChannelData(sc))
	require.NoError(t, err)

	result, _ := out.Result()
	assert.Equal(t, sc.FrameNumber, result.Metadata.OriginalFrameNumber)
	assert.Equal(t, sc.TimestampMs, result.Metadata.OriginalTimestampMs)
	assert.Equal(t, sc.SampleRate, result.Metadata.SampleRate)
}
