package procgraph

import (
	"testing"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleChainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("chain", pastate.New())

	require.NoError(t, g.AddNode(NewInputNode("in")))
	sel, err := NewChannelSelectorNode("sel", ChannelA)
	require.NoError(t, err)
	require.NoError(t, g.AddNode(sel))
	require.NoError(t, g.AddNode(NewGainNode("gain", 0)))
	require.NoError(t, g.AddNode(NewPhotoacousticOutputNode("out", 1000, 0)))

	require.NoError(t, g.Connect("in", "sel"))
	require.NoError(t, g.Connect("sel", "gain"))
	require.NoError(t, g.Connect("gain", "out"))
	require.NoError(t, g.SetOutput("out"))

	return g
}

func TestAddNodeRejectsDuplicateID(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewInputNode("in")))
	err := g.AddNode(NewInputNode("in"))
	assert.Error(t, err)
}

func TestConnectRejectsUnknownNodes(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewInputNode("in")))
	err := g.Connect("in", "missing")
	assert.Error(t, err)
}

func TestConnectRejectsFanIn(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewInputNode("in1")))
	require.NoError(t, g.AddNode(NewInputNode("in2")))
	require.NoError(t, g.AddNode(NewGainNode("gain", 0)))

	require.NoError(t, g.Connect("in1", "gain"))
	err := g.Connect("in2", "gain")
	assert.Error(t, err)
}

func TestConnectRejectsCycles(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewGainNode("a", 0)))
	require.NoError(t, g.AddNode(NewGainNode("b", 0)))

	require.NoError(t, g.Connect("a", "b"))
	err := g.Connect("b", "a")
	assert.Error(t, err)
}

func TestSetOutputRejectsUnknownNode(t *testing.T) {
	g := New("g", nil)
	err := g.SetOutput("missing")
	assert.Error(t, err)
}

func TestValidateRequiresExactlyOneInputNode(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewGainNode("gain", 0)))
	err := g.Validate()
	assert.Error(t, err)
}

func TestExecuteRunsChainAndProducesResult(t *testing.T) {
	g := simpleChainGraph(t)

	out, err := g.Execute(testAudioFrame())
	require.NoError(t, err)

	result, ok := out.Result()
	require.True(t, ok)
	assert.Contains(t, result.Metadata.ProcessingSteps, "photoacoustic_analysis")
}

func TestExecuteRecordsPerNodeStatistics(t *testing.T) {
	g := simpleChainGraph(t)
	_, err := g.Execute(testAudioFrame())
	require.NoError(t, err)

	stats, ok := g.NodeStatisticsFor("gain")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.FramesProcessed)
}

func TestExecuteRecordsGraphStatistics(t *testing.T) {
	g := simpleChainGraph(t)
	_, err := g.Execute(testAudioFrame())
	require.NoError(t, err)
	_, err = g.Execute(testAudioFrame())
	require.NoError(t, err)

	stats := g.Statistics()
	assert.Equal(t, uint64(2), stats.FramesProcessed)
	assert.Equal(t, 4, stats.ActiveNodeCount)
	assert.Equal(t, 3, stats.ConnectionCount)
}

func TestExecuteAbortsFrameOnNodeError(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewInputNode("in")))
	require.NoError(t, g.AddNode(NewGainNode("gain", 0)))
	require.NoError(t, g.Connect("in", "gain"))
	require.NoError(t, g.SetOutput("gain"))

	// Gain requires SingleChannel input; feeding it a raw AudioFrame
	// (skipping channel selection) must fail the frame, not panic.
	_, err := g.Execute(testAudioFrame())
	assert.Error(t, err)

	stats := g.Statistics()
	assert.Equal(t, uint64(1), stats.FailedFrames)
}

func TestExecuteFanOutClonesToEachConsumer(t *testing.T) {
	g := New("g", nil)
	require.NoError(t, g.AddNode(NewInputNode("in")))
	sel, err := NewChannelSelectorNode("sel", ChannelA)
	require.NoError(t, err)
	require.NoError(t, g.AddNode(sel))
	require.NoError(t, g.AddNode(NewGainNode("gain1", 0)))
	require.NoError(t, g.AddNode(NewGainNode("gain2", 6.0206)))

	require.NoError(t, g.Connect("in", "sel"))
	require.NoError(t, g.Connect("sel", "gain1"))
	require.NoError(t, g.Connect("sel", "gain2"))
	require.NoError(t, g.SetOutput("gain2"))

	out, err := g.Execute(testAudioFrame())
	require.NoError(t, err)

	sc, ok := out.SingleChannel()
	require.True(t, ok)
	assert.InDelta(t, 0.2, float64(sc.Samples[0]), 0.01)
}

func TestToSerializableViewReflectsStructure(t *testing.T) {
	g := simpleChainGraph(t)
	_, err := g.Execute(testAudioFrame())
	require.NoError(t, err)

	view := g.ToSerializableView()
	assert.Equal(t, "chain", view.ID)
	assert.Len(t, view.Nodes, 4)
	assert.Len(t, view.Connections, 3)
	assert.Equal(t, "out", view.OutputID)
}

func TestCloneProducesIndependentGraph(t *testing.T) {
	g := simpleChainGraph(t)
	clone := g.Clone()

	_, err := clone.Execute(testAudioFrame())
	require.NoError(t, err)

	original := g.Statistics()
	cloned := clone.Statistics()
	assert.Equal(t, uint64(0), original.FramesProcessed)
	assert.Equal(t, uint64(1), cloned.FramesProcessed)
}
