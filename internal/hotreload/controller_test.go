package hotreload

import (
	"testing"

	_ "github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() procgraph.GraphConfig {
	return procgraph.GraphConfig{
		ID: "g1",
		Nodes: []procgraph.NodeConfig{
			{ID: "in", NodeType: "input"},
			{ID: "pf", NodeType: "peak_finder", Parameters: map[string]any{
				"low_hz": 800.0, "high_hz": 1200.0,
			}},
		},
		Connections: []procgraph.ConnectionConfig{{From: "in", To: "pf"}},
		OutputNode:  "pf",
	}
}

func newTestController(t *testing.T) (*Controller, *pastate.State) {
	t.Helper()
	state := pastate.New()
	cfg := baseConfig()
	g, err := procgraph.FromConfig(cfg, state)
	require.NoError(t, err)
	return NewController(g, cfg, state), state
}

func reportStatus(t *testing.T, report Report, id string) Status {
	t.Helper()
	for _, n := range report.Nodes {
		if n.ID == id {
			return n.Status
		}
	}
	t.Fatalf("no report entry for %q", id)
	return ""
}

func TestReloadReportsUnchangedWhenNothingDiffers(t *testing.T) {
	c, _ := newTestController(t)
	report, err := c.Reload(baseConfig())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, reportStatus(t, report, "pf"))
	assert.Equal(t, Unchanged, reportStatus(t, report, "in"))
}

func TestReloadHotReloadsParameterOnlyChange(t *testing.T) {
	c, _ := newTestController(t)
	cfg := baseConfig()
	cfg.Nodes[1].Parameters["low_hz"] = 500.0

	report, err := c.Reload(cfg)
	require.NoError(t, err)
	assert.Equal(t, HotReloaded, reportStatus(t, report, "pf"))

	node, ok := c.Graph().Node("pf")
	require.True(t, ok)
	assert.Equal(t, 500.0, node.Parameters()["low_hz"])
}

func TestReloadReconstructsOnTypeChange(t *testing.T) {
	c, _ := newTestController(t)
	cfg := baseConfig()
	cfg.Nodes[1].NodeType = "concentration"
	cfg.Nodes[1].Parameters = map[string]any{"polynomial_coefficients": []any{0.0, 1.0, 0.0, 0.0, 0.0}}

	report, err := c.Reload(cfg)
	require.NoError(t, err)
	assert.Equal(t, Reconstructed, reportStatus(t, report, "pf"))

	node, ok := c.Graph().Node("pf")
	require.True(t, ok)
	assert.Equal(t, "concentration", node.Type())
}

func TestReloadReportsAddedAndRemoved(t *testing.T) {
	c, _ := newTestController(t)
	cfg := procgraph.GraphConfig{
		ID: "g1",
		Nodes: []procgraph.NodeConfig{
			{ID: "in", NodeType: "input"},
		},
		OutputNode: "in",
	}
	cfg.Nodes = append(cfg.Nodes, procgraph.NodeConfig{
		ID: "conc", NodeType: "concentration",
		Parameters: map[string]any{"polynomial_coefficients": []any{0.0, 1.0, 0.0, 0.0, 0.0}},
	})
	cfg.Connections = []procgraph.ConnectionConfig{{From: "in", To: "conc"}}
	cfg.OutputNode = "conc"

	report, err := c.Reload(cfg)
	require.NoError(t, err)
	assert.Equal(t, Added, reportStatus(t, report, "conc"))
	assert.Equal(t, Removed, reportStatus(t, report, "pf"))
}

func TestReloadAbortsEntirelyOnUpdateConfigError(t *testing.T) {
	c, _ := newTestController(t)
	cfg := baseConfig()
	// low_hz must be numeric; an invalid type makes UpdateConfig error,
	// which must abort the whole reload with the live graph untouched.
	cfg.Nodes[1].Parameters["low_hz"] = "not-a-number"

	_, err := c.Reload(cfg)
	require.Error(t, err)

	node, ok := c.Graph().Node("pf")
	require.True(t, ok)
	assert.Equal(t, 800.0, node.Parameters()["low_hz"])
}

func TestReloadPreservesStatisticsAcrossUnchangedSwap(t *testing.T) {
	c, _ := newTestController(t)

	stats := procgraph.NodeStatistics{FramesProcessed: 7}
	require.NoError(t, c.Graph().ReplaceNode("pf", mustClone(t, c), stats))

	report, err := c.Reload(baseConfig())
	require.NoError(t, err)
	assert.Equal(t, Unchanged, reportStatus(t, report, "pf"))

	after, ok := c.Graph().NodeStatisticsFor("pf")
	require.True(t, ok)
	assert.EqualValues(t, 7, after.FramesProcessed)
}

func mustClone(t *testing.T, c *Controller) procgraph.ProcessingNode {
	t.Helper()
	n, ok := c.Graph().Node("pf")
	require.True(t, ok)
	return n.Clone()
}
