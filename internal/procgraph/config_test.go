package procgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigBuildsExecutableGraph(t *testing.T) {
	cfg := GraphConfig{
		ID: "demo",
		Nodes: []NodeConfig{
			{ID: "in", NodeType: "input"},
			{ID: "sel", NodeType: "channel_selector", Parameters: map[string]any{"target": "a"}},
			{ID: "gain", NodeType: "gain", Parameters: map[string]any{"gain_db": 3.0}},
			{ID: "out", NodeType: "photoacoustic_output", Parameters: map[string]any{"detection_threshold": 0.8}},
		},
		Connections: []ConnectionConfig{
			{From: "in", To: "sel"},
			{From: "sel", To: "gain"},
			{From: "gain", To: "out"},
		},
		OutputNode: "out",
	}

	g, err := FromConfig(cfg, pastate.New())
	require.NoError(t, err)

	out, err := g.Execute(testAudioFrame())
	require.NoError(t, err)
	_, ok := out.Result()
	assert.True(t, ok)
}

func TestFromConfigRejectsUnknownNodeType(t *testing.T) {
	cfg := GraphConfig{
		ID:    "demo",
		Nodes: []NodeConfig{{ID: "n", NodeType: "does_not_exist"}},
	}
	_, err := FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestFromConfigRejectsBadConnection(t *testing.T) {
	cfg := GraphConfig{
		ID:          "demo",
		Nodes:       []NodeConfig{{ID: "in", NodeType: "input"}},
		Connections: []ConnectionConfig{{From: "in", To: "missing"}},
	}
	_, err := FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestFromConfigFilterKindSelectsConstructor(t *testing.T) {
	cfg := GraphConfig{
		ID: "demo",
		Nodes: []NodeConfig{
			{ID: "in", NodeType: "input"},
			{ID: "sel", NodeType: "channel_selector", Parameters: map[string]any{"target": "a"}},
			{ID: "f", NodeType: "filter", Parameters: map[string]any{"kind": "highpass", "cutoff_hz": 2000.0}},
		},
		Connections: []ConnectionConfig{{From: "in", To: "sel"}, {From: "sel", To: "f"}},
		OutputNode:  "f",
	}

	g, err := FromConfig(cfg, nil)
	require.NoError(t, err)

	node, ok := g.Node("f")
	require.True(t, ok)
	filterNode, ok := node.(*FilterNode)
	require.True(t, ok)
	assert.Equal(t, FilterHighpass, filterNode.kind)
}

func TestLoadConfigFileParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	doc := `
id: demo
nodes:
  - id: in
    node_type: input
  - id: gain
    node_type: gain
    parameters:
      gain_db: 3.0
connections:
  - from: in
    to: gain
output_node: gain
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ID)
	assert.Equal(t, "gain", cfg.OutputNode)
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "gain", cfg.Nodes[1].NodeType)
}

func TestLoadConfigFileRejectsMissingFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
