package hotreload

import (
	"reflect"
	"sync"

	"github.com/sctg-development/photoacoustic-go/internal/audiobus"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// Controller owns the live graph behind a write guard and applies
// reloads as one atomic pointer swap: an in-flight Execute keeps running
// against the graph it started with, and the next Execute call picks up
// whatever graph Reload last installed.
type Controller struct {
	mu          sync.RWMutex
	graph       *procgraph.Graph
	sharedState *pastate.State
	lastConfig  procgraph.GraphConfig
}

// NewController wraps an already-built graph, constructed from initialConfig
// (the declarative description the controller diffs future reloads against).
func NewController(initial *procgraph.Graph, initialConfig procgraph.GraphConfig, sharedState *pastate.State) *Controller {
	return &Controller{graph: initial, sharedState: sharedState, lastConfig: initialConfig}
}

// Graph returns the currently installed graph.
func (c *Controller) Graph() *procgraph.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// Execute runs one frame against whichever graph is currently installed.
func (c *Controller) Execute(frame audiobus.AudioFrame) (procgraph.ProcessingData, error) {
	c.mu.RLock()
	g := c.graph
	c.mu.RUnlock()
	return g.Execute(frame)
}

// Reload classifies every node id against cfg — diffed against the
// declarative configuration the live graph was last built or reloaded
// from, not against the node's own live parameter echo, so resubmitting
// an identical config is always Unchanged regardless of default-valued
// fields a node fills in internally — stages an independent candidate
// graph, and swaps it in only if every step succeeds. On any error the
// live graph is left untouched and no partial report applies.
func (c *Controller) Reload(cfg procgraph.GraphConfig) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.graph
	oldByID := make(map[string]procgraph.NodeConfig, len(c.lastConfig.Nodes))
	for _, nc := range c.lastConfig.Nodes {
		oldByID[nc.ID] = nc
	}

	newIDs := make(map[string]bool, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		newIDs[nc.ID] = true
	}

	report := Report{}
	preserved := make(map[string]preservedNode)

	for id := range oldByID {
		if !newIDs[id] {
			report.add(id, Removed, "")
		}
	}

	for _, nc := range cfg.Nodes {
		oldNodeCfg, existed := oldByID[nc.ID]
		if !existed {
			report.add(nc.ID, Added, "")
			continue
		}

		if oldNodeCfg.NodeType != nc.NodeType {
			report.add(nc.ID, Reconstructed, "type_changed")
			continue
		}

		if paramsEqual(oldNodeCfg.Parameters, nc.Parameters) {
			oldNode, _ := old.Node(nc.ID)
			stats, _ := old.NodeStatisticsFor(nc.ID)
			preserved[nc.ID] = preservedNode{node: oldNode.Clone(), stats: stats}
			report.add(nc.ID, Unchanged, "")
			continue
		}

		oldNode, _ := old.Node(nc.ID)
		candidate := oldNode.Clone()
		applied, err := candidate.UpdateConfig(nc.Parameters)
		if err != nil {
			return Report{}, errors.New(err).
				Component("hotreload").
				Category(errors.CategoryHotReload).
				Context("node_id", nc.ID).
				Build()
		}
		if !applied {
			report.add(nc.ID, Reconstructed, "parameters_require_rebuild")
			continue
		}

		stats, _ := old.NodeStatisticsFor(nc.ID)
		preserved[nc.ID] = preservedNode{node: candidate, stats: stats}
		report.add(nc.ID, HotReloaded, "")
	}

	newGraph, err := procgraph.FromConfig(cfg, c.sharedState)
	if err != nil {
		return Report{}, errors.New(err).
			Component("hotreload").
			Category(errors.CategoryHotReload).
			Build()
	}

	for id, p := range preserved {
		if err := newGraph.ReplaceNode(id, p.node, p.stats); err != nil {
			return Report{}, errors.New(err).
				Component("hotreload").
				Category(errors.CategoryHotReload).
				Context("node_id", id).
				Build()
		}
	}

	c.graph = newGraph
	c.lastConfig = cfg
	return report, nil
}

type preservedNode struct {
	node  procgraph.ProcessingNode
	stats procgraph.NodeStatistics
}

// paramsEqual compares two parameter blobs, treating a nil map and an
// empty map as equal — both mean "no parameters configured".
func paramsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
