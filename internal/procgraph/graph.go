package procgraph

import (
	"slices"
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/audiobus"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
)

// NodeStatistics tracks per-node execution timing.
type NodeStatistics struct {
	FramesProcessed uint64
	TotalDuration   time.Duration
	FastestDuration time.Duration
	WorstDuration   time.Duration
	LastUpdate      time.Time
}

// AvgDuration returns the mean processing duration, or 0 if the node has
// never run.
func (s NodeStatistics) AvgDuration() time.Duration {
	if s.FramesProcessed == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.FramesProcessed)
}

func (s *NodeStatistics) record(d time.Duration, at time.Time) {
	s.FramesProcessed++
	s.TotalDuration += d
	if s.FastestDuration == 0 || d < s.FastestDuration {
		s.FastestDuration = d
	}
	if d > s.WorstDuration {
		s.WorstDuration = d
	}
	s.LastUpdate = at
}

// GraphStatistics aggregates NodeStatistics across end-to-end executions,
// plus structural counts.
type GraphStatistics struct {
	NodeStatistics
	ActiveNodeCount int
	ConnectionCount int
	FailedFrames    uint64
}

type connection struct {
	from, to string
}

// Graph is an ordered collection of nodes, a set of directed connections
// forming a DAG, an optional output node, a precomputed topological
// execution order, and per-node/per-graph execution statistics.
type Graph struct {
	mu sync.RWMutex

	id          string
	nodes       map[string]ProcessingNode
	order       []string // insertion order, for deterministic iteration
	connections []connection
	outputID    string
	sharedState *pastate.State

	execOrder []string
	predOf    map[string]string // to -> from, since fan-in is forbidden

	nodeStats  map[string]*NodeStatistics
	graphStats GraphStatistics
}

// New creates an empty graph identified by id, bound to the given shared
// analytical state (passed to every computing node via BindSharedState at
// add_node time, per spec §9's "no global singletons" design note).
func New(id string, sharedState *pastate.State) *Graph {
	return &Graph{
		id:          id,
		nodes:       make(map[string]ProcessingNode),
		sharedState: sharedState,
		nodeStats:   make(map[string]*NodeStatistics),
	}
}

func graphErr(category errors.ErrorCategory, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("procgraph").
		Category(category).
		Build()
}

// AddNode registers node in the graph. Fails if node's id is already
// present.
func (g *Graph) AddNode(node ProcessingNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[node.ID()]; exists {
		return graphErr(errors.CategoryGraphStructure, "duplicate node id %q", node.ID())
	}

	if g.sharedState != nil {
		node.BindSharedState(g.sharedState)
	}

	g.nodes[node.ID()] = node
	g.order = append(g.order, node.ID())
	g.nodeStats[node.ID()] = &NodeStatistics{}
	g.invalidateExecOrder()
	return nil
}

// Connect adds a directed edge from -> to.
func (g *Graph) Connect(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return graphErr(errors.CategoryGraphStructure, "connect: unknown node %q", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return graphErr(errors.CategoryGraphStructure, "connect: unknown node %q", to)
	}

	for _, c := range g.connections {
		if c.to == to {
			return graphErr(errors.CategoryGraphStructure, "connect: node %q already has an incoming connection (fan-in forbidden)", to)
		}
	}

	g.connections = append(g.connections, connection{from: from, to: to})
	if g.wouldCycle() {
		g.connections = g.connections[:len(g.connections)-1]
		return graphErr(errors.CategoryGraphStructure, "connect: edge %s->%s would create a cycle", from, to)
	}

	g.invalidateExecOrder()
	return nil
}

// wouldCycle reports whether the current connection set contains a
// cycle. Called with mu held.
func (g *Graph) wouldCycle() bool {
	adjacency := make(map[string][]string, len(g.nodes))
	for _, c := range g.connections {
		adjacency[c.from] = append(adjacency[c.from], c.to)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// SetOutput designates id as the graph's output node.
func (g *Graph) SetOutput(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return graphErr(errors.CategoryGraphStructure, "set_output: unknown node %q", id)
	}
	g.outputID = id
	return nil
}

func (g *Graph) invalidateExecOrder() {
	g.execOrder = nil
	g.predOf = nil
}

// Validate checks every structural invariant and recomputes the
// topological order. Called automatically by Execute if the order is
// stale, but callers may invoke it eagerly to fail fast.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.validateLocked()
}

func (g *Graph) validateLocked() error {
	inputCount := 0
	for _, id := range g.order {
		if g.nodes[id].Type() == "input" {
			inputCount++
		}
	}
	if inputCount != 1 {
		return graphErr(errors.CategoryGraphStructure, "graph must have exactly one input node, found %d", inputCount)
	}

	if g.wouldCycle() {
		return graphErr(errors.CategoryGraphStructure, "graph contains a cycle")
	}

	order, predOf, err := g.topologicalOrder()
	if err != nil {
		return err
	}
	g.execOrder = order
	g.predOf = predOf
	return nil
}

// topologicalOrder runs Kahn's algorithm over the connection set, using
// insertion order to break ties so the result is deterministic.
func (g *Graph) topologicalOrder() ([]string, map[string]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	adjacency := make(map[string][]string, len(g.nodes))
	predOf := make(map[string]string, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, c := range g.connections {
		inDegree[c.to]++
		adjacency[c.from] = append(adjacency[c.from], c.to)
		predOf[c.to] = c.from
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, nil, graphErr(errors.CategoryGraphStructure, "graph contains a cycle")
	}
	return result, predOf, nil
}

// Execute runs one frame through the topological order, timing each node
// and updating statistics, and returns the output node's final value.
// Any node error aborts the frame; the graph records the failure and the
// error is returned unchanged. The frame is dropped; subsequent frames
// proceed normally.
func (g *Graph) Execute(frame audiobus.AudioFrame) (ProcessingData, error) {
	g.mu.Lock()
	if g.execOrder == nil {
		if err := g.validateLocked(); err != nil {
			g.mu.Unlock()
			return ProcessingData{}, err
		}
	}
	order := slices.Clone(g.execOrder)
	predOf := g.predOf
	outputID := g.outputID
	g.mu.Unlock()

	// The graph's read guard is held contiguously across the whole
	// execution (spec §5: "a graph execution is never suspended mid-
	// topology"); node maps and edges are immutable for its duration.
	g.mu.RLock()
	defer g.mu.RUnlock()

	graphStart := time.Now()
	outputs := make(map[string]ProcessingData, len(order))

	for _, id := range order {
		node := g.nodes[id]

		var input ProcessingData
		if node.Type() == "input" {
			input = NewAudioFrameData(frame)
		} else {
			from, ok := predOf[id]
			if !ok {
				continue // no predecessor feeds this node; it does not run this frame
			}
			predOutput, ok := outputs[from]
			if !ok {
				continue
			}
			input = predOutput.Clone()
		}

		start := time.Now()
		out, err := node.Process(input)
		duration := time.Since(start)
		now := time.Now()

		stats := g.nodeStats[id]
		stats.record(duration, now)

		if err != nil {
			g.graphStats.FailedFrames++
			return ProcessingData{}, err
		}

		outputs[id] = out
	}

	g.graphStats.record(time.Since(graphStart), time.Now())

	if outputID == "" {
		return ProcessingData{}, nil
	}
	result, ok := outputs[outputID]
	if !ok {
		return ProcessingData{}, graphErr(errors.CategoryGraphStructure, "execute: output node %q did not run", outputID)
	}
	return result, nil
}

// NodeStatisticsFor returns a copy of the statistics for nodeID.
func (g *Graph) NodeStatisticsFor(nodeID string) (NodeStatistics, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.nodeStats[nodeID]
	if !ok {
		return NodeStatistics{}, false
	}
	return *s, true
}

// Statistics returns a copy of the graph-wide statistics.
func (g *Graph) Statistics() GraphStatistics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stats := g.graphStats
	stats.ActiveNodeCount = len(g.nodes)
	stats.ConnectionCount = len(g.connections)
	return stats
}

// Node returns the node registered under id.
func (g *Graph) Node(id string) (ProcessingNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// NodeView is a read-only snapshot of one node, suitable for a JSON API.
type NodeView struct {
	ID         string
	Type       string
	Parameters map[string]any
	Statistics NodeStatistics
}

// ConnectionView is a read-only snapshot of one connection.
type ConnectionView struct {
	From, To string
}

// GraphView is a read-only snapshot of the whole graph.
type GraphView struct {
	ID          string
	Nodes       []NodeView
	Connections []ConnectionView
	OutputID    string
	Statistics  GraphStatistics
}

// ToSerializableView produces a read-only snapshot suitable for a JSON
// API: nodes (id, type, parameters echo), connections, output id, and
// statistics.
func (g *Graph) ToSerializableView() GraphView {
	g.mu.RLock()
	defer g.mu.RUnlock()

	view := GraphView{
		ID:       g.id,
		OutputID: g.outputID,
		Statistics: GraphStatistics{
			NodeStatistics:  g.graphStats.NodeStatistics,
			ActiveNodeCount: len(g.nodes),
			ConnectionCount: len(g.connections),
			FailedFrames:    g.graphStats.FailedFrames,
		},
	}

	for _, id := range g.order {
		node := g.nodes[id]
		stats := NodeStatistics{}
		if s, ok := g.nodeStats[id]; ok {
			stats = *s
		}
		view.Nodes = append(view.Nodes, NodeView{
			ID:         id,
			Type:       node.Type(),
			Parameters: cloneParameters(node.Parameters()),
			Statistics: stats,
		})
	}

	for _, c := range g.connections {
		view.Connections = append(view.Connections, ConnectionView{From: c.from, To: c.to})
	}

	return view
}

// Clone returns a structurally identical graph with independently cloned
// nodes, used by the hot-reload controller to stage a candidate graph
// without disturbing the one currently executing frames.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := New(g.id, g.sharedState)
	clone.order = slices.Clone(g.order)
	clone.connections = slices.Clone(g.connections)
	clone.outputID = g.outputID

	for _, id := range g.order {
		clone.nodes[id] = g.nodes[id].Clone()
		stats := NodeStatistics{}
		if s, ok := g.nodeStats[id]; ok {
			stats = *s
		}
		clone.nodeStats[id] = &stats
	}
	clone.graphStats = g.graphStats

	return clone
}

// ReplaceNode swaps the ProcessingNode instance registered under id and
// seeds its statistics, without touching connections or order. Used by
// the hot-reload controller to graft a preserved node (one whose
// internal running state survives a reload unchanged, or was already
// updated in place via UpdateConfig) and its accumulated statistics into
// a freshly-built candidate graph.
func (g *Graph) ReplaceNode(id string, node ProcessingNode, stats NodeStatistics) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return graphErr(errors.CategoryGraphStructure, "replace_node: unknown node %q", id)
	}
	if g.sharedState != nil {
		node.BindSharedState(g.sharedState)
	}
	g.nodes[id] = node
	statsCopy := stats
	g.nodeStats[id] = &statsCopy
	g.invalidateExecOrder()
	return nil
}

func (s *GraphStatistics) record(d time.Duration, at time.Time) {
	s.NodeStatistics.record(d, at)
}
