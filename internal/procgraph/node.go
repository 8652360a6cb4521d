package procgraph

import (
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
)

// ProcessingNode is the capability set every node in the graph implements.
// Variants are peers; there is no inheritance hierarchy, only this
// interface plus a type tag (Type()) for configuration, logging, and
// graph visualization, and an ordinary Go type assertion for the
// downcast escape hatch action nodes need for self-inspection.
type ProcessingNode interface {
	// ID returns the node's identity, unique within its graph.
	ID() string

	// Type returns the node's type tag (e.g. "gain", "peak_finder").
	Type() string

	// Process transforms input into output, or returns a node error
	// (TypeMismatch, InvariantViolation, InternalError).
	Process(input ProcessingData) (ProcessingData, error)

	// AcceptsInput reports whether this node can process input's kind.
	AcceptsInput(input ProcessingData) bool

	// OutputType reports the output Kind this node would produce for
	// input, or false if input is not supported.
	OutputType(input ProcessingData) (Kind, bool)

	// Reset clears any internal filter state or buffers.
	Reset()

	// Clone returns a deep copy for graph duplication and hot-reload
	// staging.
	Clone() ProcessingNode

	// SupportsHotReload reports whether UpdateConfig can ever return
	// (true, nil) for this node type.
	SupportsHotReload() bool

	// UpdateConfig attempts to absorb new parameters in place. applied
	// == true means the change took effect without reconstruction;
	// applied == false means the change is understood but the node must
	// be rebuilt; a non-nil error means the parameters themselves are
	// invalid and nothing changed.
	UpdateConfig(parameters map[string]any) (applied bool, err error)

	// BindSharedState attaches the shared analytical state. Only
	// computing-flavoured nodes (PeakFinder, Concentration,
	// UniversalAction) use it; other nodes ignore the call.
	BindSharedState(state *pastate.State)

	// SharedState returns the bound shared state, or nil if none is
	// bound.
	SharedState() *pastate.State

	// Parameters echoes the node's current configuration, used by
	// to_serializable_view and by the hot-reload diff engine.
	Parameters() map[string]any
}

// ErrorKind is the behavioural category of a node-level error (spec §7:
// "Node internal — wrapped with the offending node id; aborts the
// current frame only").
type ErrorKind int

const (
	ErrTypeMismatch ErrorKind = iota
	ErrInvariantViolation
	ErrInternal
)

// nodeError builds an *errors.EnhancedError tagged with the offending
// node's id and type, categorized per spec §7.
func nodeError(kind ErrorKind, nodeID, nodeType string, err error) error {
	var category errors.ErrorCategory
	switch kind {
	case ErrTypeMismatch:
		category = errors.CategoryTypeMismatch
	case ErrInvariantViolation:
		category = errors.CategoryInvariantViolation
	default:
		category = errors.CategoryNodeInternal
	}
	return errors.New(err).
		Component("procgraph").
		Category(category).
		NodeContext(nodeID, nodeType).
		Build()
}

// baseNode holds the fields common to every built-in node: its identity,
// the bound shared state (nil for non-computing nodes), and the
// hot-reload/shared-state plumbing every node must expose.
type baseNode struct {
	id    string
	state *pastate.State
}

func (b *baseNode) ID() string                         { return b.id }
func (b *baseNode) BindSharedState(state *pastate.State) { b.state = state }
func (b *baseNode) SharedState() *pastate.State          { return b.state }
func (b *baseNode) SupportsHotReload() bool               { return false }
func (b *baseNode) UpdateConfig(map[string]any) (bool, error) {
	return false, nil
}
