package procgraph

import "github.com/sctg-development/photoacoustic-go/internal/errors"

// InputNode anchors the graph: the executor feeds the incoming frame to
// its Process call to assign a consistent metadata baseline before any
// other node runs.
type InputNode struct {
	baseNode
}

// NewInputNode creates an Input node with the given id.
func NewInputNode(id string) *InputNode {
	return &InputNode{baseNode: baseNode{id: id}}
}

func (n *InputNode) Type() string { return "input" }

func (n *InputNode) Process(input ProcessingData) (ProcessingData, error) {
	if _, ok := input.AudioFrame(); !ok {
		return ProcessingData{}, nodeError(ErrTypeMismatch, n.id, n.Type(),
			errors.NewStd("input node requires AudioFrame"))
	}
	return input, nil
}

func (n *InputNode) AcceptsInput(input ProcessingData) bool {
	_, ok := input.AudioFrame()
	return ok
}

func (n *InputNode) OutputType(input ProcessingData) (Kind, bool) {
	if !n.AcceptsInput(input) {
		return 0, false
	}
	return KindAudioFrame, true
}

func (n *InputNode) Reset() {}

func (n *InputNode) Clone() ProcessingNode {
	return &InputNode{baseNode: baseNode{id: n.id, state: n.state}}
}

func (n *InputNode) Parameters() map[string]any { return map[string]any{} }
