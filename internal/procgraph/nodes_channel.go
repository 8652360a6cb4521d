package procgraph

import (
	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// ChannelTarget selects which channel(s) a node operates on.
type ChannelTarget int

const (
	ChannelA ChannelTarget = iota
	ChannelB
	ChannelBoth
)

// MixStrategy is how ChannelMixer combines two channels sample-by-sample.
type MixStrategy int

const (
	MixAdd MixStrategy = iota
	MixSubtract
	MixAverage
	MixWeighted
)

// ChannelSelectorNode extracts one channel from dual-channel data,
// producing SingleChannel output. target = ChannelBoth is a
// configuration error, rejected at construction time.
type ChannelSelectorNode struct {
	baseNode
	target ChannelTarget
}

// NewChannelSelectorNode creates a ChannelSelector node. target must be
// ChannelA or ChannelB.
func NewChannelSelectorNode(id string, target ChannelTarget) (*ChannelSelectorNode, error) {
	if target == ChannelBoth {
		return nil, errors.Newf("channel_selector: target=Both is a configuration error").
			Component("procgraph").
			Category(errors.CategoryValidation).
			NodeContext(id, "channel_selector").
			Build()
	}
	return &ChannelSelectorNode{baseNode: baseNode{id: id}, target: target}, nil
}

func (n *ChannelSelectorNode) Type() string { return "channel_selector" }

func (n *ChannelSelectorNode) Process(input ProcessingData) (ProcessingData, error) {
	dc, ok := asDualChannel(input)
	if !ok {
		return ProcessingData{}, nodeError(ErrTypeMismatch, n.id, n.Type(),
			errors.NewStd("channel_selector requires DualChannel or AudioFrame input"))
	}

	var samples []float32
	switch n.target {
	case ChannelA:
		samples = dc.A
	case ChannelB:
		samples = dc.B
	}

	return NewSingleChannelData(SingleChannelData{
		Samples:     samples,
		SampleRate:  dc.SampleRate,
		TimestampMs: dc.TimestampMs,
		FrameNumber: dc.FrameNumber,
	}), nil
}

func (n *ChannelSelectorNode) AcceptsInput(input ProcessingData) bool {
	_, ok := asDualChannel(input)
	return ok
}

func (n *ChannelSelectorNode) OutputType(input ProcessingData) (Kind, bool) {
	if !n.AcceptsInput(input) {
		return 0, false
	}
	return KindSingleChannel, true
}

func (n *ChannelSelectorNode) Reset() {}

func (n *ChannelSelectorNode) Clone() ProcessingNode {
	return &ChannelSelectorNode{baseNode: baseNode{id: n.id, state: n.state}, target: n.target}
}

func (n *ChannelSelectorNode) Parameters() map[string]any {
	return map[string]any{"target": n.target}
}

// ChannelMixerNode combines two equal-length channels into one.
type ChannelMixerNode struct {
	baseNode
	strategy MixStrategy
	wa, wb   float64
}

// NewChannelMixerNode creates a ChannelMixer node with the given
// strategy. wa/wb are only meaningful for MixWeighted.
func NewChannelMixerNode(id string, strategy MixStrategy, wa, wb float64) *ChannelMixerNode {
	return &ChannelMixerNode{baseNode: baseNode{id: id}, strategy: strategy, wa: wa, wb: wb}
}

func (n *ChannelMixerNode) Type() string { return "channel_mixer" }

func (n *ChannelMixerNode) mix(dc DualChannelData) (ProcessingData, error) {
	if len(dc.A) != len(dc.B) {
		return ProcessingData{}, nodeError(ErrInvariantViolation, n.id, n.Type(),
			errors.NewStd("channel_mixer requires equal-length channels"))
	}

	out := make([]float32, len(dc.A))
	switch n.strategy {
	case MixAdd:
		for i := range out {
			out[i] = dc.A[i] + dc.B[i]
		}
	case MixSubtract:
		for i := range out {
			out[i] = dc.A[i] - dc.B[i]
		}
	case MixAverage:
		for i := range out {
			out[i] = (dc.A[i] + dc.B[i]) / 2
		}
	case MixWeighted:
		wa, wb := float32(n.wa), float32(n.wb)
		for i := range out {
			out[i] = wa*dc.A[i] + wb*dc.B[i]
		}
	}

	return NewSingleChannelData(SingleChannelData{
		Samples:     out,
		SampleRate:  dc.SampleRate,
		TimestampMs: dc.TimestampMs,
		FrameNumber: dc.FrameNumber,
	}), nil
}

func (n *ChannelMixerNode) Process(input ProcessingData) (ProcessingData, error) {
	dc, ok := asDualChannel(input)
	if !ok {
		return ProcessingData{}, nodeError(ErrTypeMismatch, n.id, n.Type(),
			errors.NewStd("channel_mixer requires DualChannel or AudioFrame input"))
	}
	return n.mix(dc)
}

func (n *ChannelMixerNode) AcceptsInput(input ProcessingData) bool {
	_, ok := asDualChannel(input)
	return ok
}

func (n *ChannelMixerNode) OutputType(input ProcessingData) (Kind, bool) {
	if !n.AcceptsInput(input) {
		return 0, false
	}
	return KindSingleChannel, true
}

func (n *ChannelMixerNode) Reset() {}

func (n *ChannelMixerNode) Clone() ProcessingNode {
	return &ChannelMixerNode{baseNode: baseNode{id: n.id, state: n.state}, strategy: n.strategy, wa: n.wa, wb: n.wb}
}

func (n *ChannelMixerNode) Parameters() map[string]any {
	return map[string]any{"strategy": n.strategy, "wa": n.wa, "wb": n.wb}
}

// DifferentialNode is equivalent to ChannelMixer in Subtract mode, but
// stands as its own node type so its statistics and hot-reload surface
// are distinguished in the graph view.
type DifferentialNode struct {
	ChannelMixerNode
}

// NewDifferentialNode creates a Differential node (channel A minus
// channel B, sample-by-sample).
func NewDifferentialNode(id string) *DifferentialNode {
	return &DifferentialNode{ChannelMixerNode: *NewChannelMixerNode(id, MixSubtract, 1, -1)}
}

func (n *DifferentialNode) Type() string { return "differential" }

func (n *DifferentialNode) Clone() ProcessingNode {
	return &DifferentialNode{ChannelMixerNode: *n.ChannelMixerNode.Clone().(*ChannelMixerNode)}
}

func (n *DifferentialNode) Parameters() map[string]any {
	return map[string]any{}
}
