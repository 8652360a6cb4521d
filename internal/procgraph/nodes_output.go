package procgraph

import (
	"math"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// PhotoacousticOutputNode converts a SingleChannel signal into the
// terminal PhotoacousticResult form: it computes the peak amplitude,
// appends "photoacoustic_analysis" to the metadata step list, and if
// peak amplitude exceeds detectionThreshold also appends
// "detection_confirmed". No RMS value is computed.
type PhotoacousticOutputNode struct {
	baseNode
	detectionThreshold float64
	windowSize         int
}

// NewPhotoacousticOutputNode creates a PhotoacousticOutput node.
func NewPhotoacousticOutputNode(id string, detectionThreshold float64, windowSize int) *PhotoacousticOutputNode {
	return &PhotoacousticOutputNode{
		baseNode:           baseNode{id: id},
		detectionThreshold: detectionThreshold,
		windowSize:         windowSize,
	}
}

func (n *PhotoacousticOutputNode) Type() string { return "photoacoustic_output" }

func (n *PhotoacousticOutputNode) Process(input ProcessingData) (ProcessingData, error) {
	sc, ok := input.SingleChannel()
	if !ok {
		return ProcessingData{}, nodeError(ErrTypeMismatch, n.id, n.Type(),
			errors.NewStd("photoacoustic_output requires SingleChannel input"))
	}

	peak := 0.0
	for _, s := range sc.Samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}

	steps := []string{"photoacoustic_analysis"}
	if peak > n.detectionThreshold {
		steps = append(steps, "detection_confirmed")
	}

	result := PhotoacousticResult{
		Signal: sc.Samples,
		Metadata: Metadata{
			OriginalFrameNumber: sc.FrameNumber,
			OriginalTimestampMs: sc.TimestampMs,
			SampleRate:          sc.SampleRate,
			ProcessingSteps:     steps,
		},
	}

	return NewPhotoacousticResultData(result), nil
}

func (n *PhotoacousticOutputNode) AcceptsInput(input ProcessingData) bool {
	_, ok := input.SingleChannel()
	return ok
}

func (n *PhotoacousticOutputNode) OutputType(input ProcessingData) (Kind, bool) {
	if !n.AcceptsInput(input) {
		return 0, false
	}
	return KindPhotoacousticResult, true
}

func (n *PhotoacousticOutputNode) Reset() {}

func (n *PhotoacousticOutputNode) Clone() ProcessingNode {
	return &PhotoacousticOutputNode{
		baseNode:           baseNode{id: n.id, state: n.state},
		detectionThreshold: n.detectionThreshold,
		windowSize:         n.windowSize,
	}
}

func (n *PhotoacousticOutputNode) Parameters() map[string]any {
	return map[string]any{
		"detection_threshold": n.detectionThreshold,
		"window_size":         n.windowSize,
	}
}
