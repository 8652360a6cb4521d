package procgraph

import (
	"math"
	"sync"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// FilterKind is the filter shape family a FilterNode applies. Coefficient
// families follow the RBJ Audio EQ Cookbook biquad design equations; the
// spec only constrains attenuation and energy behaviour, not the exact
// coefficients.
type FilterKind int

const (
	FilterBandpass FilterKind = iota
	FilterLowpass
	FilterHighpass
)

func (k FilterKind) String() string {
	switch k {
	case FilterBandpass:
		return "bandpass"
	case FilterLowpass:
		return "lowpass"
	case FilterHighpass:
		return "highpass"
	default:
		return "unknown"
	}
}

// biquadState holds the two-sample history a direct-form-I biquad needs.
type biquadState struct {
	x1, x2, y1, y2 float64
}

func (s *biquadState) reset() { *s = biquadState{} }

func (s *biquadState) step(c biquadCoeffs, x float64) float64 {
	y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}

type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// designBiquad computes normalized biquad coefficients for kind at the
// given sample rate and parameters, per the RBJ cookbook.
func designBiquad(kind FilterKind, sampleRate int, centerHz, bandwidthHz, cutoffHz float64) biquadCoeffs {
	fs := float64(sampleRate)

	switch kind {
	case FilterBandpass:
		w0 := 2 * math.Pi * centerHz / fs
		q := centerHz / bandwidthHz
		alpha := math.Sin(w0) / (2 * q)
		cosw0 := math.Cos(w0)
		a0 := 1 + alpha
		return biquadCoeffs{
			b0: alpha / a0,
			b1: 0,
			b2: -alpha / a0,
			a1: (-2 * cosw0) / a0,
			a2: (1 - alpha) / a0,
		}
	case FilterHighpass:
		w0 := 2 * math.Pi * cutoffHz / fs
		const q = 0.70710678 // Butterworth Q, maximally flat
		alpha := math.Sin(w0) / (2 * q)
		cosw0 := math.Cos(w0)
		a0 := 1 + alpha
		return biquadCoeffs{
			b0: ((1 + cosw0) / 2) / a0,
			b1: (-(1 + cosw0)) / a0,
			b2: ((1 + cosw0) / 2) / a0,
			a1: (-2 * cosw0) / a0,
			a2: (1 - alpha) / a0,
		}
	default: // FilterLowpass
		w0 := 2 * math.Pi * cutoffHz / fs
		const q = 0.70710678
		alpha := math.Sin(w0) / (2 * q)
		cosw0 := math.Cos(w0)
		a0 := 1 + alpha
		return biquadCoeffs{
			b0: ((1 - cosw0) / 2) / a0,
			b1: (1 - cosw0) / a0,
			b2: ((1 - cosw0) / 2) / a0,
			a1: (-2 * cosw0) / a0,
			a2: (1 - alpha) / a0,
		}
	}
}

// FilterNode applies a stable linear filter independently to each
// selected channel. Band edges for Bandpass are center ± bandwidth/2;
// Lowpass/Highpass only use cutoffHz.
type FilterNode struct {
	baseNode

	mu            sync.Mutex
	kind          FilterKind
	centerHz      float64
	bandwidthHz   float64
	cutoffHz      float64
	targetChannel ChannelTarget

	sampleRate int
	coeffs     biquadCoeffs
	stateA     biquadState
	stateB     biquadState
}

// NewBandpassFilterNode creates a Filter node of kind Bandpass.
func NewBandpassFilterNode(id string, centerHz, bandwidthHz float64, target ChannelTarget) *FilterNode {
	return &FilterNode{
		baseNode:      baseNode{id: id},
		kind:          FilterBandpass,
		centerHz:      centerHz,
		bandwidthHz:   bandwidthHz,
		targetChannel: target,
	}
}

// NewLowpassFilterNode creates a Filter node of kind Lowpass.
func NewLowpassFilterNode(id string, cutoffHz float64, target ChannelTarget) *FilterNode {
	return &FilterNode{
		baseNode:      baseNode{id: id},
		kind:          FilterLowpass,
		cutoffHz:      cutoffHz,
		targetChannel: target,
	}
}

// NewHighpassFilterNode creates a Filter node of kind Highpass.
func NewHighpassFilterNode(id string, cutoffHz float64, target ChannelTarget) *FilterNode {
	return &FilterNode{
		baseNode:      baseNode{id: id},
		kind:          FilterHighpass,
		cutoffHz:      cutoffHz,
		targetChannel: target,
	}
}

func (n *FilterNode) Type() string { return "filter" }

func (n *FilterNode) ensureCoeffs(sampleRate int) {
	if n.sampleRate == sampleRate && n.coeffs != (biquadCoeffs{}) {
		return
	}
	n.sampleRate = sampleRate
	n.coeffs = designBiquad(n.kind, sampleRate, n.centerHz, n.bandwidthHz, n.cutoffHz)
}

func (n *FilterNode) filterChannel(samples []float32, state *biquadState) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(state.step(n.coeffs, float64(s)))
	}
	return out
}

func (n *FilterNode) Process(input ProcessingData) (ProcessingData, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sc, ok := input.SingleChannel(); ok {
		n.ensureCoeffs(sc.SampleRate)
		sc.Samples = n.filterChannel(sc.Samples, &n.stateA)
		return NewSingleChannelData(sc), nil
	}

	if dc, ok := asDualChannel(input); ok {
		if len(dc.A) != len(dc.B) {
			return ProcessingData{}, nodeError(ErrInvariantViolation, n.id, n.Type(),
				errors.NewStd("filter requires equal-length channels"))
		}
		n.ensureCoeffs(dc.SampleRate)
		switch n.targetChannel {
		case ChannelA:
			dc.A = n.filterChannel(dc.A, &n.stateA)
		case ChannelB:
			dc.B = n.filterChannel(dc.B, &n.stateB)
		case ChannelBoth:
			dc.A = n.filterChannel(dc.A, &n.stateA)
			dc.B = n.filterChannel(dc.B, &n.stateB)
		}
		return NewDualChannelData(dc), nil
	}

	return ProcessingData{}, nodeError(ErrTypeMismatch, n.id, n.Type(),
		errors.NewStd("filter requires SingleChannel, DualChannel, or AudioFrame input"))
}

func (n *FilterNode) AcceptsInput(input ProcessingData) bool {
	if _, ok := input.SingleChannel(); ok {
		return true
	}
	_, ok := asDualChannel(input)
	return ok
}

func (n *FilterNode) OutputType(input ProcessingData) (Kind, bool) {
	if _, ok := input.SingleChannel(); ok {
		return KindSingleChannel, true
	}
	if _, ok := asDualChannel(input); ok {
		return KindDualChannel, true
	}
	return 0, false
}

func (n *FilterNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stateA.reset()
	n.stateB.reset()
}

func (n *FilterNode) Clone() ProcessingNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &FilterNode{
		baseNode:      baseNode{id: n.id, state: n.state},
		kind:          n.kind,
		centerHz:      n.centerHz,
		bandwidthHz:   n.bandwidthHz,
		cutoffHz:      n.cutoffHz,
		targetChannel: n.targetChannel,
	}
}

func (n *FilterNode) SupportsHotReload() bool { return true }

func (n *FilterNode) UpdateConfig(parameters map[string]any) (bool, error) {
	if rawKind, ok := parameters["kind"]; ok {
		if kindStr, _ := rawKind.(string); kindStr != n.kind.String() {
			return false, nil // changing kind requires reconstruction
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	changed := false
	if raw, ok := parameters["center_hz"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, errors.Newf("filter: center_hz must be numeric").
				Component("procgraph").Category(errors.CategoryValidation).
				NodeContext(n.id, n.Type()).Build()
		}
		n.centerHz = v
		changed = true
	}
	if raw, ok := parameters["bandwidth_hz"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, errors.Newf("filter: bandwidth_hz must be numeric").
				Component("procgraph").Category(errors.CategoryValidation).
				NodeContext(n.id, n.Type()).Build()
		}
		n.bandwidthHz = v
		changed = true
	}
	if raw, ok := parameters["cutoff_hz"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, errors.Newf("filter: cutoff_hz must be numeric").
				Component("procgraph").Category(errors.CategoryValidation).
				NodeContext(n.id, n.Type()).Build()
		}
		n.cutoffHz = v
		changed = true
	}

	if changed {
		n.coeffs = biquadCoeffs{} // force recompute on next Process
	}
	return true, nil
}

func (n *FilterNode) Parameters() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return map[string]any{
		"kind":          n.kind.String(),
		"center_hz":     n.centerHz,
		"bandwidth_hz":  n.bandwidthHz,
		"cutoff_hz":     n.cutoffHz,
		"target_channel": n.targetChannel,
	}
}
