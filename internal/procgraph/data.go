// Package procgraph implements the processing graph: a directed acyclic
// dataflow of typed nodes, dynamically constructible from configuration,
// hot-reloadable at the node-parameter level, and instrumented with live
// per-node and per-graph statistics.
package procgraph

import (
	"maps"
	"slices"

	"github.com/sctg-development/photoacoustic-go/internal/audiobus"
)

// Kind tags which variant of ProcessingData a value holds.
type Kind int

const (
	KindAudioFrame Kind = iota
	KindDualChannel
	KindSingleChannel
	KindPhotoacousticResult
)

func (k Kind) String() string {
	switch k {
	case KindAudioFrame:
		return "AudioFrame"
	case KindDualChannel:
		return "DualChannel"
	case KindSingleChannel:
		return "SingleChannel"
	case KindPhotoacousticResult:
		return "PhotoacousticResult"
	default:
		return "Unknown"
	}
}

// Metadata carries timing and provenance information through a frame's
// entire traversal of the graph.
type Metadata struct {
	OriginalFrameNumber uint64
	OriginalTimestampMs int64
	SampleRate          int
	ProcessingSteps     []string
	TotalLatencyUs      int64
}

func (m Metadata) clone() Metadata {
	m.ProcessingSteps = slices.Clone(m.ProcessingSteps)
	return m
}

// DualChannelData is the split form of an AudioFrame: two equal-length
// channels plus the frame's identity.
type DualChannelData struct {
	A, B        []float32
	SampleRate  int
	TimestampMs int64
	FrameNumber uint64
}

// SingleChannelData is a frame after channel selection, mixing, or
// filtering has collapsed it to one channel.
type SingleChannelData struct {
	Samples     []float32
	SampleRate  int
	TimestampMs int64
	FrameNumber uint64
}

// PhotoacousticResult is the terminal form of a frame's traversal,
// carrying the final signal and the accumulated processing metadata.
type PhotoacousticResult struct {
	Signal   []float32
	Metadata Metadata
}

// ProcessingData is the sum type every node consumes and produces. Exactly
// one of the typed fields is meaningful, selected by Kind. Use the
// constructor functions below rather than building a ProcessingData
// literal directly.
type ProcessingData struct {
	kind          Kind
	audioFrame    audiobus.AudioFrame
	dualChannel   DualChannelData
	singleChannel SingleChannelData
	result        PhotoacousticResult
}

// NewAudioFrameData wraps an AudioFrame as ProcessingData.
func NewAudioFrameData(f audiobus.AudioFrame) ProcessingData {
	return ProcessingData{kind: KindAudioFrame, audioFrame: f}
}

// NewDualChannelData wraps a DualChannelData as ProcessingData.
func NewDualChannelData(d DualChannelData) ProcessingData {
	return ProcessingData{kind: KindDualChannel, dualChannel: d}
}

// NewSingleChannelData wraps a SingleChannelData as ProcessingData.
func NewSingleChannelData(s SingleChannelData) ProcessingData {
	return ProcessingData{kind: KindSingleChannel, singleChannel: s}
}

// NewPhotoacousticResultData wraps a PhotoacousticResult as ProcessingData.
func NewPhotoacousticResultData(r PhotoacousticResult) ProcessingData {
	return ProcessingData{kind: KindPhotoacousticResult, result: r}
}

// Kind reports which variant this value holds.
func (d ProcessingData) Kind() Kind { return d.kind }

// AudioFrame returns the AudioFrame payload and whether Kind() ==
// KindAudioFrame.
func (d ProcessingData) AudioFrame() (audiobus.AudioFrame, bool) {
	return d.audioFrame, d.kind == KindAudioFrame
}

// DualChannel returns the DualChannelData payload and whether Kind() ==
// KindDualChannel.
func (d ProcessingData) DualChannel() (DualChannelData, bool) {
	return d.dualChannel, d.kind == KindDualChannel
}

// SingleChannel returns the SingleChannelData payload and whether Kind()
// == KindSingleChannel.
func (d ProcessingData) SingleChannel() (SingleChannelData, bool) {
	return d.singleChannel, d.kind == KindSingleChannel
}

// Result returns the PhotoacousticResult payload and whether Kind() ==
// KindPhotoacousticResult.
func (d ProcessingData) Result() (PhotoacousticResult, bool) {
	return d.result, d.kind == KindPhotoacousticResult
}

// Clone returns a value with independently-owned backing slices, so the
// executor can hand the same logical value to multiple downstream
// consumers without aliasing.
func (d ProcessingData) Clone() ProcessingData {
	switch d.kind {
	case KindAudioFrame:
		return NewAudioFrameData(d.audioFrame.Clone())
	case KindDualChannel:
		dc := d.dualChannel
		dc.A = slices.Clone(dc.A)
		dc.B = slices.Clone(dc.B)
		return NewDualChannelData(dc)
	case KindSingleChannel:
		sc := d.singleChannel
		sc.Samples = slices.Clone(sc.Samples)
		return NewSingleChannelData(sc)
	case KindPhotoacousticResult:
		r := d.result
		r.Signal = slices.Clone(r.Signal)
		r.Metadata = r.Metadata.clone()
		return NewPhotoacousticResultData(r)
	default:
		return d
	}
}

// Equal reports whether two ProcessingData values carry the same kind and
// contents. Used by the pass-through invariance tests for computing
// nodes (spec property 5: PeakFinder/Concentration must not alter the
// frame they observe).
func (d ProcessingData) Equal(other ProcessingData) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case KindAudioFrame:
		a, b := d.audioFrame, other.audioFrame
		return a.SampleRate == b.SampleRate && a.TimestampMs == b.TimestampMs &&
			a.FrameNumber == b.FrameNumber &&
			slices.Equal(a.A, b.A) && slices.Equal(a.B, b.B)
	case KindDualChannel:
		a, b := d.dualChannel, other.dualChannel
		return a.SampleRate == b.SampleRate && a.TimestampMs == b.TimestampMs &&
			a.FrameNumber == b.FrameNumber &&
			slices.Equal(a.A, b.A) && slices.Equal(a.B, b.B)
	case KindSingleChannel:
		a, b := d.singleChannel, other.singleChannel
		return a.SampleRate == b.SampleRate && a.TimestampMs == b.TimestampMs &&
			a.FrameNumber == b.FrameNumber && slices.Equal(a.Samples, b.Samples)
	case KindPhotoacousticResult:
		a, b := d.result, other.result
		return slices.Equal(a.Signal, b.Signal) && metadataEqual(a.Metadata, b.Metadata)
	default:
		return true
	}
}

func metadataEqual(a, b Metadata) bool {
	return a.OriginalFrameNumber == b.OriginalFrameNumber &&
		a.OriginalTimestampMs == b.OriginalTimestampMs &&
		a.SampleRate == b.SampleRate &&
		a.TotalLatencyUs == b.TotalLatencyUs &&
		slices.Equal(a.ProcessingSteps, b.ProcessingSteps)
}

// asDualChannel converts an AudioFrame or an already-split DualChannel
// value into DualChannelData, auto-converting per the ChannelSelector
// contract ("Input must be DualChannel (or AudioFrame, auto-converted)").
func asDualChannel(d ProcessingData) (DualChannelData, bool) {
	if dc, ok := d.DualChannel(); ok {
		return dc, true
	}
	if af, ok := d.AudioFrame(); ok {
		return DualChannelData{
			A:           af.A,
			B:           af.B,
			SampleRate:  af.SampleRate,
			TimestampMs: af.TimestampMs,
			FrameNumber: af.FrameNumber,
		}, true
	}
	return DualChannelData{}, false
}

// cloneParameters returns a shallow copy of a node-type parameter blob,
// suitable for embedding in a serializable graph view without aliasing
// the node's live configuration.
func cloneParameters(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	maps.Copy(out, p)
	return out
}
