// Package computing implements the analytical computing nodes:
// PeakFinder performs a spectral estimate over the current signal and
// Concentration maps a detected peak amplitude to a gas concentration
// in ppm via a calibration polynomial. Both are pass-through in the
// dataflow sense — they observe a frame and publish a side-effect into
// the shared analytical state, never altering the frame itself.
package computing

import (
	"math"
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// PeakFinderNode locates the dominant spectral component within a
// configured band [lowHz, highHz] using a Hann-windowed FFT, optionally
// smooths it across frames with an exponential filter, and publishes a
// pastate.PeakResult under its own id.
type PeakFinderNode struct {
	id string

	mu        sync.Mutex
	state     *pastate.State
	lowHz     float64
	highHz    float64
	threshold float64
	smoothing float64

	haveSmoothed  bool
	smoothedFreq  float64
	smoothedAmp   float64
	fft           *fourier.FFT
	fftLen        int
	window        []float64
}

// NewPeakFinderNode creates a PeakFinder node over [lowHz, highHz],
// ignoring peaks below threshold amplitude, smoothing across frames
// with coefficient smoothing (0 disables smoothing).
func NewPeakFinderNode(id string, lowHz, highHz, threshold, smoothing float64) *PeakFinderNode {
	return &PeakFinderNode{
		id:        id,
		lowHz:     lowHz,
		highHz:    highHz,
		threshold: threshold,
		smoothing: smoothing,
	}
}

func (n *PeakFinderNode) ID() string   { return n.id }
func (n *PeakFinderNode) Type() string { return "peak_finder" }

func (n *PeakFinderNode) BindSharedState(state *pastate.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

func (n *PeakFinderNode) SharedState() *pastate.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *PeakFinderNode) AcceptsInput(input procgraph.ProcessingData) bool {
	_, ok := input.SingleChannel()
	return ok
}

func (n *PeakFinderNode) OutputType(input procgraph.ProcessingData) (procgraph.Kind, bool) {
	if !n.AcceptsInput(input) {
		return 0, false
	}
	return procgraph.KindSingleChannel, true
}

func (n *PeakFinderNode) ensureFFT(length int) *fourier.FFT {
	if n.fft == nil || n.fftLen != length {
		n.fft = fourier.NewFFT(length)
		n.fftLen = length
		n.window = hannWindow(length)
	}
	return n.fft
}

func hannWindow(length int) []float64 {
	w := make([]float64, length)
	if length == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(length-1))
	}
	return w
}

// Process performs the spectral estimate and publishes the result, then
// returns input unchanged (pass-through invariance, spec property 5).
func (n *PeakFinderNode) Process(input procgraph.ProcessingData) (procgraph.ProcessingData, error) {
	sc, ok := input.SingleChannel()
	if !ok {
		return procgraph.ProcessingData{}, nodeErr(n.id, n.Type(),
			errors.NewStd("peak_finder requires SingleChannel input"))
	}
	if len(sc.Samples) == 0 || sc.SampleRate <= 0 {
		return input, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	length := len(sc.Samples)
	fft := n.ensureFFT(length)

	windowed := make([]float64, length)
	for i, s := range sc.Samples {
		windowed[i] = float64(s) * n.window[i]
	}

	coeffs := fft.Coefficients(nil, windowed)

	binHz := float64(sc.SampleRate) / float64(length)
	loBin := int(math.Floor(n.lowHz / binHz))
	hiBin := int(math.Ceil(n.highHz / binHz))
	if loBin < 0 {
		loBin = 0
	}
	if hiBin > len(coeffs)-1 {
		hiBin = len(coeffs) - 1
	}

	bestBin := loBin
	bestMag := 0.0
	bandTotal := 0.0
	for b := loBin; b <= hiBin; b++ {
		mag := cmplx.Abs(coeffs[b])
		bandTotal += mag
		if mag > bestMag {
			bestMag = mag
			bestBin = b
		}
	}

	freq := float64(bestBin) * binHz
	amp := bestMag * 2 / float64(length)

	coherence := 0.0
	if bandTotal > 0 {
		coherence = bestMag / bandTotal
	}

	if n.smoothing > 0 && n.haveSmoothed {
		freq = n.smoothing*n.smoothedFreq + (1-n.smoothing)*freq
		amp = n.smoothing*n.smoothedAmp + (1-n.smoothing)*amp
	}
	n.smoothedFreq, n.smoothedAmp, n.haveSmoothed = freq, amp, true

	if amp >= n.threshold && n.state != nil {
		n.state.PutPeakResult(n.id, pastate.PeakResult{
			Frequency:      freq,
			Amplitude:      amp,
			CoherenceScore: coherence,
			Timestamp:      time.Now(),
		})
	}

	return input, nil
}

func (n *PeakFinderNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.haveSmoothed = false
	n.smoothedFreq = 0
	n.smoothedAmp = 0
}

func (n *PeakFinderNode) Clone() procgraph.ProcessingNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NewPeakFinderNode(n.id, n.lowHz, n.highHz, n.threshold, n.smoothing)
}

func (n *PeakFinderNode) SupportsHotReload() bool { return true }

func (n *PeakFinderNode) UpdateConfig(parameters map[string]any) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if raw, ok := parameters["low_hz"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, n.Type(), "low_hz must be numeric")
		}
		n.lowHz = v
	}
	if raw, ok := parameters["high_hz"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, n.Type(), "high_hz must be numeric")
		}
		n.highHz = v
	}
	if raw, ok := parameters["threshold"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, n.Type(), "threshold must be numeric")
		}
		n.threshold = v
	}
	if raw, ok := parameters["smoothing"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, n.Type(), "smoothing must be numeric")
		}
		n.smoothing = v
	}
	return true, nil
}

func (n *PeakFinderNode) Parameters() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return map[string]any{
		"low_hz":    n.lowHz,
		"high_hz":   n.highHz,
		"threshold": n.threshold,
		"smoothing": n.smoothing,
	}
}

func init() {
	procgraph.RegisterNodeFactory("peak_finder", func(id string, p map[string]any) (procgraph.ProcessingNode, error) {
		low, _ := asFloat64(p["low_hz"])
		high, _ := asFloat64(p["high_hz"])
		threshold, _ := asFloat64(p["threshold"])
		smoothing, _ := asFloat64(p["smoothing"])
		return NewPeakFinderNode(id, low, high, threshold, smoothing), nil
	})
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func nodeErr(nodeID, nodeType string, err error) error {
	return errors.New(err).
		Component("computing").
		Category(errors.CategoryTypeMismatch).
		NodeContext(nodeID, nodeType).
		Build()
}

func validationErr(nodeID, nodeType, message string) error {
	return errors.Newf("%s", message).
		Component("computing").
		Category(errors.CategoryValidation).
		NodeContext(nodeID, nodeType).
		Build()
}
