package computing

import (
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// refTemperatureC is the calibration reference temperature used by the
// temperature-compensation correction. 25C is the conventional lab
// reference for photoacoustic calibration curves.
const refTemperatureC = 25.0

// ConcentrationNode maps a peak amplitude into a gas concentration in
// ppm via a degree-4 calibration polynomial, pass-through in the
// dataflow sense. Multiple instances may share one graph, each reading
// a distinct PeakFinder's result and publishing under its own id (spec:
// "never under the source peak finder's id").
type ConcentrationNode struct {
	id string

	mu                     sync.Mutex
	state                  *pastate.State
	sourcePeakFinderID     string
	polynomial             [5]float64
	minAmplitude           float64
	temperatureCompensated bool
	spectralLineID         string
}

// NewConcentrationNode creates a Concentration node with the given
// calibration polynomial (ascending powers of amplitude).
func NewConcentrationNode(id string, polynomial [5]float64) *ConcentrationNode {
	return &ConcentrationNode{id: id, polynomial: polynomial}
}

func (n *ConcentrationNode) WithPeakFinderSource(sourceID string) *ConcentrationNode {
	n.sourcePeakFinderID = sourceID
	return n
}

func (n *ConcentrationNode) WithMinAmplitudeThreshold(min float64) *ConcentrationNode {
	n.minAmplitude = min
	return n
}

func (n *ConcentrationNode) WithTemperatureCompensation(enabled bool) *ConcentrationNode {
	n.temperatureCompensated = enabled
	return n
}

func (n *ConcentrationNode) WithSpectralLineID(id string) *ConcentrationNode {
	n.spectralLineID = id
	return n
}

func (n *ConcentrationNode) ID() string   { return n.id }
func (n *ConcentrationNode) Type() string { return "concentration" }

func (n *ConcentrationNode) BindSharedState(state *pastate.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

func (n *ConcentrationNode) SharedState() *pastate.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// AcceptsInput accepts any ProcessingData kind: Concentration observes
// the shared state, not the frame's contents.
func (n *ConcentrationNode) AcceptsInput(procgraph.ProcessingData) bool { return true }

func (n *ConcentrationNode) OutputType(input procgraph.ProcessingData) (procgraph.Kind, bool) {
	return input.Kind(), true
}

// horner evaluates Σ c[i]*x^i via Horner's method.
func horner(c [5]float64, x float64) float64 {
	result := c[4]
	for i := 3; i >= 0; i-- {
		result = result*x + c[i]
	}
	return result
}

// Process resolves the bound peak source, evaluates the calibration
// polynomial, applies temperature compensation if enabled, and
// publishes a ConcentrationResult under its own id. Returns input
// unchanged regardless of outcome (spec property 5).
func (n *ConcentrationNode) Process(input procgraph.ProcessingData) (procgraph.ProcessingData, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == nil {
		return input, nil
	}

	freq, amp, ok := n.resolvePeakLocked()
	if !ok || amp < n.minAmplitude {
		return input, nil
	}

	ppm := horner(n.polynomial, amp)
	if n.temperatureCompensated {
		if tempC, known := n.state.AmbientTemperature(); known {
			ppm *= (refTemperatureC + 273.15) / (tempC + 273.15)
		}
	}

	n.state.PutConcentrationResult(n.id, pastate.ConcentrationResult{
		PPM:                    ppm,
		SourcePeakFinderID:     n.sourcePeakFinderID,
		SourceFrequency:        freq,
		SourceAmplitude:        amp,
		PolynomialCoefficients: n.polynomial,
		SpectralLineID:         n.spectralLineID,
		TemperatureCompensated: n.temperatureCompensated,
		Timestamp:              time.Now(),
	})

	return input, nil
}

// resolvePeakLocked prefers the bound source peak finder's result,
// falling back to the legacy flat mirror when unbound or absent. Called
// with n.mu held.
func (n *ConcentrationNode) resolvePeakLocked() (frequency, amplitude float64, ok bool) {
	if n.sourcePeakFinderID != "" {
		if r, found := n.state.PeakResult(n.sourcePeakFinderID); found {
			return r.Frequency, r.Amplitude, true
		}
	}
	freq, amp, known := n.state.LegacyPeak()
	return freq, amp, known
}

func (n *ConcentrationNode) Reset() {}

func (n *ConcentrationNode) Clone() procgraph.ProcessingNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	clone := NewConcentrationNode(n.id, n.polynomial)
	clone.sourcePeakFinderID = n.sourcePeakFinderID
	clone.minAmplitude = n.minAmplitude
	clone.temperatureCompensated = n.temperatureCompensated
	clone.spectralLineID = n.spectralLineID
	return clone
}

func (n *ConcentrationNode) SupportsHotReload() bool { return true }

func (n *ConcentrationNode) UpdateConfig(parameters map[string]any) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if raw, ok := parameters["polynomial_coefficients"]; ok {
		coeffs, err := asPolynomial(raw)
		if err != nil {
			return false, validationErr(n.id, n.Type(), err.Error())
		}
		n.polynomial = coeffs
	}
	if raw, ok := parameters["min_amplitude_threshold"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, n.Type(), "min_amplitude_threshold must be numeric")
		}
		n.minAmplitude = v
	}
	if raw, ok := parameters["temperature_compensation"]; ok {
		v, ok := raw.(bool)
		if !ok {
			return false, validationErr(n.id, n.Type(), "temperature_compensation must be a bool")
		}
		n.temperatureCompensated = v
	}
	if raw, ok := parameters["spectral_line_id"]; ok {
		v, ok := raw.(string)
		if !ok {
			return false, validationErr(n.id, n.Type(), "spectral_line_id must be a string")
		}
		n.spectralLineID = v
	}
	if raw, ok := parameters["source_peak_finder_id"]; ok {
		v, ok := raw.(string)
		if !ok {
			return false, validationErr(n.id, n.Type(), "source_peak_finder_id must be a string")
		}
		n.sourcePeakFinderID = v
	}

	return true, nil
}

func asPolynomial(raw any) ([5]float64, error) {
	var out [5]float64
	items, ok := raw.([]any)
	if !ok {
		return out, errors.NewStd("polynomial_coefficients must be a 5-element array")
	}
	if len(items) != 5 {
		return out, errors.NewStd("polynomial_coefficients must have exactly 5 elements")
	}
	for i, item := range items {
		v, ok := asFloat64(item)
		if !ok {
			return out, errors.NewStd("polynomial_coefficients elements must be numeric")
		}
		out[i] = v
	}
	return out, nil
}

func (n *ConcentrationNode) Parameters() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return map[string]any{
		"source_peak_finder_id":   n.sourcePeakFinderID,
		"polynomial_coefficients": n.polynomial,
		"min_amplitude_threshold": n.minAmplitude,
		"temperature_compensation": n.temperatureCompensated,
		"spectral_line_id":        n.spectralLineID,
	}
}

func init() {
	procgraph.RegisterNodeFactory("concentration", func(id string, p map[string]any) (procgraph.ProcessingNode, error) {
		var coeffs [5]float64
		if raw, ok := p["polynomial_coefficients"]; ok {
			parsed, err := asPolynomial(raw)
			if err != nil {
				return nil, validationErr(id, "concentration", err.Error())
			}
			coeffs = parsed
		}
		node := NewConcentrationNode(id, coeffs)
		if src, ok := p["source_peak_finder_id"].(string); ok {
			node.WithPeakFinderSource(src)
		}
		if v, ok := asFloat64(p["min_amplitude_threshold"]); ok {
			node.WithMinAmplitudeThreshold(v)
		}
		if v, ok := p["temperature_compensation"].(bool); ok {
			node.WithTemperatureCompensation(v)
		}
		if v, ok := p["spectral_line_id"].(string); ok {
			node.WithSpectralLineID(v)
		}
		return node, nil
	})
}
