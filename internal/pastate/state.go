// Package pastate holds the shared analytical state: the process-wide,
// reader-writer-guarded record that computing nodes publish peak and
// concentration results into, and that the web API, action nodes, and the
// Modbus register bridge read from.
package pastate

import (
	"sync"
	"time"
)

// PeakResult is the output of a PeakFinder node for one call.
type PeakResult struct {
	Frequency      float64
	Amplitude      float64
	CoherenceScore float64 // opaque confidence metric in [0,1]
	Timestamp      time.Time
	Metadata       map[string]string
}

// ConcentrationResult is the output of a Concentration node for one call.
type ConcentrationResult struct {
	PPM                    float64
	SourcePeakFinderID     string
	SourceFrequency        float64
	SourceAmplitude        float64
	PolynomialCoefficients [5]float64
	SpectralLineID         string // empty if unbound
	TemperatureCompensated bool
	Timestamp              time.Time
}

// State is the shared analytical state. The zero value is not ready to
// use (its result maps are nil); construct with New.
// Writers are computing nodes only; readers are the web API, action
// nodes, and the Modbus register bridge. Writes never perform I/O under
// the lock.
type State struct {
	mu sync.RWMutex

	peakResults          map[string]PeakResult
	concentrationResults map[string]ConcentrationResult

	// legacy flat fields mirror the most recently written value, for
	// clients that predate the per-node maps.
	peakFrequency    float64
	peakAmplitude    float64
	peakKnown        bool
	concentrationPPM float64

	lastUpdate time.Time

	// ambientTemperatureC is the most recently recorded ambient
	// temperature, used by Concentration nodes with
	// temperature_compensated set. Defaults to 25C (no-op compensation)
	// until a reading is recorded.
	ambientTemperatureC     float64
	ambientTemperatureKnown bool
}

// New returns an initialized, empty State.
func New() *State {
	return &State{
		peakResults:          make(map[string]PeakResult),
		concentrationResults: make(map[string]ConcentrationResult),
		peakFrequency:        0,
		peakAmplitude:        0,
		concentrationPPM:     0,
		ambientTemperatureC:  25,
	}
}

// PutPeakResult writes a PeakFinder node's result under nodeID and updates
// the legacy flat mirror.
func (s *State) PutPeakResult(nodeID string, r PeakResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peakResults[nodeID] = r
	s.peakFrequency = r.Frequency
	s.peakAmplitude = r.Amplitude
	s.peakKnown = true
	s.lastUpdate = r.Timestamp
}

// PeakResult returns the result stored under nodeID.
func (s *State) PeakResult(nodeID string) (PeakResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.peakResults[nodeID]
	return r, ok
}

// LegacyPeak returns the legacy flat peak_frequency/peak_amplitude mirror
// and whether any PeakFinder has ever written to this state.
func (s *State) LegacyPeak() (frequency, amplitude float64, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakFrequency, s.peakAmplitude, s.peakKnown
}

// PutConcentrationResult writes a Concentration node's result under
// nodeID (never under its source peak finder's id) and updates the
// legacy flat mirror.
func (s *State) PutConcentrationResult(nodeID string, r ConcentrationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.concentrationResults[nodeID] = r
	s.concentrationPPM = r.PPM
	s.lastUpdate = r.Timestamp
}

// ConcentrationResult returns the result stored under nodeID.
func (s *State) ConcentrationResult(nodeID string) (ConcentrationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.concentrationResults[nodeID]
	return r, ok
}

// LegacyConcentrationPPM returns the legacy flat concentration_ppm mirror.
func (s *State) LegacyConcentrationPPM() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.concentrationPPM
}

// LastUpdate returns the timestamp of the most recent write of any kind.
func (s *State) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// RecordAmbientTemperature records a fresh ambient temperature reading in
// degrees Celsius, consumed by Concentration nodes with
// temperature_compensated set.
func (s *State) RecordAmbientTemperature(celsius float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientTemperatureC = celsius
	s.ambientTemperatureKnown = true
}

// AmbientTemperature returns the most recently recorded ambient
// temperature and whether one has ever been recorded. Absent a reading it
// returns the 25C default, which makes temperature compensation a no-op.
func (s *State) AmbientTemperature() (celsius float64, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientTemperatureC, s.ambientTemperatureKnown
}

// Snapshot is a read-only copy of the whole state, suitable for the web
// API's JSON view.
type Snapshot struct {
	PeakResults          map[string]PeakResult
	ConcentrationResults map[string]ConcentrationResult
	PeakFrequency        float64
	PeakAmplitude        float64
	ConcentrationPPM     float64
	LastUpdate           time.Time
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peaks := make(map[string]PeakResult, len(s.peakResults))
	for k, v := range s.peakResults {
		peaks[k] = v
	}
	concentrations := make(map[string]ConcentrationResult, len(s.concentrationResults))
	for k, v := range s.concentrationResults {
		concentrations[k] = v
	}

	return Snapshot{
		PeakResults:          peaks,
		ConcentrationResults: concentrations,
		PeakFrequency:        s.peakFrequency,
		PeakAmplitude:        s.peakAmplitude,
		ConcentrationPPM:     s.concentrationPPM,
		LastUpdate:           s.lastUpdate,
	}
}
