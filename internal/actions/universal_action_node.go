package actions

import (
	"context"
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// UniversalActionNode watches a set of peak-finder or concentration node
// ids, appends a MeasurementData to its own ring buffer on every frame,
// and forwards throttled updates (and threshold-crossing alerts) to an
// owned Driver. It is pass-through in the dataflow sense.
type UniversalActionNode struct {
	id string

	mu                    sync.Mutex
	state                 *pastate.State
	driver                Driver
	monitoredIDs          []string
	updateIntervalMs      int64
	concentrationThreshold float64
	amplitudeThreshold    float64
	criticalMultiplier    float64 // 0 disables escalation to critical

	history     *Ring
	lastCallAt  time.Time
	alertActive bool
}

// NewUniversalActionNode creates an action node forwarding to driver.
func NewUniversalActionNode(id string, driver Driver, bufferCapacity int) *UniversalActionNode {
	return &UniversalActionNode{
		id:      id,
		driver:  driver,
		history: NewRing(bufferCapacity),
	}
}

func (n *UniversalActionNode) WithMonitoredIDs(ids ...string) *UniversalActionNode {
	n.monitoredIDs = ids
	return n
}

func (n *UniversalActionNode) WithUpdateInterval(d time.Duration) *UniversalActionNode {
	n.updateIntervalMs = d.Milliseconds()
	return n
}

func (n *UniversalActionNode) WithConcentrationThreshold(v float64) *UniversalActionNode {
	n.concentrationThreshold = v
	return n
}

func (n *UniversalActionNode) WithAmplitudeThreshold(v float64) *UniversalActionNode {
	n.amplitudeThreshold = v
	return n
}

func (n *UniversalActionNode) WithCriticalMultiplier(v float64) *UniversalActionNode {
	n.criticalMultiplier = v
	return n
}

func (n *UniversalActionNode) ID() string   { return n.id }
func (n *UniversalActionNode) Type() string { return "universal_action" }

func (n *UniversalActionNode) BindSharedState(state *pastate.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state = state
}

func (n *UniversalActionNode) SharedState() *pastate.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *UniversalActionNode) AcceptsInput(procgraph.ProcessingData) bool { return true }

func (n *UniversalActionNode) OutputType(input procgraph.ProcessingData) (procgraph.Kind, bool) {
	return input.Kind(), true
}

// Process reads the latest value for each monitored id, appends to the
// history ring, and — if the throttle interval has elapsed — forwards to
// the driver and evaluates alert thresholds. Returns input unchanged.
func (n *UniversalActionNode) Process(input procgraph.ProcessingData) (procgraph.ProcessingData, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == nil || len(n.monitoredIDs) == 0 {
		return input, nil
	}

	for _, id := range n.monitoredIDs {
		data, ok := n.resolveLocked(id)
		if !ok {
			continue
		}
		n.history.Push(data)

		now := time.Now()
		if n.updateIntervalMs > 0 && !n.lastCallAt.IsZero() &&
			now.Sub(n.lastCallAt) < time.Duration(n.updateIntervalMs)*time.Millisecond {
			continue
		}
		n.lastCallAt = now

		if n.driver != nil {
			ctx := context.Background()
			if err := n.driver.UpdateAction(ctx, data); err != nil {
				return input, nodeErr(n.id, n.Type(), err)
			}
			n.evaluateThresholdsLocked(ctx, data)
		}
	}

	return input, nil
}

func (n *UniversalActionNode) resolveLocked(id string) (MeasurementData, bool) {
	if result, ok := n.state.ConcentrationResult(id); ok {
		return MeasurementData{
			NodeID:        id,
			Concentration: result.PPM,
			Amplitude:     result.SourceAmplitude,
			Frequency:     result.SourceFrequency,
			Timestamp:     result.Timestamp,
		}, true
	}
	if result, ok := n.state.PeakResult(id); ok {
		return MeasurementData{
			NodeID:    id,
			Amplitude: result.Amplitude,
			Frequency: result.Frequency,
			Timestamp: result.Timestamp,
		}, true
	}
	return MeasurementData{}, false
}

func (n *UniversalActionNode) evaluateThresholdsLocked(ctx context.Context, data MeasurementData) {
	concentrationCrossed := n.concentrationThreshold > 0 && data.Concentration >= n.concentrationThreshold
	amplitudeCrossed := n.amplitudeThreshold > 0 && data.Amplitude >= n.amplitudeThreshold

	if !concentrationCrossed && !amplitudeCrossed {
		if n.alertActive {
			n.alertActive = false
			_ = n.driver.ClearAction(ctx)
		}
		return
	}

	alertType := "amplitude_threshold"
	value, threshold := data.Amplitude, n.amplitudeThreshold
	if concentrationCrossed {
		alertType = "concentration_threshold"
		value, threshold = data.Concentration, n.concentrationThreshold
	}

	severity := SeverityWarning
	if n.criticalMultiplier > 0 &&
		(data.Concentration >= n.concentrationThreshold*n.criticalMultiplier ||
			data.Amplitude >= n.amplitudeThreshold*n.criticalMultiplier) {
		severity = SeverityCritical
	}

	n.alertActive = true
	_ = n.driver.ShowAlert(ctx, AlertData{
		AlertType: alertType,
		Severity:  severity,
		Message:   "threshold crossed",
		Data: map[string]any{
			"node_id":   data.NodeID,
			"value":     value,
			"threshold": threshold,
		},
		Timestamp: data.Timestamp,
	})
}

// History returns the node's own ring buffer, independent of the
// driver's internally recorded history.
func (n *UniversalActionNode) History(limit int) []MeasurementData {
	return n.history.Recent(limit)
}

func (n *UniversalActionNode) HistoryStats() map[string]any {
	return map[string]any{
		"buffer_capacity": n.history.Capacity(),
		"buffer_len":      n.history.Len(),
	}
}

func (n *UniversalActionNode) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastCallAt = time.Time{}
	n.alertActive = false
}

func (n *UniversalActionNode) Clone() procgraph.ProcessingNode {
	n.mu.Lock()
	defer n.mu.Unlock()
	clone := NewUniversalActionNode(n.id, n.driver, n.history.Capacity())
	clone.monitoredIDs = append([]string(nil), n.monitoredIDs...)
	clone.updateIntervalMs = n.updateIntervalMs
	clone.concentrationThreshold = n.concentrationThreshold
	clone.amplitudeThreshold = n.amplitudeThreshold
	clone.criticalMultiplier = n.criticalMultiplier
	return clone
}

func (n *UniversalActionNode) SupportsHotReload() bool { return true }

func (n *UniversalActionNode) UpdateConfig(parameters map[string]any) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if raw, ok := parameters["monitored_ids"]; ok {
		ids, err := asStringSlice(raw)
		if err != nil {
			return false, validationErr(n.id, err.Error())
		}
		n.monitoredIDs = ids
	}
	if raw, ok := parameters["update_interval_ms"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, "update_interval_ms must be numeric")
		}
		n.updateIntervalMs = int64(v)
	}
	if raw, ok := parameters["concentration_threshold"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, "concentration_threshold must be numeric")
		}
		n.concentrationThreshold = v
	}
	if raw, ok := parameters["amplitude_threshold"]; ok {
		v, ok := asFloat64(raw)
		if !ok {
			return false, validationErr(n.id, "amplitude_threshold must be numeric")
		}
		n.amplitudeThreshold = v
	}
	return true, nil
}

func (n *UniversalActionNode) Parameters() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return map[string]any{
		"monitored_ids":           n.monitoredIDs,
		"update_interval_ms":      n.updateIntervalMs,
		"concentration_threshold": n.concentrationThreshold,
		"amplitude_threshold":     n.amplitudeThreshold,
	}
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

func asStringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, errors.NewStd("monitored_ids must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.NewStd("monitored_ids elements must be strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func nodeErr(nodeID, nodeType string, err error) error {
	return errors.New(err).
		Component("actions").
		Category(errors.CategoryNodeInternal).
		NodeContext(nodeID, nodeType).
		Build()
}

func validationErr(nodeID, message string) error {
	return errors.Newf("%s", message).
		Component("actions").
		Category(errors.CategoryValidation).
		NodeContext(nodeID, "universal_action").
		Build()
}
