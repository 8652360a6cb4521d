// Package actions implements the action driver subsystem: the
// UniversalActionNode watches measurement and concentration results in
// the shared analytical state and forwards them to a pluggable Driver
// (HTTP callback, Redis, Kafka, or an embedded Lua interpreter), which is
// responsible for getting the data to the outside world.
package actions

import (
	"context"
	"time"
)

// MeasurementData is one sample forwarded to a driver's UpdateAction,
// either a routine update or the one that crossed an alert threshold. Field
// tags match the wire shape of a "display_update" action-sink payload.
type MeasurementData struct {
	Concentration float64           `json:"concentration_ppm"`
	NodeID        string            `json:"source_node_id"`
	Amplitude     float64           `json:"peak_amplitude"`
	Frequency     float64           `json:"peak_frequency"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AlertSeverity classifies an AlertData event.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertData describes a threshold crossing passed to a driver's ShowAlert.
// Field tags match the wire shape of an "alert" action-sink payload.
type AlertData struct {
	AlertType string         `json:"alert_type"`
	Severity  AlertSeverity  `json:"severity"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// displayUpdatePayload is the wire shape every driver posts/publishes for
// a routine UpdateAction call, matching the "display_update" action-sink
// payload.
type displayUpdatePayload struct {
	Type             string            `json:"type"`
	ConcentrationPPM float64           `json:"concentration_ppm"`
	SourceNodeID     string            `json:"source_node_id"`
	PeakAmplitude    float64           `json:"peak_amplitude"`
	PeakFrequency    float64           `json:"peak_frequency"`
	Timestamp        int64             `json:"timestamp"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	RetryAttempt     int               `json:"retry_attempt,omitempty"`
}

// alertPayload is the wire shape every driver posts/publishes for
// ShowAlert, matching the "alert" action-sink payload.
type alertPayload struct {
	Type         string         `json:"type"`
	AlertType    string         `json:"alert_type"`
	Severity     AlertSeverity  `json:"severity"`
	Message      string         `json:"message"`
	Data         map[string]any `json:"data,omitempty"`
	Timestamp    int64          `json:"timestamp"`
	RetryAttempt int            `json:"retry_attempt,omitempty"`
}

// clearActionPayload is the wire shape every driver posts/publishes for
// ClearAction, matching the "clear_action" action-sink payload.
type clearActionPayload struct {
	Type         string `json:"type"`
	Timestamp    int64  `json:"timestamp"`
	RetryAttempt int    `json:"retry_attempt,omitempty"`
}

// Driver is the trait every action sink implements. Initialize is called
// once before first use; UpdateAction is called on every throttled tick;
// ShowAlert and ClearAction bracket a threshold crossing; Status/History/
// HistoryStats expose introspection for the web API; Shutdown releases
// any held resources.
type Driver interface {
	Initialize(ctx context.Context) error
	UpdateAction(ctx context.Context, data MeasurementData) error
	ShowAlert(ctx context.Context, alert AlertData) error
	ClearAction(ctx context.Context) error
	Status() map[string]any
	History(limit int) []MeasurementData
	HistoryStats() map[string]any
	DriverType() string
	SupportsRealtime() bool
	Shutdown(ctx context.Context) error
}

// baseDriver supplies the history bookkeeping shared by every concrete
// driver: a ring buffer of recent measurements and a connection-status
// string surfaced through Status(). Concrete drivers embed it and only
// implement the parts that actually talk to the outside world.
type baseDriver struct {
	history          *Ring
	connectionStatus string
}

func newBaseDriver(bufferCapacity int) baseDriver {
	return baseDriver{
		history:          NewRing(bufferCapacity),
		connectionStatus: "Disconnected",
	}
}

func (b *baseDriver) recordHistory(data MeasurementData) {
	b.history.Push(data)
}

func (b *baseDriver) History(limit int) []MeasurementData {
	return b.history.Recent(limit)
}

func (b *baseDriver) HistoryStats() map[string]any {
	return map[string]any{
		"buffer_capacity": b.history.Capacity(),
		"buffer_len":      b.history.Len(),
	}
}

func (b *baseDriver) SupportsRealtime() bool { return true }

func (b *baseDriver) setStatus(status string) { b.connectionStatus = status }

func (b *baseDriver) ConnectionStatus() string { return b.connectionStatus }
