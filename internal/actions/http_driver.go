package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	pherrors "github.com/sctg-development/photoacoustic-go/internal/errors"
)

// HTTPDriverConfig configures an HTTPDriver.
type HTTPDriverConfig struct {
	URL            string
	RetryCount     int
	Timeout        time.Duration // clamped to [1s, 60s]
	AuthHeader     string
	CustomHeaders  map[string]string
	BufferCapacity int
}

// HTTPDriver posts MeasurementData/AlertData to a configured URL, with
// the retry/timeout discipline shared by every driver in this package.
type HTTPDriver struct {
	baseDriver

	mu     sync.Mutex
	cfg    HTTPDriverConfig
	client *http.Client
}

// NewHTTPDriver creates an HTTP callback driver.
func NewHTTPDriver(cfg HTTPDriverConfig) *HTTPDriver {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.Timeout < time.Second {
		cfg.Timeout = time.Second
	}
	if cfg.Timeout > 60*time.Second {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPDriver{
		baseDriver: newBaseDriver(cfg.BufferCapacity),
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *HTTPDriver) DriverType() string { return "http" }

func (d *HTTPDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStatus("Connected")
	return nil
}

func (d *HTTPDriver) Status() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"driver_type":       d.DriverType(),
		"connection_status": d.ConnectionStatus(),
		"url":               d.cfg.URL,
	}
}

func (d *HTTPDriver) Shutdown(ctx context.Context) error { return nil }

func (d *HTTPDriver) UpdateAction(ctx context.Context, data MeasurementData) error {
	err := d.postWithRetry(ctx, func(attempt int) ([]byte, error) {
		payload := displayUpdatePayload{
			Type:             "display_update",
			ConcentrationPPM: data.Concentration,
			SourceNodeID:     data.NodeID,
			PeakAmplitude:    data.Amplitude,
			PeakFrequency:    data.Frequency,
			Timestamp:        data.Timestamp.Unix(),
			Metadata:         data.Metadata,
			RetryAttempt:     attempt,
		}
		return json.Marshal(payload)
	})
	d.mu.Lock()
	d.recordHistory(data)
	d.mu.Unlock()
	return err
}

func (d *HTTPDriver) ShowAlert(ctx context.Context, alert AlertData) error {
	return d.postWithRetry(ctx, func(attempt int) ([]byte, error) {
		payload := alertPayload{
			Type:         "alert",
			AlertType:    alert.AlertType,
			Severity:     alert.Severity,
			Message:      alert.Message,
			Data:         alert.Data,
			Timestamp:    alert.Timestamp.Unix(),
			RetryAttempt: attempt,
		}
		return json.Marshal(payload)
	})
}

func (d *HTTPDriver) ClearAction(ctx context.Context) error {
	now := time.Now().Unix()
	return d.postWithRetry(ctx, func(attempt int) ([]byte, error) {
		payload := clearActionPayload{Type: "clear_action", Timestamp: now, RetryAttempt: attempt}
		return json.Marshal(payload)
	})
}

// postWithRetry calls build to marshal the outgoing payload for each
// attempt (so it can echo the attempt number in retry_attempt), posts it,
// and tracks connection_status across the whole call per S6.
func (d *HTTPDriver) postWithRetry(ctx context.Context, build func(attempt int) ([]byte, error)) error {
	d.mu.Lock()
	cfg := d.cfg
	client := d.client
	d.mu.Unlock()

	err := withRetry(ctx, cfg.RetryCount, func(attempt int) error {
		body, err := build(attempt)
		if err != nil {
			return err
		}
		return d.post(ctx, client, cfg, body)
	}, func(attempt int, attemptErr error) {
		d.mu.Lock()
		d.setStatus(fmt.Sprintf("Error: attempt %d: %v", attempt, attemptErr))
		d.mu.Unlock()
	})

	d.mu.Lock()
	if err == nil {
		d.setStatus("Connected")
	} else {
		d.setStatus(fmt.Sprintf("Error: %v", err))
	}
	d.mu.Unlock()

	if err != nil {
		return driverErr(d.DriverType(), pherrors.CategoryDriverPersistent, err)
	}
	return nil
}

func (d *HTTPDriver) post(ctx context.Context, client *http.Client, cfg HTTPDriverConfig, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.AuthHeader != "" {
		req.Header.Set("Authorization", cfg.AuthHeader)
	}
	for k, v := range cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http driver: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func driverErr(driverType string, category pherrors.ErrorCategory, err error) error {
	return pherrors.New(err).
		Component("actions").
		Category(category).
		Context("driver_type", driverType).
		Build()
}
