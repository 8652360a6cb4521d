package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	pherrors "github.com/sctg-development/photoacoustic-go/internal/errors"
)

// RedisMode selects between publishing measurements to a pub/sub channel
// and writing them as key/value pairs with an optional TTL.
type RedisMode int

const (
	RedisPublish RedisMode = iota
	RedisKeyValue
)

// RedisDriverConfig configures a RedisDriver.
type RedisDriverConfig struct {
	Addr           string
	Password       string
	DB             int
	Mode           RedisMode
	Channel        string        // used by RedisPublish
	KeyPrefix      string        // used by RedisKeyValue
	TTL            time.Duration // 0 disables expiry, used by RedisKeyValue
	RetryCount     int
	Timeout        time.Duration
	BufferCapacity int
}

// RedisDriver publishes or writes measurement/alert data to Redis.
type RedisDriver struct {
	baseDriver

	mu     sync.Mutex
	cfg    RedisDriverConfig
	client *redis.Client
}

// NewRedisDriver creates a Redis driver. It does not connect until
// Initialize is called.
func NewRedisDriver(cfg RedisDriverConfig) *RedisDriver {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &RedisDriver{
		baseDriver: newBaseDriver(cfg.BufferCapacity),
		cfg:        cfg,
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.Timeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}),
	}
}

func (d *RedisDriver) DriverType() string { return "redis" }

func (d *RedisDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.client.Ping(ctx).Err(); err != nil {
		d.setStatus(fmt.Sprintf("Error: %v", err))
		return driverErr(d.DriverType(), pherrors.CategoryDriverTransient, err)
	}
	d.setStatus("Connected")
	return nil
}

func (d *RedisDriver) Status() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"driver_type":       d.DriverType(),
		"connection_status": d.ConnectionStatus(),
		"mode":              d.cfg.Mode,
	}
}

func (d *RedisDriver) Shutdown(ctx context.Context) error {
	return d.client.Close()
}

func (d *RedisDriver) UpdateAction(ctx context.Context, data MeasurementData) error {
	payload, err := json.Marshal(displayUpdatePayload{
		Type:             "display_update",
		ConcentrationPPM: data.Concentration,
		SourceNodeID:     data.NodeID,
		PeakAmplitude:    data.Amplitude,
		PeakFrequency:    data.Frequency,
		Timestamp:        data.Timestamp.Unix(),
		Metadata:         data.Metadata,
	})
	if err != nil {
		return err
	}

	err = withRetry(ctx, d.cfg.RetryCount, func(attempt int) error {
		return d.write(ctx, data.NodeID, payload)
	}, func(attempt int, attemptErr error) {
		d.mu.Lock()
		d.setStatus(fmt.Sprintf("Error: attempt %d: %v", attempt, attemptErr))
		d.mu.Unlock()
	})

	d.mu.Lock()
	if err == nil {
		d.setStatus("Connected")
		d.recordHistory(data)
	} else {
		d.setStatus(fmt.Sprintf("Error: %v", err))
	}
	d.mu.Unlock()

	if err != nil {
		return driverErr(d.DriverType(), pherrors.CategoryDriverPersistent, err)
	}
	return nil
}

func (d *RedisDriver) write(ctx context.Context, nodeID string, payload []byte) error {
	switch d.cfg.Mode {
	case RedisKeyValue:
		key := d.cfg.KeyPrefix + nodeID
		return d.client.Set(ctx, key, payload, d.cfg.TTL).Err()
	default:
		return d.client.Publish(ctx, d.cfg.Channel, payload).Err()
	}
}

// dispatchAlert writes payload under the "alerts" sub-key/channel,
// following the same PubSub/KeyValue split as write.
func (d *RedisDriver) dispatchAlert(ctx context.Context, payload []byte) error {
	switch d.cfg.Mode {
	case RedisKeyValue:
		return d.client.Set(ctx, d.cfg.KeyPrefix+"alerts", payload, d.cfg.TTL).Err()
	default:
		return d.client.Publish(ctx, d.cfg.Channel+":alerts", payload).Err()
	}
}

func (d *RedisDriver) ShowAlert(ctx context.Context, alert AlertData) error {
	payload, err := json.Marshal(alertPayload{
		Type:      "alert",
		AlertType: alert.AlertType,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Data:      alert.Data,
		Timestamp: alert.Timestamp.Unix(),
	})
	if err != nil {
		return err
	}
	return d.dispatchAlert(ctx, payload)
}

func (d *RedisDriver) ClearAction(ctx context.Context) error {
	payload, err := json.Marshal(clearActionPayload{Type: "clear_action", Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}
	return d.dispatchAlert(ctx, payload)
}
