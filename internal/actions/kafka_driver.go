package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	pherrors "github.com/sctg-development/photoacoustic-go/internal/errors"
)

// KafkaDriverConfig configures a KafkaDriver.
type KafkaDriverConfig struct {
	Brokers          []string
	MeasurementTopic string
	AlertTopic       string
	RetryCount       int
	Timeout          time.Duration
	BufferCapacity   int
}

// KafkaDriver publishes measurements and alerts to separate Kafka topics
// via a synchronous producer.
type KafkaDriver struct {
	baseDriver

	mu       sync.Mutex
	cfg      KafkaDriverConfig
	producer sarama.SyncProducer
}

// NewKafkaDriver creates a Kafka driver. Initialize dials the brokers and
// builds the underlying sarama producer.
func NewKafkaDriver(cfg KafkaDriverConfig) *KafkaDriver {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &KafkaDriver{baseDriver: newBaseDriver(cfg.BufferCapacity), cfg: cfg}
}

func (d *KafkaDriver) DriverType() string { return "kafka" }

func (d *KafkaDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Timeout = d.cfg.Timeout
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(d.cfg.Brokers, saramaCfg)
	if err != nil {
		d.setStatus(fmt.Sprintf("Error: %v", err))
		return driverErr(d.DriverType(), pherrors.CategoryDriverTransient, err)
	}
	d.producer = producer
	d.setStatus("Connected")
	return nil
}

func (d *KafkaDriver) Status() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"driver_type":       d.DriverType(),
		"connection_status": d.ConnectionStatus(),
		"brokers":           d.cfg.Brokers,
	}
}

func (d *KafkaDriver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.producer == nil {
		return nil
	}
	return d.producer.Close()
}

func (d *KafkaDriver) UpdateAction(ctx context.Context, data MeasurementData) error {
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
		return d.send(d.cfg.MeasurementTopic, data.NodeID, payload)
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

func (d *KafkaDriver) send(topic, key string, payload []byte) error {
	d.mu.Lock()
	producer := d.producer
	d.mu.Unlock()
	if producer == nil {
		return fmt.Errorf("kafka driver: not initialized")
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (d *KafkaDriver) ShowAlert(ctx context.Context, alert AlertData) error {
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
	return d.send(d.cfg.AlertTopic, alert.AlertType, payload)
}

func (d *KafkaDriver) ClearAction(ctx context.Context) error {
	payload, err := json.Marshal(clearActionPayload{Type: "clear_action", Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}
	return d.send(d.cfg.AlertTopic, "clear_action", payload)
}
