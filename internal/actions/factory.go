package actions

import (
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// buildDriver constructs a Driver from its declarative parameters block.
// driver_type selects the concrete implementation; the remaining keys are
// driver-specific and match the corresponding *Config struct's fields.
func buildDriver(parameters map[string]any) (Driver, error) {
	driverType, _ := parameters["driver_type"].(string)
	bufferCapacity := 64
	if v, ok := asFloat64(parameters["buffer_capacity"]); ok {
		bufferCapacity = int(v)
	}
	retryCount := 3
	if v, ok := asFloat64(parameters["retry_count"]); ok {
		retryCount = int(v)
	}
	timeout := 5 * time.Second
	if v, ok := asFloat64(parameters["timeout_seconds"]); ok {
		timeout = time.Duration(v) * time.Second
	}

	switch driverType {
	case "redis":
		mode := RedisPublish
		if m, _ := parameters["mode"].(string); m == "key_value" {
			mode = RedisKeyValue
		}
		ttl := time.Duration(0)
		if v, ok := asFloat64(parameters["ttl_seconds"]); ok {
			ttl = time.Duration(v) * time.Second
		}
		addr, _ := parameters["addr"].(string)
		channel, _ := parameters["channel"].(string)
		prefix, _ := parameters["key_prefix"].(string)
		return NewRedisDriver(RedisDriverConfig{
			Addr: addr, Mode: mode, Channel: channel, KeyPrefix: prefix, TTL: ttl,
			RetryCount: retryCount, Timeout: timeout, BufferCapacity: bufferCapacity,
		}), nil

	case "kafka":
		brokers, _ := asStringSlice(parameters["brokers"])
		measurementTopic, _ := parameters["measurement_topic"].(string)
		alertTopic, _ := parameters["alert_topic"].(string)
		return NewKafkaDriver(KafkaDriverConfig{
			Brokers: brokers, MeasurementTopic: measurementTopic, AlertTopic: alertTopic,
			RetryCount: retryCount, Timeout: timeout, BufferCapacity: bufferCapacity,
		}), nil

	case "embedded-interpreter", "lua":
		script, _ := parameters["script"].(string)
		return NewLuaDriver(LuaDriverConfig{Script: script, BufferCapacity: bufferCapacity}), nil

	default: // "http" and unrecognized types fall back to the canonical driver
		url, _ := parameters["url"].(string)
		auth, _ := parameters["auth_header"].(string)
		return NewHTTPDriver(HTTPDriverConfig{
			URL: url, AuthHeader: auth, RetryCount: retryCount, Timeout: timeout,
			BufferCapacity: bufferCapacity,
		}), nil
	}
}

func init() {
	procgraph.RegisterNodeFactory("universal_action", func(id string, parameters map[string]any) (procgraph.ProcessingNode, error) {
		driver, err := buildDriver(parameters)
		if err != nil {
			return nil, validationErr(id, err.Error())
		}

		bufferCapacity := 64
		if v, ok := asFloat64(parameters["buffer_capacity"]); ok {
			bufferCapacity = int(v)
		}

		node := NewUniversalActionNode(id, driver, bufferCapacity)
		if ids, err := asStringSlice(parameters["monitored_ids"]); err == nil {
			node.WithMonitoredIDs(ids...)
		}
		if v, ok := asFloat64(parameters["update_interval_ms"]); ok {
			node.WithUpdateInterval(time.Duration(v) * time.Millisecond)
		}
		if v, ok := asFloat64(parameters["concentration_threshold"]); ok {
			node.WithConcentrationThreshold(v)
		}
		if v, ok := asFloat64(parameters["amplitude_threshold"]); ok {
			node.WithAmplitudeThreshold(v)
		}
		if v, ok := asFloat64(parameters["critical_multiplier"]); ok {
			node.WithCriticalMultiplier(v)
		}
		return node, nil
	})
}
