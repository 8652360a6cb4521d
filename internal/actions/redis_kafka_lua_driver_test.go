package actions

import (
	"context"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDriverDefaultsAndType(t *testing.T) {
	d := NewRedisDriver(RedisDriverConfig{Addr: "localhost:6379", Channel: "ch"})
	assert.Equal(t, "redis", d.DriverType())
	assert.Equal(t, 1, d.cfg.RetryCount)
	assert.Equal(t, 5*time.Second, d.cfg.Timeout)
	assert.Equal(t, "Disconnected", d.ConnectionStatus())
}

func TestKafkaDriverDefaultsAndType(t *testing.T) {
	d := NewKafkaDriver(KafkaDriverConfig{Brokers: []string{"localhost:9092"}, MeasurementTopic: "m", AlertTopic: "a"})
	assert.Equal(t, "kafka", d.DriverType())
	assert.Equal(t, 1, d.cfg.RetryCount)
}

func TestLuaDriverDefaultsFunctionNames(t *testing.T) {
	d := NewLuaDriver(LuaDriverConfig{Script: "function on_update() end"})
	assert.Equal(t, "embedded-interpreter", d.DriverType())
	assert.Equal(t, "on_update", d.cfg.UpdateFuncName)
	assert.Equal(t, "on_alert", d.cfg.AlertFuncName)
	assert.Equal(t, "on_clear", d.cfg.ClearFuncName)
}

func TestLuaDriverInitializeRunsScriptAndCallsFunctions(t *testing.T) {
	script := `
calls = {}
function on_update(node_id, concentration, amplitude, frequency, timestamp)
  calls[#calls+1] = "update:" .. node_id
end
function on_clear()
  calls[#calls+1] = "clear"
end
`
	d := NewLuaDriver(LuaDriverConfig{Script: script, BufferCapacity: 4})
	err := d.Initialize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "Connected", d.ConnectionStatus())

	err = d.UpdateAction(context.Background(), MeasurementData{NodeID: "n1", Timestamp: time.Now()})
	assert.NoError(t, err)
	assert.Len(t, d.History(0), 1)

	err = d.ClearAction(context.Background())
	assert.NoError(t, err)
}

func TestLuaDriverInitializeRejectsInvalidScript(t *testing.T) {
	d := NewLuaDriver(LuaDriverConfig{Script: "this is not lua (("})
	err := d.Initialize(context.Background())
	assert.Error(t, err)
}

func TestLuaDriverShowAlertPassesAlertTypeAndDataFields(t *testing.T) {
	script := `
calls = {}
function on_alert(alert_type, severity, message, value, threshold)
  calls[#calls+1] = alert_type .. ":" .. severity .. ":" .. tostring(value) .. ":" .. tostring(threshold)
end
`
	d := NewLuaDriver(LuaDriverConfig{Script: script})
	require.NoError(t, d.Initialize(context.Background()))

	err := d.ShowAlert(context.Background(), AlertData{
		AlertType: "concentration_threshold",
		Severity:  SeverityCritical,
		Message:   "threshold crossed",
		Data:      map[string]any{"value": 12.5, "threshold": 10.0},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	got := d.state.GetGlobal("calls").(*lua.LTable).RawGetInt(1).String()
	assert.Equal(t, "concentration_threshold:critical:12.5:10", got)
}
