package actions

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	pherrors "github.com/sctg-development/photoacoustic-go/internal/errors"
)

// LuaDriverConfig configures a LuaDriver. Script is loaded once at
// Initialize and may define any of the three named functions below (one
// the script leaves undefined is skipped without error); they are
// called with a fixed argument shape, never with arbitrary user code.
type LuaDriverConfig struct {
	Script           string // Lua source defining on_update/on_alert/on_clear
	UpdateFuncName   string // default "on_update"
	AlertFuncName    string // default "on_alert"
	ClearFuncName    string // default "on_clear"
	BufferCapacity   int
}

// LuaDriver forwards measurements and alerts to a small set of
// pre-registered Lua functions in an embedded interpreter. It is not a
// general scripting runtime: the callable surface is fixed to
// on_update(node_id, concentration, amplitude, frequency, timestamp),
// on_alert(alert_type, severity, message, value, threshold), on_clear().
type LuaDriver struct {
	baseDriver

	mu    sync.Mutex
	cfg   LuaDriverConfig
	state *lua.LState
}

// NewLuaDriver creates a Lua driver with the given configuration,
// defaulting unset function names.
func NewLuaDriver(cfg LuaDriverConfig) *LuaDriver {
	if cfg.UpdateFuncName == "" {
		cfg.UpdateFuncName = "on_update"
	}
	if cfg.AlertFuncName == "" {
		cfg.AlertFuncName = "on_alert"
	}
	if cfg.ClearFuncName == "" {
		cfg.ClearFuncName = "on_clear"
	}
	return &LuaDriver{baseDriver: newBaseDriver(cfg.BufferCapacity), cfg: cfg}
}

func (d *LuaDriver) DriverType() string { return "embedded-interpreter" }

func (d *LuaDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := lua.NewState()
	if err := state.DoString(d.cfg.Script); err != nil {
		state.Close()
		d.setStatus(fmt.Sprintf("Error: %v", err))
		return driverErr(d.DriverType(), pherrors.CategoryInterpreter, err)
	}
	d.state = state
	d.setStatus("Connected")
	return nil
}

func (d *LuaDriver) Status() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"driver_type":       d.DriverType(),
		"connection_status": d.ConnectionStatus(),
	}
}

func (d *LuaDriver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != nil {
		d.state.Close()
		d.state = nil
	}
	return nil
}

func (d *LuaDriver) callLocked(funcName string, args ...lua.LValue) error {
	if d.state == nil {
		return fmt.Errorf("embedded-interpreter driver: not initialized")
	}
	fn := d.state.GetGlobal(funcName)
	if fn.Type() == lua.LTNil {
		// No handler registered for this event is not an error: the
		// script may only care about a subset of callbacks.
		return nil
	}
	return d.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

func (d *LuaDriver) UpdateAction(ctx context.Context, data MeasurementData) error {
	d.mu.Lock()
	err := d.callLocked(d.cfg.UpdateFuncName,
		lua.LString(data.NodeID),
		lua.LNumber(data.Concentration),
		lua.LNumber(data.Amplitude),
		lua.LNumber(data.Frequency),
		lua.LNumber(data.Timestamp.Unix()),
	)
	if err == nil {
		d.recordHistory(data)
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

func (d *LuaDriver) ShowAlert(ctx context.Context, alert AlertData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	value, _ := alert.Data["value"].(float64)
	threshold, _ := alert.Data["threshold"].(float64)
	return d.callLocked(d.cfg.AlertFuncName,
		lua.LString(alert.AlertType),
		lua.LString(string(alert.Severity)),
		lua.LString(alert.Message),
		lua.LNumber(value),
		lua.LNumber(threshold),
	)
}

func (d *LuaDriver) ClearAction(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callLocked(d.cfg.ClearFuncName)
}
