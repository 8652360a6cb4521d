package modbusmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInputRegistersScalesFields(t *testing.T) {
	b := NewBank()
	ts := time.Unix(1700000000, 0)
	b.UpdateMeasurement(1234.5, 0.789, 42.3, ts, StatusNormal)

	regs, err := b.ReadInputRegisters(0, 6)
	require.NoError(t, err)

	assert.EqualValues(t, 12345, regs[0])  // 1234.5 * 10
	assert.EqualValues(t, 789, regs[1])    // 0.789 * 1000
	assert.EqualValues(t, 423, regs[2])    // 42.3 * 10
	epoch := uint32(ts.Unix())
	assert.EqualValues(t, epoch&0xFFFF, regs[3])
	assert.EqualValues(t, epoch>>16, regs[4])
	assert.EqualValues(t, StatusNormal, regs[5])
}

func TestReadInputRegistersRejectsOutOfRange(t *testing.T) {
	b := NewBank()
	_, err := b.ReadInputRegisters(4, 3)
	assert.Error(t, err)
}

func TestReadHoldingRegistersReturnsDefaults(t *testing.T) {
	b := NewBank()
	regs, err := b.ReadHoldingRegisters(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 1, 1, 0}, regs)
}

func TestWriteSingleRegisterUpdatesHoldingConfig(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.WriteSingleRegister(2, 5))
	assert.EqualValues(t, 5, b.Config().Gain)
}

func TestWriteMultipleRegistersUpdatesContiguousRun(t *testing.T) {
	b := NewBank()
	require.NoError(t, b.WriteMultipleRegisters(0, []uint16{2, 8, 3, 1}))
	cfg := b.Config()
	assert.EqualValues(t, 2, cfg.MeasurementIntervalS)
	assert.EqualValues(t, 8, cfg.AveragingCount)
	assert.EqualValues(t, 3, cfg.Gain)
	assert.EqualValues(t, 1, cfg.FilterStrength)
}

func TestWriteMultipleRegistersRejectsOutOfRange(t *testing.T) {
	b := NewBank()
	err := b.WriteMultipleRegisters(2, []uint16{1, 2, 3})
	assert.Error(t, err)
}

func TestWriteInputRegisterIsIllegalFunction(t *testing.T) {
	b := NewBank()
	err := b.WriteInputRegister(0, 1)
	assert.Error(t, err)
}

func TestReadInputRegistersClampsOverflow(t *testing.T) {
	b := NewBank()
	b.UpdateMeasurement(1e9, 0, 0, time.Now(), StatusNormal)
	regs, err := b.ReadInputRegisters(0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 65535, regs[0])
}
