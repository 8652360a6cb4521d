// Package modbusmap implements the fixed Modbus register map: six
// read-only input registers carrying the latest measurement and status,
// and four read/write holding registers carrying acquisition
// configuration. It implements only the register bank and its
// scaling/exception semantics; Modbus TCP/RTU framing is out of scope.
package modbusmap

import (
	"math"
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// Status mirrors IN5: the coarse system health reported alongside a
// measurement.
type Status uint16

const (
	StatusNormal  Status = 0
	StatusWarning Status = 1
	StatusError   Status = 2
)

const (
	inputRegisterCount   = 6
	holdingRegisterCount = 4
)

// Bank is the register bank: six input registers (resonance frequency
// ×10, amplitude ×1000, concentration ×10, timestamp low/high word,
// status) and four holding registers (measurement interval, averaging
// count, gain, filter strength). The zero value is not ready to use;
// construct with NewBank.
type Bank struct {
	mu sync.RWMutex

	frequencyHz      float64
	amplitude        float64
	concentrationPPM float64
	timestamp        time.Time
	status           Status

	measurementIntervalS uint16
	averagingCount       uint16
	gain                 uint16
	filterStrength       uint16
}

// NewBank creates a register bank with conservative holding-register
// defaults: a 1s measurement interval, no averaging, unity gain, no
// filtering.
func NewBank() *Bank {
	return &Bank{
		measurementIntervalS: 1,
		averagingCount:       1,
		gain:                 1,
		filterStrength:       0,
	}
}

// UpdateMeasurement refreshes the input registers from the latest
// measurement. Called by whatever bridges SharedAnalyticalState into
// this bank; the bank itself holds no reference to pastate.State so it
// stays independently testable.
func (b *Bank) UpdateMeasurement(frequencyHz, amplitude, concentrationPPM float64, timestamp time.Time, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frequencyHz = frequencyHz
	b.amplitude = amplitude
	b.concentrationPPM = concentrationPPM
	b.timestamp = timestamp
	b.status = status
}

func modbusErr(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("modbusmap").
		Category(errors.CategoryModbus).
		Build()
}

// errIllegalDataAddress builds the error returned for any register access outside the
// bank's fixed, zero-indexed address ranges.
func errIllegalDataAddress(bank string, addr, count uint16) error {
	return modbusErr("%s registers: illegal data address (addr=%d count=%d)", bank, addr, count)
}

// errIllegalFunction builds the error returned when the requested operation (e.g.
// writing an input register) is not supported for the target bank.
func errIllegalFunction(op, bank string) error {
	return modbusErr("illegal function: %s not supported on %s registers", op, bank)
}

func scaleToU16(v, scale float64) uint16 {
	scaled := v * scale
	if scaled < 0 {
		scaled = 0
	}
	if scaled > math.MaxUint16 {
		scaled = math.MaxUint16
	}
	return uint16(math.Round(scaled))
}

// inputSnapshot renders the current measurement as the six IN registers.
func (b *Bank) inputSnapshot() [inputRegisterCount]uint16 {
	epoch := uint32(b.timestamp.Unix())
	return [inputRegisterCount]uint16{
		scaleToU16(b.frequencyHz, 10),
		scaleToU16(b.amplitude, 1000),
		scaleToU16(b.concentrationPPM, 10),
		uint16(epoch & 0xFFFF),
		uint16(epoch >> 16),
		uint16(b.status),
	}
}

// ReadInputRegisters reads count registers starting at addr from the
// input bank (IN0..IN5). Out-of-range addr/count returns
// IllegalDataAddress.
func (b *Bank) ReadInputRegisters(addr, count uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if count == 0 || int(addr)+int(count) > inputRegisterCount {
		return nil, errIllegalDataAddress("input", addr, count)
	}

	snapshot := b.inputSnapshot()
	out := make([]uint16, count)
	copy(out, snapshot[addr:addr+count])
	return out, nil
}

// holdingSnapshot renders the current configuration as the four HR
// registers.
func (b *Bank) holdingSnapshot() [holdingRegisterCount]uint16 {
	return [holdingRegisterCount]uint16{
		b.measurementIntervalS,
		b.averagingCount,
		b.gain,
		b.filterStrength,
	}
}

// ReadHoldingRegisters reads count registers starting at addr from the
// holding bank (HR0..HR3). Out-of-range addr/count returns
// IllegalDataAddress.
func (b *Bank) ReadHoldingRegisters(addr, count uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if count == 0 || int(addr)+int(count) > holdingRegisterCount {
		return nil, errIllegalDataAddress("holding", addr, count)
	}

	snapshot := b.holdingSnapshot()
	out := make([]uint16, count)
	copy(out, snapshot[addr:addr+count])
	return out, nil
}

// WriteSingleRegister writes one holding register. Writing an input
// register returns IllegalFunction; an out-of-range holding address
// returns IllegalDataAddress.
func (b *Bank) WriteSingleRegister(addr, value uint16) error {
	return b.WriteMultipleRegisters(addr, []uint16{value})
}

// WriteMultipleRegisters writes a contiguous run of holding registers
// starting at addr.
func (b *Bank) WriteMultipleRegisters(addr uint16, values []uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(values) == 0 || int(addr)+len(values) > holdingRegisterCount {
		return errIllegalDataAddress("holding", addr, uint16(len(values)))
	}

	for i, v := range values {
		switch addr + uint16(i) {
		case 0:
			b.measurementIntervalS = v
		case 1:
			b.averagingCount = v
		case 2:
			b.gain = v
		case 3:
			b.filterStrength = v
		}
	}
	return nil
}

// WriteInputRegister always fails: input registers are read-only
// measurement data.
func (b *Bank) WriteInputRegister(addr, value uint16) error {
	return errIllegalFunction("write", "input")
}

// HoldingConfig is a read-only snapshot of the current configuration
// registers in their natural units.
type HoldingConfig struct {
	MeasurementIntervalS uint16
	AveragingCount       uint16
	Gain                 uint16
	FilterStrength       uint16
}

// Config returns the current holding-register configuration.
func (b *Bank) Config() HoldingConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return HoldingConfig{
		MeasurementIntervalS: b.measurementIntervalS,
		AveragingCount:       b.averagingCount,
		Gain:                 b.gain,
		FilterStrength:       b.filterStrength,
	}
}
