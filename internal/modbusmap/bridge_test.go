package modbusmap

import (
	"testing"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncFromStatePrefersConcentrationResult(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 900, Amplitude: 0.5, Timestamp: time.Now()})
	state.PutConcentrationResult("conc", pastate.ConcentrationResult{
		PPM: 55, SourceFrequency: 1000, SourceAmplitude: 0.8, Timestamp: time.Now(),
	})

	bank := NewBank()
	SyncFromState(bank, state, "conc", "pf", 0.1)

	regs, err := bank.ReadInputRegisters(0, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, regs[0]) // 1000Hz * 10
	assert.EqualValues(t, 550, regs[2])   // 55ppm * 10
}

func TestSyncFromStateFallsBackToPeakResult(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 900, Amplitude: 0.5, Timestamp: time.Now()})

	bank := NewBank()
	SyncFromState(bank, state, "conc", "pf", 0.1)

	regs, err := bank.ReadInputRegisters(0, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 9000, regs[0]) // 900Hz * 10
	assert.EqualValues(t, StatusNormal, regs[5])
}

func TestSyncFromStateReportsErrorStatusWhenNothingPublished(t *testing.T) {
	state := pastate.New()
	bank := NewBank()
	SyncFromState(bank, state, "conc", "pf", 0.1)

	regs, err := bank.ReadInputRegisters(5, 1)
	require.NoError(t, err)
	assert.EqualValues(t, StatusError, regs[0])
}

func TestSyncFromStateReportsWarningBelowAmplitudeFloor(t *testing.T) {
	state := pastate.New()
	state.PutPeakResult("pf", pastate.PeakResult{Frequency: 900, Amplitude: 0.01, Timestamp: time.Now()})

	bank := NewBank()
	SyncFromState(bank, state, "conc", "pf", 0.1)

	regs, err := bank.ReadInputRegisters(5, 1)
	require.NoError(t, err)
	assert.EqualValues(t, StatusWarning, regs[0])
}
