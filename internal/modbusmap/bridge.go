package modbusmap

import (
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/pastate"
)

// SyncFromState refreshes bank's input registers from the shared
// analytical state, preferring concentrationNodeID's result and falling
// back to peakNodeID's when no concentration result has been published
// yet. Status is Normal once any result exists, Warning if amplitude sits
// below minAmplitudeWarn, Error if nothing has ever been published.
func SyncFromState(bank *Bank, state *pastate.State, concentrationNodeID, peakNodeID string, minAmplitudeWarn float64) {
	if conc, ok := state.ConcentrationResult(concentrationNodeID); ok {
		status := StatusNormal
		if conc.SourceAmplitude < minAmplitudeWarn {
			status = StatusWarning
		}
		bank.UpdateMeasurement(conc.SourceFrequency, conc.SourceAmplitude, conc.PPM, conc.Timestamp, status)
		return
	}

	if peak, ok := state.PeakResult(peakNodeID); ok {
		status := StatusNormal
		if peak.Amplitude < minAmplitudeWarn {
			status = StatusWarning
		}
		bank.UpdateMeasurement(peak.Frequency, peak.Amplitude, 0, peak.Timestamp, status)
		return
	}

	bank.UpdateMeasurement(0, 0, 0, time.Time{}, StatusError)
}
