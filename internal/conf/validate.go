package conf

import "log"

// validateSettings clamps or corrects settings values that would otherwise
// put a component into an invalid state, logging what it changed.
func validateSettings(s *Settings) {
	if s.AudioBus.RingCapacity <= 0 {
		log.Printf("audiobus.ringcapacity must be positive, defaulting to 1000")
		s.AudioBus.RingCapacity = 1000
	}
	if s.AudioBus.DefaultSampleRate <= 0 {
		s.AudioBus.DefaultSampleRate = 44100
	}

	if s.Actions.HTTP.RetryCount < 0 {
		s.Actions.HTTP.RetryCount = 0
	}
	if s.Actions.HTTP.TimeoutSeconds <= 0 || s.Actions.HTTP.TimeoutSeconds > 60 {
		s.Actions.HTTP.TimeoutSeconds = 5
	}
	if s.Actions.Redis.TimeoutSeconds <= 0 || s.Actions.Redis.TimeoutSeconds > 60 {
		s.Actions.Redis.TimeoutSeconds = 5
	}
	if s.Actions.Kafka.TimeoutSeconds <= 0 || s.Actions.Kafka.TimeoutSeconds > 60 {
		s.Actions.Kafka.TimeoutSeconds = 5
	}
	if s.Actions.Interpreter.TimeoutSeconds <= 0 || s.Actions.Interpreter.TimeoutSeconds > 60 {
		s.Actions.Interpreter.TimeoutSeconds = 5
	}

	if s.Modbus.RefreshIntervalMs <= 0 {
		s.Modbus.RefreshIntervalMs = 1000
	}
}
