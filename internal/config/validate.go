package config

import (
	"errors"
	"fmt"
)

// ErrInvalidValue is returned by every setter when the candidate fails
// validation. The candidate is rejected as a whole; no partial update is
// ever applied.
var ErrInvalidValue = errors.New("config: invalid value")

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, reason)
}

func validateAudio(c AudioSection) error {
	if c.SampleRate < 8000 || c.SampleRate > 16000 {
		return invalid("sample_rate out of range [8000, 16000]")
	}
	if c.ThresholdMargin < 50 || c.ThresholdMargin > 200 {
		return invalid("threshold_margin out of range [50, 200]")
	}
	if c.DebounceMS < 20 || c.DebounceMS > 100 {
		return invalid("debounce_ms out of range [20, 100]")
	}
	switch c.NominalGainDB {
	case 40, 50, 60:
	default:
		return invalid("nominal_gain_db must be one of {40, 50, 60}")
	}
	return nil
}

func validateBPM(c BPMSection) error {
	if c.MinBPM < 30 || c.MinBPM > 100 {
		return invalid("min_bpm out of range [30, 100]")
	}
	if c.MaxBPM < 200 || c.MaxBPM > 600 {
		return invalid("max_bpm out of range [200, 600]")
	}
	if c.MinBPM >= c.MaxBPM {
		return invalid("min_bpm must be less than max_bpm")
	}
	if c.StabilityThresholdPercent < 1 || c.StabilityThresholdPercent > 10 {
		return invalid("stability_threshold_percent out of range [1, 10]")
	}
	return nil
}

func validateOutput(c OutputSection) error {
	if c.MIDIChannel < 1 || c.MIDIChannel > 16 {
		return invalid("midi_channel out of range [1, 16]")
	}
	if c.MIDINote < 0 || c.MIDINote > 127 {
		return invalid("midi_note out of range [0, 127]")
	}
	if c.MIDIVelocity < 0 || c.MIDIVelocity > 127 {
		return invalid("midi_velocity out of range [0, 127]")
	}
	if c.RelayPulseMS < 10 || c.RelayPulseMS > 500 {
		return invalid("relay_pulse_ms out of range [10, 500]")
	}
	if c.MIDIPPQN <= 0 {
		return invalid("midi_ppqn must be positive")
	}
	return nil
}

func validateNetwork(c NetworkSection) error {
	if len(c.WiFiSSID) > maxSSIDLength {
		return invalid("wifi_ssid exceeds 32 characters")
	}
	if len(c.WiFiPassword) > maxPasswordLength {
		return invalid("wifi_password exceeds 64 characters")
	}
	if len(c.MQTTHost) > maxHostnameLength {
		return invalid("mqtt_host exceeds 64 characters")
	}
	if len(c.MQTTUsername) > maxUsernameLength {
		return invalid("mqtt_username exceeds 32 characters")
	}
	if len(c.MQTTPassword) > maxPasswordLength {
		return invalid("mqtt_password exceeds 64 characters")
	}
	if c.MQTTHost != "" && c.MQTTPort < 1 {
		return invalid("mqtt_port must be >= 1")
	}
	return nil
}
