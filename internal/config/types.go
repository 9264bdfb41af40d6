// Package config implements the validated, persisted configuration store
// (C2): a single in-memory snapshot mirrored to non-volatile key-value
// storage, with schema migration and secret encryption at rest.
package config

// CurrentSchemaVersion is the schema the in-memory Snapshot always
// represents. Store.init transforms any older on-disk shape into this one
// before handing it to callers.
const CurrentSchemaVersion = 2

// AudioSection configures the detection engine (C3).
type AudioSection struct {
	SampleRate      int  `yaml:"sample_rate"`
	ThresholdMargin int  `yaml:"threshold_margin"`
	DebounceMS      int  `yaml:"debounce_ms"`
	NominalGainDB   int  `yaml:"nominal_gain_db"`
	KickOnlyMode    bool `yaml:"kick_only_mode"`
}

// BPMSection configures the estimation engine (C4).
type BPMSection struct {
	MinBPM                    float64 `yaml:"min_bpm"`
	MaxBPM                    float64 `yaml:"max_bpm"`
	StabilityThresholdPercent float64 `yaml:"stability_threshold_percent"`
	CorrectionEnabled         bool    `yaml:"correction_enabled"`
}

// OutputSection configures the MIDI/relay output controller (C5).
type OutputSection struct {
	MIDIEnabled     bool `yaml:"midi_enabled"`
	MIDIChannel     int  `yaml:"midi_channel"`
	MIDINote        int  `yaml:"midi_note"`
	MIDIVelocity    int  `yaml:"midi_velocity"`
	MIDIPPQN        int  `yaml:"midi_ppqn"`
	RelayEnabled    bool `yaml:"relay_enabled"`
	RelayPulseMS    int  `yaml:"relay_pulse_ms"`
	RelayWatchdogMS int  `yaml:"relay_watchdog_ms"`
	RelayDebounceMS int  `yaml:"relay_debounce_ms"`
}

// NetworkSection configures WiFi and MQTT connectivity for the external
// collaborators. Passwords are plaintext here (the in-memory/API shape);
// they are encrypted only in the bytes written by the backend.
type NetworkSection struct {
	WiFiSSID     string `yaml:"wifi_ssid"`
	WiFiPassword string `yaml:"wifi_password"`

	MQTTHost     string `yaml:"mqtt_host"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
}

// Snapshot is the full configuration value, copied on every read so
// observers never alias the store's internal representation.
type Snapshot struct {
	Audio   AudioSection
	BPM     BPMSection
	Output  OutputSection
	Network NetworkSection
}

// DefaultSnapshot returns the factory-default configuration.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Audio: AudioSection{
			SampleRate:      16000,
			ThresholdMargin: 100,
			DebounceMS:      50,
			NominalGainDB:   50,
			KickOnlyMode:    false,
		},
		BPM: BPMSection{
			MinBPM:                    30,
			MaxBPM:                    250,
			StabilityThresholdPercent: 5,
			CorrectionEnabled:         true,
		},
		Output: OutputSection{
			MIDIEnabled:     true,
			MIDIChannel:     10,
			MIDINote:        37,
			MIDIVelocity:    100,
			MIDIPPQN:        24,
			RelayEnabled:    false,
			RelayPulseMS:    50,
			RelayWatchdogMS: 100,
			RelayDebounceMS: 50,
		},
		Network: NetworkSection{
			MQTTPort: 1883,
		},
	}
}

const (
	maxSSIDLength     = 32
	maxPasswordLength = 64
	maxHostnameLength = 64
	maxUsernameLength = 32
)
