package config

import (
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// ChangeEvent is delivered synchronously, within the setter/FactoryReset
// call that produced it, to the single registered listener.
type ChangeEvent struct {
	Section   string // "audio", "bpm", "output", "network", or "all"
	Timestamp uint64
}

// TimestampFunc supplies the microsecond timestamp stamped onto
// ChangeEvents. Callers inject timing.Service.TimestampUS (or a fake in
// tests) rather than the store reaching for an ambient clock.
type TimestampFunc func() uint64

// Store owns the single in-memory Snapshot and mirrors it to a Backend.
// All mutation goes through validated setters; reads return copies.
type Store struct {
	backend Backend
	now     TimestampFunc
	logger  *log.Logger
	cipher  *secretCipher

	mu       sync.RWMutex
	snapshot Snapshot
	listener func(ChangeEvent)
}

// NewStore constructs a Store over backend, without loading anything yet;
// call Init to populate the snapshot.
func NewStore(backend Backend, now TimestampFunc, logger *log.Logger) *Store {
	return &Store{
		backend: backend,
		now:     now,
		logger:  logger,
		cipher:  newSecretCipher(),
	}
}

// Init loads the snapshot from the backend. A missing, corrupt, or
// older-schema value per section falls back to (or migrates toward) the
// current default, never returning an error for those cases — only a
// hard backend I/O failure does, and even then the in-memory snapshot
// keeps running on factory defaults per spec.md §7's "corrupt store
// causes factory defaults to load, not a halt".
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := DefaultSnapshot()

	var loadErr error
	load := func(key string) ([]byte, bool) {
		data, ok, err := s.backend.Load(key)
		if err != nil && loadErr == nil {
			loadErr = err
		}
		return data, ok
	}

	schemaVersion := s.loadSchemaVersion()
	upgrading := schemaVersion < CurrentSchemaVersion

	if data, ok := load("audio"); ok {
		if upgrading {
			s.backupIfSupported("audio", data)
		}
		var sec AudioSection
		if err := decodeWithMigration(data, migrateAudioKeys, &sec); err == nil {
			if validateAudio(sec) == nil {
				snap.Audio = sec
			} else if s.logger != nil {
				s.logger.Warn("stored audio config failed validation, using defaults")
			}
		}
	}

	if data, ok := load("bpm"); ok {
		if upgrading {
			s.backupIfSupported("bpm", data)
		}
		var sec BPMSection
		if err := decodeWithMigration(data, migrateBPMKeys, &sec); err == nil {
			if validateBPM(sec) == nil {
				snap.BPM = sec
			} else if s.logger != nil {
				s.logger.Warn("stored bpm config failed validation, using defaults")
			}
		}
	}

	if data, ok := load("output"); ok {
		var sec OutputSection
		if err := yaml.Unmarshal(data, &sec); err == nil {
			if validateOutput(sec) == nil {
				snap.Output = sec
			} else if s.logger != nil {
				s.logger.Warn("stored output config failed validation, using defaults")
			}
		}
	}

	// The network section did not exist before schema 2 (spec.md §9: "the
	// late addition of the network section"). Absent entirely, or on an
	// older schema, it simply starts from defaults.
	if schemaVersion >= CurrentSchemaVersion {
		if data, ok := load("network"); ok {
			var stored struct {
				NetworkSection `yaml:",inline"`
			}
			if err := yaml.Unmarshal(data, &stored); err == nil {
				stored.WiFiPassword = s.cipher.Open(stored.WiFiPassword)
				stored.MQTTPassword = s.cipher.Open(stored.MQTTPassword)
				if validateNetwork(stored.NetworkSection) == nil {
					snap.Network = stored.NetworkSection
				}
			}
		}
	}

	s.snapshot = snap
	return loadErr
}

func (s *Store) backupIfSupported(key string, data []byte) {
	b, ok := s.backend.(Backupper)
	if !ok {
		return
	}
	if err := b.BackupBeforeUpgrade(key, data, time.Now()); err != nil && s.logger != nil {
		s.logger.Warn("failed to back up pre-migration config", "key", key, "err", err)
	}
}

func (s *Store) loadSchemaVersion() int {
	data, ok, _ := s.backend.Load("schema_version")
	if !ok {
		return 1
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return 1
	}
	return v
}

// GetAudio returns a copy of the current audio section.
func (s *Store) GetAudio() AudioSection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Audio
}

func (s *Store) GetBPM() BPMSection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.BPM
}

func (s *Store) GetOutput() OutputSection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Output
}

func (s *Store) GetNetwork() NetworkSection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Network
}

// SetAudio validates candidate in full; on any out-of-range field the
// entire candidate is rejected and the snapshot is left untouched.
func (s *Store) SetAudio(candidate AudioSection) error {
	if err := validateAudio(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot.Audio = candidate
	s.mu.Unlock()
	s.notify("audio")
	return nil
}

func (s *Store) SetBPM(candidate BPMSection) error {
	if err := validateBPM(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot.BPM = candidate
	s.mu.Unlock()
	s.notify("bpm")
	return nil
}

func (s *Store) SetOutput(candidate OutputSection) error {
	if err := validateOutput(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot.Output = candidate
	s.mu.Unlock()
	s.notify("output")
	return nil
}

func (s *Store) SetNetwork(candidate NetworkSection) error {
	if err := validateNetwork(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot.Network = candidate
	s.mu.Unlock()
	s.notify("network")
	return nil
}

// Save persists the current snapshot to the backend. Credential fields are
// sealed (encrypted) in the bytes written; GetNetwork continues to return
// plaintext from the in-memory snapshot.
func (s *Store) Save() error {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if err := s.saveSection("audio", snap.Audio); err != nil {
		return err
	}
	if err := s.saveSection("bpm", snap.BPM); err != nil {
		return err
	}
	if err := s.saveSection("output", snap.Output); err != nil {
		return err
	}

	sealed := snap.Network
	sealed.WiFiPassword = s.cipher.Seal(sealed.WiFiPassword)
	sealed.MQTTPassword = s.cipher.Seal(sealed.MQTTPassword)
	if err := s.saveSection("network", sealed); err != nil {
		return err
	}

	return s.backend.Save("schema_version", []byte(strconv.Itoa(CurrentSchemaVersion)))
}

func (s *Store) saveSection(key string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return s.backend.Save(key, data)
}

// FactoryReset erases persistent storage and reloads defaults, firing the
// change callback once with section "all".
func (s *Store) FactoryReset() error {
	for _, key := range s.backend.Keys() {
		if err := s.backend.Delete(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.snapshot = DefaultSnapshot()
	s.mu.Unlock()

	s.notify("all")
	return nil
}

// OnChange registers callback as the single listener for change events,
// replacing any previously registered listener.
func (s *Store) OnChange(callback func(ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = callback
}

func (s *Store) notify(section string) {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return
	}
	var ts uint64
	if s.now != nil {
		ts = s.now()
	}
	listener(ChangeEvent{Section: section, Timestamp: ts})
}
