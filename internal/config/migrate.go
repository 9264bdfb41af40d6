package config

import "gopkg.in/yaml.v3"

// migrateAudioKeys rewrites the pre-1.1 "sample_freq" key into the current
// "sample_rate" key before unmarshalling, per spec.md §9's note on the
// v1.0 → v1.1 rename. Unknown/absent keys are left for yaml.Unmarshal's
// normal zero-value handling, then patched up by DefaultSnapshot-derived
// fallbacks in Store.init.
func migrateAudioKeys(raw map[string]any) map[string]any {
	if v, ok := raw["sample_freq"]; ok {
		if _, hasNew := raw["sample_rate"]; !hasNew {
			raw["sample_rate"] = v
		}
		delete(raw, "sample_freq")
	}
	return raw
}

// migrateBPMKeys rewrites the pre-1.1 "min_tempo"/"max_tempo" keys into
// "min_bpm"/"max_bpm".
func migrateBPMKeys(raw map[string]any) map[string]any {
	if v, ok := raw["min_tempo"]; ok {
		if _, hasNew := raw["min_bpm"]; !hasNew {
			raw["min_bpm"] = v
		}
		delete(raw, "min_tempo")
	}
	if v, ok := raw["max_tempo"]; ok {
		if _, hasNew := raw["max_bpm"]; !hasNew {
			raw["max_bpm"] = v
		}
		delete(raw, "max_tempo")
	}
	return raw
}

// decodeWithMigration unmarshals data into a map, applies key renames,
// re-marshals, and decodes into out. This lets old-shaped documents load
// into the current struct without a bespoke decoder per schema version.
func decodeWithMigration(data []byte, rename func(map[string]any) map[string]any, out any) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = rename(raw)

	fixed, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(fixed, out)
}
