package compliance

import (
	"github.com/sells-group/compliance-cli/internal/model"
)

// KeySet is the set of registration keys that have an EPC issued.
type KeySet map[string]struct{}

// NewKeySet builds the key set once from the EPC rows. Empty keys are skipped.
func NewKeySet(epc []model.EPCRecord) KeySet {
	ks := make(KeySet, len(epc))
	for _, r := range epc {
		if r.Key == "" {
			continue
		}
		ks[r.Key] = struct{}{}
	}
	return ks
}

// Contains reports whether key has an EPC. Comparison is exact: keys are
// trimmed at normalization but their case is preserved.
func (ks KeySet) Contains(key string) bool {
	if key == "" {
		return false
	}
	_, ok := ks[key]
	return ok
}

// Len returns the number of distinct keys.
func (ks KeySet) Len() int {
	return len(ks)
}

// Match pairs each registry row with its compliance flag. The output is
// index-aligned with registry.
func Match(registry []model.RegistryRecord, keys KeySet) []bool {
	out := make([]bool, len(registry))
	for i, r := range registry {
		out[i] = keys.Contains(r.Key)
	}
	return out
}

// EPCOnly returns EPC rows whose key does not appear in the registry, in
// upload order. An EPC row with an empty key is always listed.
func EPCOnly(epc []model.EPCRecord, registry []model.RegistryRecord) []model.EPCRecord {
	registered := make(map[string]struct{}, len(registry))
	for _, r := range registry {
		if r.Key == "" {
			continue
		}
		registered[r.Key] = struct{}{}
	}

	var out []model.EPCRecord
	for _, r := range epc {
		if _, ok := registered[r.Key]; !ok {
			out = append(out, r)
		}
	}
	return out
}
