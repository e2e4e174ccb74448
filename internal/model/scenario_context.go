package model

import (
	"fmt"
)

// ScenarioContext carries the identity of one scenario run plus the shared
// scratch data every plugin invoked during that run reads and writes. It is
// created once by the caller, passed by reference into every plugin
// invocation, and discarded when the scenario ends.
type ScenarioContext struct {
	TestID       string
	BusinessFlow string
	TestName     string
	TestData     *TestData
}

// NewScenarioContext creates a context for one scenario run.
func NewScenarioContext(testID, businessFlow, testName string) *ScenarioContext {
	return &ScenarioContext{
		TestID:       testID,
		BusinessFlow: businessFlow,
		TestName:     testName,
		TestData:     NewTestData(),
	}
}

// TestData is an insertion-ordered string-keyed map used as shared scratch
// space across plugins. Writers merge mapping values key-wise instead of
// replacing them; attempting to replace a mapping value with an incompatible
// type is rejected so one plugin cannot silently clobber another's output.
type TestData struct {
	keys   []string
	values map[string]any
}

// NewTestData returns an empty ordered map.
func NewTestData() *TestData {
	return &TestData{values: make(map[string]any)}
}

// Set stores a value under key, replacing any previous value. Intended for
// plugin-private keys where replacement is the desired semantics.
func (d *TestData) Set(key string, value any) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Merge stores a value under key with merge semantics: when both the existing
// and the new value are mappings, keys of the new mapping are merged into the
// existing one (nested mappings merge recursively). Replacing a mapping with
// a non-mapping value is an error.
func (d *TestData) Merge(key string, value any) error {
	existing, exists := d.values[key]
	if !exists {
		d.Set(key, value)
		return nil
	}

	existingMap, existingIsMap := existing.(map[string]any)
	valueMap, valueIsMap := value.(map[string]any)

	if existingIsMap && valueIsMap {
		mergeMaps(existingMap, valueMap)
		return nil
	}
	if existingIsMap && !valueIsMap {
		return fmt.Errorf("key %q holds a mapping; refusing to replace it with %T", key, value)
	}

	d.values[key] = value
	return nil
}

// Get returns the value stored under key.
func (d *TestData) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *TestData) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of stored keys.
func (d *TestData) Len() int {
	return len(d.keys)
}

// Snapshot returns a shallow copy of the stored values.
func (d *TestData) Snapshot() map[string]any {
	out := make(map[string]any, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if dstMap, ok := dst[k].(map[string]any); ok {
			if srcMap, ok := v.(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}
