package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Durable keys shared with the other extension surfaces.
const (
	KeyExtensionDisabled       = "is_extension_disabled"
	KeySyncValue               = "syncValue"
	KeyLegacyDelayValue        = "delayValue"
	KeyMaxSelectableDelayValue = "maxSelectableDelayValue"
	KeyMaxAcceptableDelayValue = "maxAcceptableDelayValue"
	KeyAutoToggleAudioDevice   = "autoToggleAudioDevice"
	KeyAudioDevice             = "audioDevice"
	KeyExtensionVersion        = "extension_version"
)

// Store is a durable key/value surface. Values are JSON encoded. Get omits
// keys that are not set. Concurrent writers follow last-write-wins.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	Set(ctx context.Context, values map[string]any) error
	Close() error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, values map[string]any) error {
	encoded, err := encodeValues(values)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range encoded {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func encodeValues(values map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("storage: encode %s: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}

// Bool decodes a boolean value. Missing or malformed values yield false.
func Bool(values map[string]json.RawMessage, key string) bool {
	var b bool
	if raw, ok := values[key]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}

// Float decodes a numeric value and reports whether it was set.
func Float(values map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// String decodes a string value and reports whether it was set.
func String(values map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := values[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
