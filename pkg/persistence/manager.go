package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StateManager handles persistent key-value storage in a JSON file.
// Writes are synchronous: Set and Delete return only after the state file
// has been rewritten, so a process restart always resumes from the last
// successfully reported state.
type StateManager struct {
	filePath string
	data     map[string]json.RawMessage
	mu       sync.Mutex
}

var globalManager *StateManager
var managerMu sync.Mutex

// GetManager returns the global state manager
func GetManager(dataDir string) (*StateManager, error) {
	managerMu.Lock()
	defer managerMu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	path := filepath.Join(dataDir, "state.json")
	m := &StateManager{
		filePath: path,
		data:     make(map[string]json.RawMessage),
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	globalManager = m
	return m, nil
}

// ResetForTest clears the global manager so tests can reload from disk.
func ResetForTest() {
	managerMu.Lock()
	globalManager = nil
	managerMu.Unlock()
}

func (m *StateManager) load() error {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &m.data)
}

func (m *StateManager) saveLocked() error {
	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return err
	}
	// Write to a temp file first so a crash mid-write cannot corrupt state.json
	tmp := m.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.filePath)
}

// Get unmarshals the value stored under key into out.
// Returns false when the key is not present.
func (m *StateManager) Get(key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal state key %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and saves the state file before returning.
func (m *StateManager) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state key %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return m.saveLocked()
}

// Delete removes key and saves the state file before returning.
// Deleting a missing key is not an error.
func (m *StateManager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return nil
	}
	delete(m.data, key)
	return m.saveLocked()
}
