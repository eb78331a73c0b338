package memory

import (
	"encoding/json"
	"os"
	"sync"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// SettingsManager guards the persisted MemorySettings behind a read/write
// lock, reloading the defaults when no settings file exists yet.
type SettingsManager struct {
	path  string
	mu    sync.RWMutex
	state MemorySettings
}

// LoadSettings reads settingsPath if present, falling back to
// DefaultSettings on a missing or unparseable file.
func LoadSettings(settingsPath string) (*SettingsManager, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(settingsPath)
	if err == nil {
		var loaded MemorySettings
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr == nil {
			settings = loaded
		}
	} else if !os.IsNotExist(err) {
		return nil, cxerrors.IOError("read memory settings", err)
	}
	return &SettingsManager{path: settingsPath, state: settings}, nil
}

// Get returns a copy of the current settings.
func (m *SettingsManager) Get() MemorySettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Set replaces the settings wholesale and persists them.
func (m *SettingsManager) Set(settings MemorySettings) (MemorySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = settings
	if err := writeJSONAtomic(m.path, m.state); err != nil {
		return MemorySettings{}, err
	}
	return m.state, nil
}

// Update applies mutate to the current settings under the write lock and
// persists the result.
func (m *SettingsManager) Update(mutate func(*MemorySettings)) (MemorySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.state)
	if err := writeJSONAtomic(m.path, m.state); err != nil {
		return MemorySettings{}, err
	}
	return m.state, nil
}
