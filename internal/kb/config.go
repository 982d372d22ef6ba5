// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"fmt"
	"path"
	"sort"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbpanel/internal/storage"
	"github.com/pdiddy/kbpanel/pkg/types"
)

// ReadEnv returns the text of the knowledge base's .env file. A missing
// file reads as empty.
func (m *Manager) ReadEnv(name string) (string, error) {
	return m.readText(name, types.EnvFile)
}

// WriteEnv replaces the .env file with text. Text that does not parse as a
// dotenv file is rejected and nothing is written.
func (m *Manager) WriteEnv(name, text string) error {
	if _, err := godotenv.Unmarshal(text); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnv, err)
	}
	return m.writeText(name, types.EnvFile, text)
}

// EnvKeys returns the sorted variable names defined in the .env file.
// Values are never returned.
func (m *Manager) EnvKeys(name string) ([]string, error) {
	text, err := m.ReadEnv(name)
	if err != nil {
		return nil, err
	}
	vars, err := godotenv.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnv, err)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ReadSettings returns the text of settings.yaml. A missing file reads as
// empty.
func (m *Manager) ReadSettings(name string) (string, error) {
	return m.readText(name, types.SettingsFile)
}

// WriteSettings replaces settings.yaml with text. Text that is not valid
// YAML is rejected and nothing is written.
func (m *Manager) WriteSettings(name, text string) error {
	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return m.writeText(name, types.SettingsFile, text)
}

func (m *Manager) readText(name, file string) (string, error) {
	if err := m.require(name); err != nil {
		return "", err
	}
	data, err := m.fs.ReadFile(path.Join(name, file))
	if storage.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s of %q: %w", file, name, err)
	}
	return string(data), nil
}

func (m *Manager) writeText(name, file, text string) error {
	if err := m.require(name); err != nil {
		return err
	}
	if err := m.fs.WriteFile(path.Join(name, file), []byte(text)); err != nil {
		return fmt.Errorf("saving %s of %q: %w", file, name, err)
	}
	m.logger.Info("saved file", "kb", name, "file", file, "bytes", len(text))
	return nil
}
