package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestNotFoundError reports a missing manifest by its base name.
type ManifestNotFoundError struct {
	Name string
}

func (e ManifestNotFoundError) Error() string {
	return e.Name + " not found"
}

// Manifest is the langgraph.json layout: graph name to entry point.
type Manifest struct {
	Graphs map[string]string `json:"graphs" yaml:"graphs"`
}

func LoadManifest(path string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return manifest, ManifestNotFoundError{Name: filepath.Base(path)}
		}
		return manifest, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &manifest)
	default:
		err = json.Unmarshal(data, &manifest)
	}
	if err != nil {
		return manifest, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return manifest, nil
}

func (m Manifest) AgentNames() []string {
	names := make([]string, 0, len(m.Graphs))
	for name := range m.Graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
