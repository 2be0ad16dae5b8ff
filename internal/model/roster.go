package model

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed roster.yaml
var rosterYAML []byte

type rosterFile struct {
	Workers []Worker `yaml:"workers"`
}

var (
	rosterOnce sync.Once
	roster     []Worker
	rosterErr  error
)

// ParseRoster decodes a roster YAML document. Every worker starts Active
// with no absence time.
func ParseRoster(data []byte) ([]Worker, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	seenID := make(map[string]bool, len(f.Workers))
	seenPC := make(map[string]bool, len(f.Workers))
	for i := range f.Workers {
		w := &f.Workers[i]
		if w.ID == "" || w.PCNumber == "" || w.Name == "" {
			return nil, fmt.Errorf("parse roster: worker %d: id, pc and name are required", i)
		}
		if !w.Team.Valid() {
			return nil, fmt.Errorf("parse roster: worker %s: unknown team %q", w.ID, w.Team)
		}
		if seenID[w.ID] {
			return nil, fmt.Errorf("parse roster: duplicate id %s", w.ID)
		}
		if seenPC[w.PCNumber] {
			return nil, fmt.Errorf("parse roster: duplicate pc %s", w.PCNumber)
		}
		seenID[w.ID] = true
		seenPC[w.PCNumber] = true
		w.Status = StatusActive
	}
	SortWorkers(f.Workers)
	return f.Workers, nil
}

// DefaultRoster returns a fresh copy of the embedded default roster.
// Panics if the embedded file is malformed.
func DefaultRoster() []Worker {
	rosterOnce.Do(func() {
		roster, rosterErr = ParseRoster(rosterYAML)
	})
	if rosterErr != nil {
		panic(rosterErr)
	}
	out := make([]Worker, len(roster))
	copy(out, roster)
	return out
}
