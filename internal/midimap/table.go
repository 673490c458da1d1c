package midimap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"lightdesk/internal/apperr"
)

// Table is the mapping table, optionally backed by a YAML file.
type Table struct {
	mu       sync.RWMutex
	path     string
	mappings []Mapping
}

// NewTable returns an empty in-memory table.
func NewTable() *Table {
	return &Table{}
}

// Load reads the mapping file at path. A missing file gives an empty table.
// Entries that no longer validate are dropped.
func Load(path string) (*Table, error) {
	t := &Table{path: path}
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	var raw []Mapping
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", path, err)
	}
	seen := make(map[Key]bool)
	for _, m := range raw {
		n, err := m.Normalize()
		if err != nil || seen[n.Key()] {
			continue
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		seen[n.Key()] = true
		t.mappings = append(t.mappings, n)
	}
	return t, nil
}

// commitLocked writes next and makes it the table once it is on disk.
func (t *Table) commitLocked(next []Mapping) error {
	if err := t.write(next); err != nil {
		return err
	}
	t.mappings = next
	return nil
}

func (t *Table) write(mappings []Mapping) error {
	if t.path == "" {
		return nil
	}
	buf, err := yaml.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create mappings dir: %w", err)
	}
	if err := os.WriteFile(t.path, buf, 0o644); err != nil {
		return fmt.Errorf("write mappings: %w", err)
	}
	return nil
}

// Save validates m and stores it. A mapping with the same key is replaced
// and keeps its id.
func (t *Table) Save(m Mapping) (Mapping, error) {
	n, err := m.Normalize()
	if err != nil {
		return Mapping{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	next := append([]Mapping(nil), t.mappings...)
	replaced := false
	for i := range next {
		if next[i].Key() == n.Key() {
			n.ID = next[i].ID
			next[i] = n
			replaced = true
			break
		}
	}
	if !replaced {
		n.ID = uuid.NewString()
		next = append(next, n)
	}
	if err := t.commitLocked(next); err != nil {
		return Mapping{}, err
	}
	return n, nil
}

// Delete removes the mapping with id.
func (t *Table) Delete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.mappings {
		if m.ID == id {
			next := make([]Mapping, 0, len(t.mappings)-1)
			next = append(next, t.mappings[:i]...)
			next = append(next, t.mappings[i+1:]...)
			return t.commitLocked(next)
		}
	}
	return apperr.NotFound("midi mapping", id)
}

// Find returns the mapping stored under k.
func (t *Table) Find(k Key) (Mapping, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.mappings {
		if m.Key() == k {
			return m, true
		}
	}
	return Mapping{}, false
}

// All returns every mapping in insertion order.
func (t *Table) All() []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Mapping(nil), t.mappings...)
}

// ExecutorControls returns the absolute CC mappings that drive executor id.
func (t *Table) ExecutorControls(id string) []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Mapping
	for _, m := range t.mappings {
		if m.Target == TargetExecutor && m.Kind == AbsoluteCC && m.ExecutorID == id {
			out = append(out, m)
		}
	}
	return out
}
