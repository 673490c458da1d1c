package show

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"lightdesk/internal/apperr"
)

// Store keeps the show in memory and writes it back to a YAML file after
// every mutation. Reads return copies; writes are visible immediately.
type Store struct {
	mu   sync.RWMutex
	path string
	data File
}

// NewStore returns an empty store that is not backed by a file.
func NewStore() *Store {
	return &Store{}
}

// Load reads the show file at path. A missing file yields an empty show
// that will be created on the first mutation. A show that breaks the patch
// or cuelist rules is rejected as a whole.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read show file: %w", err)
	}
	if err := yaml.Unmarshal(buf, &s.data); err != nil {
		return nil, fmt.Errorf("parse show file %s: %w", path, err)
	}
	if err := validateFile(s.data); err != nil {
		return nil, fmt.Errorf("show file %s: %w", path, err)
	}
	return s, nil
}

// commitLocked writes the show. When the write fails the show goes back to prev.
func (s *Store) commitLocked(prev File) error {
	if err := s.writeLocked(); err != nil {
		s.data = prev
		return err
	}
	return nil
}

func (s *Store) writeLocked() error {
	if s.path == "" {
		return nil
	}
	buf, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode show: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create show dir: %w", err)
	}
	if err := os.WriteFile(s.path, buf, 0o644); err != nil {
		return fmt.Errorf("write show file: %w", err)
	}
	return nil
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Personality returns the personality with id.
func (s *Store) Personality(id string) (Personality, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data.Personalities {
		if p.ID == id {
			return clonePersonality(p), true
		}
	}
	return Personality{}, false
}

// Personalities returns every personality.
func (s *Store) Personalities() []Personality {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Personality, len(s.data.Personalities))
	for i, p := range s.data.Personalities {
		out[i] = clonePersonality(p)
	}
	return out
}

// PutPersonality creates p when its id is empty, otherwise replaces it.
func (s *Store) PutPersonality(p Personality) (Personality, error) {
	if err := validatePersonality(p); err != nil {
		return Personality{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	p = clonePersonality(p)
	if p.ID == "" {
		p.ID = newID("personality")
		s.data.Personalities = append(s.data.Personalities, p)
		return p, s.commitLocked(prev)
	}
	for i := range s.data.Personalities {
		if s.data.Personalities[i].ID == p.ID {
			s.data.Personalities[i] = p
			return p, s.commitLocked(prev)
		}
	}
	s.data.Personalities = append(s.data.Personalities, p)
	return p, s.commitLocked(prev)
}

// DeletePersonality removes a personality that no fixture uses.
func (s *Store) DeletePersonality(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	for _, f := range s.data.Fixtures {
		if f.PersonalityID == id {
			return fmt.Errorf("personality %q is used by fixture %q: %w", id, f.ID, apperr.ErrConflict)
		}
	}
	for i, p := range s.data.Personalities {
		if p.ID == id {
			s.data.Personalities = append(s.data.Personalities[:i], s.data.Personalities[i+1:]...)
			return s.commitLocked(prev)
		}
	}
	return apperr.NotFound("personality", id)
}

// Fixture returns the fixture with id.
func (s *Store) Fixture(id string) (Fixture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.data.Fixtures {
		if f.ID == id {
			return f, true
		}
	}
	return Fixture{}, false
}

// Fixtures returns every fixture.
func (s *Store) Fixtures() []Fixture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Fixture(nil), s.data.Fixtures...)
}

// PutFixture creates or replaces a fixture. Two fixtures may not share a start channel.
func (s *Store) PutFixture(f Fixture) (Fixture, error) {
	if err := validateFixture(f); err != nil {
		return Fixture{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	if !s.hasPersonalityLocked(f.PersonalityID) {
		return Fixture{}, apperr.NotFound("personality", f.PersonalityID)
	}
	for _, other := range s.data.Fixtures {
		if other.ID != f.ID && other.StartChannel == f.StartChannel {
			return Fixture{}, fmt.Errorf("channel %d already patched to %q: %w", f.StartChannel, other.ID, apperr.ErrConflict)
		}
	}
	if f.ID == "" {
		f.ID = newID("fix")
	}
	for i := range s.data.Fixtures {
		if s.data.Fixtures[i].ID == f.ID {
			s.data.Fixtures[i] = f
			return f, s.commitLocked(prev)
		}
	}
	s.data.Fixtures = append(s.data.Fixtures, f)
	return f, s.commitLocked(prev)
}

func (s *Store) hasPersonalityLocked(id string) bool {
	for _, p := range s.data.Personalities {
		if p.ID == id {
			return true
		}
	}
	return false
}

// DeleteFixture removes a fixture.
func (s *Store) DeleteFixture(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	for i, f := range s.data.Fixtures {
		if f.ID == id {
			s.data.Fixtures = append(s.data.Fixtures[:i], s.data.Fixtures[i+1:]...)
			return s.commitLocked(prev)
		}
	}
	return apperr.NotFound("fixture", id)
}

// Preset returns the preset with id.
func (s *Store) Preset(id string) (Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data.Presets {
		if p.ID == id {
			p.Values = append([]PresetValue(nil), p.Values...)
			return p, true
		}
	}
	return Preset{}, false
}

// Presets returns every preset.
func (s *Store) Presets() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preset, len(s.data.Presets))
	for i, p := range s.data.Presets {
		p.Values = append([]PresetValue(nil), p.Values...)
		out[i] = p
	}
	return out
}

// PutPreset creates or replaces a preset.
func (s *Store) PutPreset(p Preset) (Preset, error) {
	if err := validatePreset(p); err != nil {
		return Preset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	p.Values = append([]PresetValue(nil), p.Values...)
	if p.ID == "" {
		p.ID = newID("preset")
	}
	for i := range s.data.Presets {
		if s.data.Presets[i].ID == p.ID {
			s.data.Presets[i] = p
			return p, s.commitLocked(prev)
		}
	}
	s.data.Presets = append(s.data.Presets, p)
	return p, s.commitLocked(prev)
}

// DeletePreset removes a preset.
func (s *Store) DeletePreset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	for i, p := range s.data.Presets {
		if p.ID == id {
			s.data.Presets = append(s.data.Presets[:i], s.data.Presets[i+1:]...)
			return s.commitLocked(prev)
		}
	}
	return apperr.NotFound("preset", id)
}

// Cuelist returns a copy of the cuelist with id.
func (s *Store) Cuelist(id string) (Cuelist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.cuelistIndexLocked(id)
	if i < 0 {
		return Cuelist{}, false
	}
	return cloneCuelist(s.data.Cuelists[i]), true
}

// Cuelists returns every cuelist.
func (s *Store) Cuelists() []Cuelist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Cuelist, len(s.data.Cuelists))
	for i, c := range s.data.Cuelists {
		out[i] = cloneCuelist(c)
	}
	return out
}

func (s *Store) cuelistIndexLocked(id string) int {
	for i, c := range s.data.Cuelists {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// PutCuelist creates or replaces a cuelist. Names are unique.
func (s *Store) PutCuelist(c Cuelist) (Cuelist, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := validateCuelist(c); err != nil {
		return Cuelist{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	for _, other := range s.data.Cuelists {
		if other.ID != c.ID && other.Name == c.Name {
			return Cuelist{}, fmt.Errorf("cuelist %q already exists: %w", c.Name, apperr.ErrConflict)
		}
	}
	c = cloneCuelist(c)
	if c.ID == "" {
		c.ID = newID("clist")
	}
	for i := range c.Cues {
		if c.Cues[i].ID == "" {
			c.Cues[i].ID = newID("cue")
		}
	}
	if i := s.cuelistIndexLocked(c.ID); i >= 0 {
		s.data.Cuelists[i] = c
	} else {
		s.data.Cuelists = append(s.data.Cuelists, c)
	}
	return cloneCuelist(c), s.commitLocked(prev)
}

// DeleteCuelist removes a cuelist.
func (s *Store) DeleteCuelist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	i := s.cuelistIndexLocked(id)
	if i < 0 {
		return apperr.NotFound("cuelist", id)
	}
	s.data.Cuelists = append(s.data.Cuelists[:i], s.data.Cuelists[i+1:]...)
	return s.commitLocked(prev)
}

// AddCue appends a cue to a cuelist.
func (s *Store) AddCue(cuelistID string, c Cue) (Cue, error) {
	if err := ValidateCue(c); err != nil {
		return Cue{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	i := s.cuelistIndexLocked(cuelistID)
	if i < 0 {
		return Cue{}, apperr.NotFound("cuelist", cuelistID)
	}
	c.ID = newID("cue")
	c.Values = append([]CueValue(nil), c.Values...)
	s.data.Cuelists[i].Cues = append(s.data.Cuelists[i].Cues, c)
	return c, s.commitLocked(prev)
}

// UpdateCue replaces the content of a cue, keeping its identity and position.
func (s *Store) UpdateCue(cuelistID string, c Cue) (Cue, error) {
	if err := ValidateCue(c); err != nil {
		return Cue{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	i := s.cuelistIndexLocked(cuelistID)
	if i < 0 {
		return Cue{}, apperr.NotFound("cuelist", cuelistID)
	}
	for j := range s.data.Cuelists[i].Cues {
		if s.data.Cuelists[i].Cues[j].ID == c.ID {
			c.Values = append([]CueValue(nil), c.Values...)
			s.data.Cuelists[i].Cues[j] = c
			return c, s.commitLocked(prev)
		}
	}
	return Cue{}, apperr.NotFound("cue", c.ID)
}

// DeleteCue removes a cue from a cuelist.
func (s *Store) DeleteCue(cuelistID, cueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	i := s.cuelistIndexLocked(cuelistID)
	if i < 0 {
		return apperr.NotFound("cuelist", cuelistID)
	}
	cues := s.data.Cuelists[i].Cues
	for j := range cues {
		if cues[j].ID == cueID {
			s.data.Cuelists[i].Cues = append(cues[:j], cues[j+1:]...)
			return s.commitLocked(prev)
		}
	}
	return apperr.NotFound("cue", cueID)
}

// Executor returns the executor with id.
func (s *Store) Executor(id string) (Executor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.data.Executors {
		if e.ID == id {
			return e, true
		}
	}
	return Executor{}, false
}

// Executors returns every executor.
func (s *Store) Executors() []Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Executor(nil), s.data.Executors...)
}

// PutExecutor creates or replaces an executor bound to an existing cuelist.
func (s *Store) PutExecutor(e Executor) (Executor, error) {
	if strings.TrimSpace(e.Name) == "" {
		return Executor{}, fmt.Errorf("executor name is required: %w", apperr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	if s.cuelistIndexLocked(e.CuelistID) < 0 {
		return Executor{}, apperr.NotFound("cuelist", e.CuelistID)
	}
	if e.ID == "" {
		e.ID = newID("exec")
	}
	for i := range s.data.Executors {
		if s.data.Executors[i].ID == e.ID {
			s.data.Executors[i] = e
			return e, s.commitLocked(prev)
		}
	}
	s.data.Executors = append(s.data.Executors, e)
	return e, s.commitLocked(prev)
}

// DeleteExecutor removes an executor.
func (s *Store) DeleteExecutor(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := cloneFile(s.data)
	for i, e := range s.data.Executors {
		if e.ID == id {
			s.data.Executors = append(s.data.Executors[:i], s.data.Executors[i+1:]...)
			return s.commitLocked(prev)
		}
	}
	return apperr.NotFound("executor", id)
}

func cloneFile(f File) File {
	out := File{
		Fixtures:  append([]Fixture(nil), f.Fixtures...),
		Executors: append([]Executor(nil), f.Executors...),
	}
	for _, p := range f.Personalities {
		out.Personalities = append(out.Personalities, clonePersonality(p))
	}
	for _, p := range f.Presets {
		p.Values = append([]PresetValue(nil), p.Values...)
		out.Presets = append(out.Presets, p)
	}
	for _, c := range f.Cuelists {
		out.Cuelists = append(out.Cuelists, cloneCuelist(c))
	}
	return out
}

func clonePersonality(p Personality) Personality {
	p.Attributes = append([]Attribute(nil), p.Attributes...)
	return p
}

func cloneCuelist(c Cuelist) Cuelist {
	cues := make([]Cue, len(c.Cues))
	for i, cue := range c.Cues {
		cue.Values = append([]CueValue(nil), cue.Values...)
		cues[i] = cue
	}
	c.Cues = cues
	if c.FadeOut != nil {
		v := *c.FadeOut
		c.FadeOut = &v
	}
	return c
}
