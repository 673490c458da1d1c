// Package executor keeps the runtime fader levels of the executors defined
// in the show. An executor whose cuelist is playing drives the playback
// master intensity.
package executor

import (
	"sort"
	"sync"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/playback"
	"lightdesk/internal/show"
)

// DefaultLevel is the fader level of an executor that was never moved.
const DefaultLevel = dmx.MaxValue

// Fader is an executor with its current level.
type Fader struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CuelistID  string `json:"cuelist_id"`
	FaderValue int    `json:"fader_value"`
}

// Executors reads executor definitions.
type Executors interface {
	Executor(id string) (show.Executor, bool)
	Executors() []show.Executor
}

// Playback is the part of the sequencer an executor controls.
type Playback interface {
	State() playback.State
	SetMasterIntensity(v int) error
}

// Bank holds the fader level of every executor.
type Bank struct {
	log      logger.Logger
	defs     Executors
	playback Playback
	onChange func(Fader)

	mu     sync.Mutex
	levels map[string]int
}

// NewBank creates a bank. onChange, if not nil, is called after every fader move.
func NewBank(log logger.Logger, defs Executors, pb Playback, onChange func(Fader)) *Bank {
	return &Bank{
		log:      log,
		defs:     defs,
		playback: pb,
		onChange: onChange,
		levels:   make(map[string]int),
	}
}

func (b *Bank) logger() *logger.Log {
	return b.log.With(logger.Fields{"module": "executor"})
}

func (b *Bank) levelLocked(id string) int {
	if v, ok := b.levels[id]; ok {
		return v
	}
	return DefaultLevel
}

// Value returns the fader level of executor id.
func (b *Bank) Value(id string) (int, error) {
	if _, ok := b.defs.Executor(id); !ok {
		return 0, apperr.NotFound("executor", id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levelLocked(id), nil
}

// SetFader clamps v to 0..255 and stores it. When the executor's cuelist is
// the one in playback the master intensity follows the fader.
func (b *Bank) SetFader(id string, v int) (Fader, error) {
	return b.move(id, func(int) int { return v })
}

// Nudge moves the fader of executor id by delta, clamped to 0..255.
func (b *Bank) Nudge(id string, delta int) (Fader, error) {
	return b.move(id, func(cur int) int { return cur + delta })
}

// move stores next(cur) with the read and the write under one lock.
func (b *Bank) move(id string, next func(cur int) int) (Fader, error) {
	def, ok := b.defs.Executor(id)
	if !ok {
		return Fader{}, apperr.NotFound("executor", id)
	}

	b.mu.Lock()
	level := int(dmx.Clamp(next(b.levelLocked(id))))
	b.levels[id] = level
	b.mu.Unlock()

	st := b.playback.State()
	if st.Status != playback.Stopped && st.CuelistID == def.CuelistID {
		if err := b.playback.SetMasterIntensity(level); err != nil {
			return Fader{}, err
		}
	}
	b.logger().Debugf("executor %q fader %d", def.Name, level)

	f := Fader{ID: def.ID, Name: def.Name, CuelistID: def.CuelistID, FaderValue: level}
	if b.onChange != nil {
		b.onChange(f)
	}
	return f, nil
}

// List returns every executor with its level, ordered by name.
func (b *Bank) List() []Fader {
	defs := b.defs.Executors()

	b.mu.Lock()
	out := make([]Fader, 0, len(defs))
	for _, d := range defs {
		out = append(out, Fader{ID: d.ID, Name: d.Name, CuelistID: d.CuelistID, FaderValue: b.levelLocked(d.ID)})
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}
