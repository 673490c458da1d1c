// Package effects runs generative effects. Every effect owns its own clock
// and writes through the channel store until it is stopped; stopping leaves
// the channels at their last level.
package effects

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/show"
)

// Fixtures reads the patch.
type Fixtures interface {
	Fixture(id string) (show.Fixture, bool)
	Resolve(fixtureID, attribute string) (show.Target, error)
}

// Writer is the write side of the channel store.
type Writer interface {
	Write(channel, value int, fade float64, src dmx.Source) error
}

// Status describes a running effect. Stopped effects are not listed.
type Status struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	FixtureIDs []string `json:"fixture_ids"`
	Params     Params   `json:"params"`
	Step       int      `json:"current_step"`
	Running    bool     `json:"running"`
}

type effect struct {
	id       string
	seq      int
	fixtures []string
	params   Params
	step     int
	started  time.Time

	ticker *clock.Ticker
	quit   chan struct{}
}

// Engine owns the running effects.
type Engine struct {
	log      logger.Logger
	clock    clock.Clock
	fixtures Fixtures
	channels Writer
	onChange func([]Status)

	mu      sync.Mutex
	seq     int
	effects map[string]*effect
}

// NewEngine creates an engine without effects. onChange, if not nil, receives
// the status list after every start, stop and update.
func NewEngine(log logger.Logger, clk clock.Clock, fixtures Fixtures, channels Writer, onChange func([]Status)) *Engine {
	return &Engine{
		log:      log,
		clock:    clk,
		fixtures: fixtures,
		channels: channels,
		onChange: onChange,
		effects:  make(map[string]*effect),
	}
}

func (e *Engine) logger() *logger.Log {
	return e.log.With(logger.Fields{"module": "effects"})
}

// Start launches an effect on the fixtures that exist among fixtureIDs and
// returns its id.
func (e *Engine) Start(fixtureIDs []string, p Params) (string, error) {
	if p == nil {
		return "", fmt.Errorf("effect params: %w", apperr.ErrValidation)
	}
	if _, err := DefaultParams(p.Kind()); err != nil {
		return "", err
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	var valid []string
	seen := make(map[string]bool)
	for _, id := range fixtureIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := e.fixtures.Fixture(id); ok {
			valid = append(valid, id)
		} else {
			e.logger().Warnf("%s: ignoring unknown fixture %q", p.Kind(), id)
		}
	}
	if len(valid) == 0 {
		return "", apperr.ErrNoValidFixtures
	}

	e.mu.Lock()
	e.seq++
	eff := &effect{
		id:       uuid.NewString(),
		seq:      e.seq,
		fixtures: valid,
		params:   p,
		started:  e.clock.Now(),
	}
	e.effects[eff.id] = eff
	e.startClockLocked(eff)
	st := e.statusLocked()
	e.mu.Unlock()

	e.logger().Infof("effect %s started: %s on %d fixtures", eff.id, p.Kind(), len(valid))
	e.notify(st)
	return eff.id, nil
}

// Stop cancels the clock of effect id.
func (e *Engine) Stop(id string) error {
	e.mu.Lock()
	eff, ok := e.effects[id]
	if !ok {
		e.mu.Unlock()
		return apperr.NotFound("effect", id)
	}
	e.stopLocked(eff)
	st := e.statusLocked()
	e.mu.Unlock()

	e.logger().Infof("effect %s stopped", id)
	e.notify(st)
	return nil
}

// StopAll cancels every effect.
func (e *Engine) StopAll() {
	e.mu.Lock()
	n := len(e.effects)
	for _, eff := range e.effects {
		e.stopLocked(eff)
	}
	st := e.statusLocked()
	e.mu.Unlock()

	if n > 0 {
		e.logger().Infof("%d effects stopped", n)
	}
	e.notify(st)
}

// Update merges the fields of patch into the parameters of effect id. The
// clock restarts only when the period changes; step and phase are kept.
func (e *Engine) Update(id string, patch json.RawMessage) error {
	e.mu.Lock()
	eff, ok := e.effects[id]
	if !ok {
		e.mu.Unlock()
		return apperr.NotFound("effect", id)
	}
	p, err := Merge(eff.params, patch)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	restart := p.Period() != eff.params.Period()
	eff.params = p
	if restart {
		e.stopClockLocked(eff)
		e.startClockLocked(eff)
	}
	st := e.statusLocked()
	e.mu.Unlock()

	if restart {
		e.logger().Infof("effect %s: period now %s", id, p.Period())
	}
	e.notify(st)
	return nil
}

// Status lists the running effects in start order.
func (e *Engine) Status() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() []Status {
	list := make([]*effect, 0, len(e.effects))
	for _, eff := range e.effects {
		list = append(list, eff)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]Status, len(list))
	for i, eff := range list {
		out[i] = Status{
			ID:         eff.id,
			Kind:       eff.params.Kind(),
			FixtureIDs: append([]string(nil), eff.fixtures...),
			Params:     eff.params,
			Step:       eff.step,
			Running:    true,
		}
	}
	return out
}

func (e *Engine) notify(st []Status) {
	if e.onChange != nil {
		e.onChange(st)
	}
}

func (e *Engine) startClockLocked(eff *effect) {
	eff.ticker = e.clock.Ticker(eff.params.Period())
	eff.quit = make(chan struct{})
	go e.run(eff.id, eff.ticker, eff.quit)
}

func (e *Engine) stopClockLocked(eff *effect) {
	eff.ticker.Stop()
	close(eff.quit)
}

func (e *Engine) stopLocked(eff *effect) {
	e.stopClockLocked(eff)
	delete(e.effects, eff.id)
}

func (e *Engine) run(id string, t *clock.Ticker, quit chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			select {
			case <-quit:
				return
			default:
			}
			e.tick(id)
		}
	}
}

// tick computes one frame of effect id and writes it. The lock is held for
// the writes so that nothing is written once Stop has returned.
func (e *Engine) tick(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	eff, ok := e.effects[id]
	if !ok {
		return
	}

	var levels []int
	switch p := eff.params.(type) {
	case ChaseParams:
		levels = chaseFrame(p, eff.step, len(eff.fixtures))
		eff.step++
	case WaveParams:
		elapsed := e.clock.Now().Sub(eff.started).Seconds()
		levels = waveFrame(p, elapsed, len(eff.fixtures))
	default:
		return
	}

	attribute, fade := eff.params.Target()
	for i, fixtureID := range eff.fixtures {
		tg, err := e.fixtures.Resolve(fixtureID, attribute)
		if err != nil {
			continue
		}
		level := tg.Attribute.Clamp(dmx.Clamp(levels[i]))
		if err := e.channels.Write(tg.Channel, int(level), fade, dmx.SourceEffect); err != nil {
			e.logger().Warnf("effect %s: channel %d: %v", id, tg.Channel, err)
		}
	}
}
