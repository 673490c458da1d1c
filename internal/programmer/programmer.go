// Package programmer holds live-edit attribute values. They are independent
// of playback and reach the channels immediately.
package programmer

import (
	"sync"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/show"
)

// State maps fixture id -> attribute name -> value.
type State map[string]map[string]int

// Resolver turns a fixture attribute into a channel.
type Resolver interface {
	Resolve(fixtureID, attribute string) (show.Target, error)
}

// Writer is the write side of the channel store.
type Writer interface {
	Write(channel, value int, fade float64, src dmx.Source) error
}

type Programmer struct {
	log      logger.Logger
	resolver Resolver
	channels Writer
	onChange func(State)

	mu     sync.Mutex
	values State
}

// New creates an empty programmer.
func New(log logger.Logger, resolver Resolver, channels Writer, onChange func(State)) *Programmer {
	return &Programmer{
		log:      log,
		resolver: resolver,
		channels: channels,
		onChange: onChange,
		values:   make(State),
	}
}

func (p *Programmer) logger() *logger.Log {
	return p.log.With(logger.Fields{"module": "programmer"})
}

// Value returns the programmed value, 0 when nothing is set.
func (p *Programmer) Value(fixtureID, attribute string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[fixtureID][attribute]
}

// Set stores value for a fixture attribute and writes it at once. The value
// is limited to the attribute range. Setting the value already held does
// nothing and reports false.
func (p *Programmer) Set(fixtureID, attribute string, value int) (bool, error) {
	if value < 0 || value > dmx.MaxValue {
		return false, apperr.OutOfRange("programmer value", value, 0, dmx.MaxValue)
	}
	return p.update(fixtureID, attribute, func(int) int { return value })
}

// Nudge adds delta to the programmed value, clamped to 0..255.
func (p *Programmer) Nudge(fixtureID, attribute string, delta int) (bool, error) {
	return p.update(fixtureID, attribute, func(cur int) int { return int(dmx.Clamp(cur + delta)) })
}

// update reads the held value and stores next(cur) under one lock, so
// concurrent nudges from MIDI and MQTT add up.
func (p *Programmer) update(fixtureID, attribute string, next func(cur int) int) (bool, error) {
	tg, err := p.resolver.Resolve(fixtureID, attribute)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	cur, held := p.values[fixtureID][attribute]
	level := int(tg.Attribute.Clamp(uint8(next(cur))))
	if held && cur == level {
		p.mu.Unlock()
		return false, nil
	}
	if err := p.channels.Write(tg.Channel, level, 0, dmx.SourceProgrammer); err != nil {
		p.mu.Unlock()
		return false, err
	}
	if p.values[fixtureID] == nil {
		p.values[fixtureID] = make(map[string]int)
	}
	p.values[fixtureID][attribute] = level
	st := p.stateLocked()
	p.mu.Unlock()

	p.logger().Debugf("%s/%s = %d (channel %d)", fixtureID, attribute, level, tg.Channel)
	if p.onChange != nil {
		p.onChange(st)
	}
	return true, nil
}

// Clear forgets every programmed value. Channels keep their levels.
func (p *Programmer) Clear() {
	p.mu.Lock()
	p.values = make(State)
	st := p.stateLocked()
	p.mu.Unlock()

	p.logger().Info("programmer cleared")
	if p.onChange != nil {
		p.onChange(st)
	}
}

// State returns a copy of the programmed values.
func (p *Programmer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Programmer) stateLocked() State {
	out := make(State, len(p.values))
	for f, attrs := range p.values {
		m := make(map[string]int, len(attrs))
		for a, v := range attrs {
			m[a] = v
		}
		out[f] = m
	}
	return out
}
