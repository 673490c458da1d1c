// Package dmx owns the 512-channel state of the universe and the fade engine
// that interpolates it over time. Every producer writes through Engine.Write;
// the last write to a channel wins and replaces any fade in flight.
package dmx

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"lightdesk/internal/apperr"
	"lightdesk/internal/logger"
)

// Engine is the channel state store plus the periodic fade scheduler.
type Engine struct {
	log     logger.Logger
	clock   clock.Clock
	output  Output
	publish Publisher

	mu       sync.Mutex
	values   [Channels]uint8
	sources  [Channels]Source
	fades    map[int]Fade // key is the zero-based channel index
	degraded bool

	// outMu orders output batches, so a blackout can never be overtaken by a stale batch.
	outMu sync.Mutex
	sent  [Channels]uint8
}

// NewEngine creates an engine. A nil output runs in degraded mode against NullOutput.
func NewEngine(log logger.Logger, clk clock.Clock, output Output, publish Publisher) *Engine {
	e := &Engine{
		log:     log,
		clock:   clk,
		output:  output,
		publish: publish,
		fades:   make(map[int]Fade),
	}
	if output == nil {
		e.output = NullOutput{}
		e.degraded = true
	}
	return e
}

// Write requests channel (1..512) to reach value (0..255) over fade seconds (0..999.9).
// A zero fade commits at once and cancels any fade on the channel. A new fade on a
// fading channel starts from the level interpolated at the moment of the call.
func (e *Engine) Write(channel, value int, fade float64, src Source) error {
	if err := ValidateCommand(Command{Channel: channel, Value: value, Fade: fade}); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeLocked(channel-1, uint8(value), fade, src, e.clock.Now())
	return nil
}

// WriteBatch validates every command before applying any of them.
func (e *Engine) WriteBatch(cmds []Command, src Source) error {
	for i, c := range cmds {
		if err := ValidateCommand(c); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	for _, c := range cmds {
		e.writeLocked(c.Channel-1, uint8(c.Value), c.Fade, src, now)
	}
	return nil
}

func (e *Engine) writeLocked(idx int, value uint8, fade float64, src Source, now time.Time) {
	e.sources[idx] = src
	if fade == 0 {
		delete(e.fades, idx)
		e.values[idx] = value
		return
	}

	start := e.values[idx]
	if f, ok := e.fades[idx]; ok {
		start, _ = f.valueAt(now)
	}
	e.fades[idx] = Fade{
		Start:    start,
		Target:   value,
		Began:    now,
		Duration: Seconds(fade),
	}
}

// ValidateCommand checks the ranges of a raw write.
func ValidateCommand(c Command) error {
	if c.Channel < 1 || c.Channel > Channels {
		return apperr.OutOfRange("channel", c.Channel, 1, Channels)
	}
	if c.Value < 0 || c.Value > MaxValue {
		return apperr.OutOfRange("value", c.Value, 0, MaxValue)
	}
	if math.IsNaN(c.Fade) || c.Fade < 0 || c.Fade > MaxFade {
		return apperr.OutOfRange("fade time", c.Fade, 0, MaxFade)
	}
	return nil
}

// Tick advances every fade to now and sends the channels that changed since the
// previous batch. Subscribers get a full snapshot when the batch is not empty.
func (e *Engine) Tick(now time.Time) {
	e.outMu.Lock()
	defer e.outMu.Unlock()

	e.mu.Lock()
	for idx, f := range e.fades {
		v, done := f.valueAt(now)
		e.values[idx] = v
		if done {
			delete(e.fades, idx)
		}
	}
	batch := make(map[int]uint8)
	for idx, v := range e.values {
		if v != e.sent[idx] {
			batch[idx+1] = v
		}
	}
	snap := Snapshot{Values: e.values, Degraded: e.degraded}
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for ch, v := range batch {
		e.sent[ch-1] = v
	}
	if err := e.output.Update(batch); err != nil {
		e.markDegraded(err)
		snap.Degraded = true
	}
	if e.publish != nil {
		e.publish(snap)
	}
}

// Run ticks the engine every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	t := e.clock.Ticker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			e.Tick(now)
		}
	}
}

// ClearAll forces every channel to 0 at once and drops all fades.
func (e *Engine) ClearAll() {
	e.outMu.Lock()
	defer e.outMu.Unlock()

	e.mu.Lock()
	e.values = [Channels]uint8{}
	e.fades = make(map[int]Fade)
	for i := range e.sources {
		e.sources[i] = SourceSystem
	}
	snap := Snapshot{Degraded: e.degraded}
	e.mu.Unlock()

	e.sent = [Channels]uint8{}
	if err := e.output.Blackout(); err != nil {
		e.markDegraded(err)
		snap.Degraded = true
	}
	e.log.With(logger.Fields{"module": "dmx"}).Info("all channels cleared")
	if e.publish != nil {
		e.publish(snap)
	}
}

func (e *Engine) markDegraded(err error) {
	e.mu.Lock()
	first := !e.degraded
	e.degraded = true
	e.mu.Unlock()
	if first {
		e.log.With(logger.Fields{"module": "dmx"}).Warnf("output failed, continuing on internal state only: %v", err)
	}
}

// Value returns the committed level of channel.
func (e *Engine) Value(channel int) (uint8, error) {
	if channel < 1 || channel > Channels {
		return 0, apperr.OutOfRange("channel", channel, 1, Channels)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values[channel-1], nil
}

// Fading reports whether channel has a fade in flight.
func (e *Engine) Fading(channel int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.fades[channel-1]
	return ok
}

// Source returns the producer of the last write to channel.
func (e *Engine) Source(channel int) Source {
	if channel < 1 || channel > Channels {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sources[channel-1]
}

// Snapshot returns the committed state of the universe.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Values: e.values, Degraded: e.degraded}
}

// Lit returns the channels (1..512) whose committed level is above zero.
func (e *Engine) Lit() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var lit []int
	for idx, v := range e.values {
		_, fading := e.fades[idx]
		if v > 0 || fading {
			lit = append(lit, idx+1)
		}
	}
	return lit
}

// Degraded reports whether the engine runs without a working output.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}
