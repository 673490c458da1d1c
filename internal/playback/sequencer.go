// Package playback runs one cuelist at a time against the patch: it applies
// cues scaled by the master intensity and schedules delay-driven auto-advance.
package playback

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/show"
)

// Sequencer is the cue state machine: stopped -> playing -> {paused, stopped},
// paused -> {playing, stopped}.
type Sequencer struct {
	log      logger.Logger
	clock    clock.Clock
	cuelists Cuelists
	resolver Resolver
	channels Channels
	notify   Notifier

	// trackedOnly limits the stop fade-out to channels this sequencer wrote.
	trackedOnly bool

	mu      sync.Mutex
	state   State
	timer   *clock.Timer
	gen     uint64
	tracked map[int]bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTrackedStop makes Stop fade only the channels playback itself lit.
func WithTrackedStop(on bool) Option {
	return func(s *Sequencer) { s.trackedOnly = on }
}

// WithNotifier sets the state observer.
func WithNotifier(n Notifier) Option {
	return func(s *Sequencer) { s.notify = n }
}

// NewSequencer creates a stopped sequencer with full master intensity.
func NewSequencer(log logger.Logger, clk clock.Clock, cuelists Cuelists, resolver Resolver, channels Channels, opts ...Option) *Sequencer {
	s := &Sequencer{
		log:      log,
		clock:    clk,
		cuelists: cuelists,
		resolver: resolver,
		channels: channels,
		state:    State{CueIndex: -1, Status: Stopped, MasterIntensity: dmx.MaxValue},
		tracked:  make(map[int]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sequencer) logger() *logger.Log {
	return s.log.With(logger.Fields{"module": "playback"})
}

// State returns the current transport state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start plays cuelistID from its first cue. The master intensity argument
// replaces the current one. A running cuelist is replaced.
func (s *Sequencer) Start(cuelistID string, master int) error {
	cl, ok := s.cuelists.Cuelist(cuelistID)
	if !ok {
		return apperr.NotFound("cuelist", cuelistID)
	}
	if len(cl.Cues) == 0 {
		return fmt.Errorf("cuelist %q: %w", cl.Name, apperr.ErrEmpty)
	}

	s.mu.Lock()
	s.cancelTimerLocked()
	s.tracked = make(map[int]bool)
	s.state = State{
		CuelistID:       cl.ID,
		CueIndex:        0,
		Status:          Playing,
		MasterIntensity: int(dmx.Clamp(master)),
	}
	s.logger().Infof("starting cuelist %q", cl.Name)
	s.playLocked(cl.Cues[0])
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

// Next advances to the following cue. Advancing past the last cue stops playback.
func (s *Sequencer) Next() error {
	s.mu.Lock()
	err := s.nextLocked()
	st := s.state
	s.mu.Unlock()

	if !errors.Is(err, apperr.ErrInvalidState) {
		s.emit(st)
	}
	return err
}

func (s *Sequencer) nextLocked() error {
	if s.state.Status == Stopped {
		return fmt.Errorf("next: playback is stopped: %w", apperr.ErrInvalidState)
	}
	id := s.state.CuelistID
	cl, ok := s.cuelists.Cuelist(id)
	if !ok {
		s.stopLocked(show.DefaultFadeOut)
		return apperr.NotFound("cuelist", id)
	}

	s.cancelTimerLocked()
	next := s.state.CueIndex + 1
	if next >= len(cl.Cues) {
		s.logger().Infof("end of cuelist %q", cl.Name)
		s.stopLocked(cl.FadeOutTime())
		return nil
	}
	s.state.CueIndex = next
	s.playLocked(cl.Cues[next])
	return nil
}

// Prev steps back one cue. Stepping back from the first cue reports ErrAtBoundary.
func (s *Sequencer) Prev() error {
	s.mu.Lock()
	if s.state.Status == Stopped {
		s.mu.Unlock()
		return fmt.Errorf("prev: playback is stopped: %w", apperr.ErrInvalidState)
	}
	if s.state.CueIndex-1 < 0 {
		s.mu.Unlock()
		return fmt.Errorf("prev: already on the first cue: %w", apperr.ErrAtBoundary)
	}
	id := s.state.CuelistID
	cl, ok := s.cuelists.Cuelist(id)
	if !ok {
		s.stopLocked(show.DefaultFadeOut)
		st := s.state
		s.mu.Unlock()
		s.emit(st)
		return apperr.NotFound("cuelist", id)
	}
	s.cancelTimerLocked()
	prev := s.state.CueIndex - 1
	if prev >= len(cl.Cues) {
		prev = len(cl.Cues) - 1
	}
	s.state.CueIndex = prev
	s.playLocked(cl.Cues[prev])
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

// Pause cancels the pending auto-advance and holds the current cue.
func (s *Sequencer) Pause() error {
	s.mu.Lock()
	if s.state.Status != Playing {
		s.mu.Unlock()
		return fmt.Errorf("pause: playback is %s: %w", s.state.Status, apperr.ErrInvalidState)
	}
	s.cancelTimerLocked()
	s.state.Status = Paused
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

// Resume re-applies the current cue and restarts its delay.
func (s *Sequencer) Resume() error {
	s.mu.Lock()
	if s.state.Status != Paused {
		s.mu.Unlock()
		return fmt.Errorf("resume: playback is %s: %w", s.state.Status, apperr.ErrInvalidState)
	}
	id := s.state.CuelistID
	cl, ok := s.cuelists.Cuelist(id)
	if !ok || s.state.CueIndex >= len(cl.Cues) {
		s.stopLocked(show.DefaultFadeOut)
		st := s.state
		s.mu.Unlock()
		s.emit(st)
		return apperr.NotFound("cuelist", id)
	}
	s.state.Status = Playing
	s.playLocked(cl.Cues[s.state.CueIndex])
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

// Stop cancels pending timers, fades lit channels to zero over the cuelist
// fade out and resets the transport. Stopping a stopped sequencer is a no-op.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	if s.state.Status == Stopped {
		s.mu.Unlock()
		return nil
	}
	fadeOut := show.DefaultFadeOut
	if cl, ok := s.cuelists.Cuelist(s.state.CuelistID); ok {
		fadeOut = cl.FadeOutTime()
	}
	s.stopLocked(fadeOut)
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

func (s *Sequencer) stopLocked(fadeOut float64) {
	s.cancelTimerLocked()

	var channels []int
	if s.trackedOnly {
		for ch := range s.tracked {
			channels = append(channels, ch)
		}
		sort.Ints(channels)
	} else {
		channels = s.channels.Lit()
	}
	for _, ch := range channels {
		if err := s.channels.Write(ch, 0, fadeOut, dmx.SourcePlayback); err != nil {
			s.logger().Warnf("fade out channel %d: %v", ch, err)
		}
	}
	s.tracked = make(map[int]bool)
	s.state = State{CueIndex: -1, Status: Stopped, MasterIntensity: s.state.MasterIntensity}
	s.logger().Info("playback stopped")
}

// SetMasterIntensity clamps v to 0..255. When it changes during playback the
// current cue is re-applied at once, without waiting out its fade.
func (s *Sequencer) SetMasterIntensity(v int) error {
	s.mu.Lock()
	master := int(dmx.Clamp(v))
	if master == s.state.MasterIntensity {
		s.mu.Unlock()
		return nil
	}
	s.state.MasterIntensity = master
	if s.state.Status != Stopped {
		if cl, ok := s.cuelists.Cuelist(s.state.CuelistID); ok && s.state.CueIndex < len(cl.Cues) {
			s.applyLocked(cl.Cues[s.state.CueIndex], 0)
		}
	}
	st := s.state
	s.mu.Unlock()

	s.emit(st)
	return nil
}

// playLocked applies cue with its own fade and, while playing, arms the
// auto-advance. A zero delay waits for a manual Next.
func (s *Sequencer) playLocked(cue show.Cue) {
	s.logger().Infof("cue %d %q (fade %.1fs, delay %.1fs)", s.state.CueIndex+1, cue.Name, cue.FadeIn, cue.DelayIn)
	s.applyLocked(cue, cue.FadeIn)
	if s.state.Status != Playing || cue.DelayIn <= 0 {
		return
	}
	gen := s.gen
	s.timer = s.clock.AfterFunc(dmx.Seconds(cue.DelayIn), func() { s.autoAdvance(gen) })
}

// applyLocked writes every resolvable value of cue scaled by the master.
func (s *Sequencer) applyLocked(cue show.Cue, fade float64) {
	for _, v := range cue.Values {
		tg, err := s.resolver.Resolve(v.FixtureID, v.Attribute)
		if err != nil {
			s.logger().Warnf("cue %q: skipping %s/%s: %v", cue.Name, v.FixtureID, v.Attribute, err)
			continue
		}
		level := ScaleMaster(tg.Attribute.Clamp(dmx.Clamp(v.Value)), s.state.MasterIntensity)
		if err := s.channels.Write(tg.Channel, int(level), fade, dmx.SourcePlayback); err != nil {
			s.logger().Warnf("cue %q: channel %d: %v", cue.Name, tg.Channel, err)
			continue
		}
		s.tracked[tg.Channel] = true
	}
}

func (s *Sequencer) autoAdvance(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state.Status != Playing {
		s.mu.Unlock()
		return
	}
	err := s.nextLocked()
	st := s.state
	s.mu.Unlock()

	if err != nil {
		s.logger().Warnf("auto-advance: %v", err)
	}
	s.emit(st)
}

func (s *Sequencer) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) emit(st State) {
	if s.notify != nil {
		s.notify(st)
	}
}

// ScaleMaster scales a level by master/255, rounding half away from zero.
func ScaleMaster(value uint8, master int) uint8 {
	return dmx.Scale(float64(value) * float64(master) / dmx.MaxValue)
}
