// Package console wires the engine components together and exposes them as
// named commands. It is the only place where producers meet their observers.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gitlab.com/gomidi/midi/v2"

	"lightdesk/internal/dmx"
	"lightdesk/internal/effects"
	"lightdesk/internal/executor"
	"lightdesk/internal/logger"
	"lightdesk/internal/midimap"
	"lightdesk/internal/playback"
	"lightdesk/internal/programmer"
	"lightdesk/internal/show"
)

// Topics of published state and events, relative to the transport prefix.
const (
	TopicDMX          = "state/dmx"
	TopicPlayback     = "state/playback"
	TopicEffects      = "state/effects"
	TopicMappings     = "state/midi_mappings"
	TopicExecutors    = "state/executors"
	TopicProgrammer   = "state/programmer"
	TopicNodes        = "state/nodes"
	TopicError        = "event/error"
	TopicMIDIReceived = "event/midi"
)

// Publisher broadcasts state to observers.
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Feedback sends messages back to the control surface.
type Feedback interface {
	Send(msg midi.Message) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// DMXState is the payload of TopicDMX.
type DMXState struct {
	Channels map[int]uint8 `json:"channels"`
	Degraded bool          `json:"degraded"`
}

// ErrorEvent is the payload of TopicError.
type ErrorEvent struct {
	Command string `json:"command"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Options tune the console.
type Options struct {
	// TickInterval is the fade engine period.
	TickInterval time.Duration
	// StopTrackedOnly limits the playback stop fade-out to playback channels.
	StopTrackedOnly bool
}

// Console owns one instance of every engine component.
type Console struct {
	log   logger.Logger
	clock clock.Clock
	pub   Publisher
	opts  Options

	Channels   *dmx.Engine
	Show       *show.Store
	Playback   *playback.Sequencer
	Executors  *executor.Bank
	Effects    *effects.Engine
	Programmer *programmer.Programmer
	Mappings   *midimap.Table

	fbMu     sync.RWMutex
	feedback Feedback
}

// New builds the components around store and mappings. A nil output runs
// the channel engine in degraded mode, a nil pub drops every event.
func New(log logger.Logger, clk clock.Clock, out dmx.Output, store *show.Store, mappings *midimap.Table, pub Publisher, opts Options) *Console {
	if pub == nil {
		pub = nopPublisher{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 20 * time.Millisecond
	}
	c := &Console{
		log:      log,
		clock:    clk,
		pub:      pub,
		opts:     opts,
		Show:     store,
		Mappings: mappings,
	}

	c.Channels = dmx.NewEngine(log, clk, out, c.publishSnapshot)
	c.Playback = playback.NewSequencer(log, clk, store, store, c.Channels,
		playback.WithTrackedStop(opts.StopTrackedOnly),
		playback.WithNotifier(func(st playback.State) { c.pub.Publish(TopicPlayback, st) }),
	)
	c.Executors = executor.NewBank(log, store, c.Playback, c.faderMoved)
	c.Effects = effects.NewEngine(log, clk, store, c.Channels, func(st []effects.Status) {
		c.pub.Publish(TopicEffects, st)
	})
	c.Programmer = programmer.New(log, store, c.Channels, func(st programmer.State) {
		c.pub.Publish(TopicProgrammer, st)
	})
	return c
}

func (c *Console) logger() *logger.Log {
	return c.log.With(logger.Fields{"module": "console"})
}

// SetFeedback attaches the control-surface output used for fader feedback.
func (c *Console) SetFeedback(f Feedback) {
	c.fbMu.Lock()
	c.feedback = f
	c.fbMu.Unlock()
}

// Run drives the fade engine until ctx is done.
func (c *Console) Run(ctx context.Context) {
	c.logger().Infof("fade engine running every %s", c.opts.TickInterval)
	c.Channels.Run(ctx, c.opts.TickInterval)
}

// PublishAll sends every state topic once.
func (c *Console) PublishAll() {
	c.publishSnapshot(c.Channels.Snapshot())
	c.pub.Publish(TopicPlayback, c.Playback.State())
	c.pub.Publish(TopicEffects, c.Effects.Status())
	c.pub.Publish(TopicMappings, c.Mappings.All())
	c.pub.Publish(TopicExecutors, c.Executors.List())
	c.pub.Publish(TopicProgrammer, c.Programmer.State())
}

// Shutdown stops every producer and blacks the universe out.
func (c *Console) Shutdown() {
	c.Effects.StopAll()
	if err := c.Playback.Stop(); err != nil {
		c.logger().Warnf("stop playback: %v", err)
	}
	c.Channels.ClearAll()
	c.logger().Info("console stopped")
}

func (c *Console) publishSnapshot(s dmx.Snapshot) {
	c.pub.Publish(TopicDMX, DMXState{Channels: s.Map(), Degraded: s.Degraded})
}

// faderMoved broadcasts the executors and echoes the level to every
// absolute CC control bound to the executor.
func (c *Console) faderMoved(f executor.Fader) {
	c.pub.Publish(TopicExecutors, c.Executors.List())
	c.fbMu.RLock()
	fb := c.feedback
	c.fbMu.RUnlock()
	if fb == nil {
		return
	}
	for _, m := range c.Mappings.ExecutorControls(f.ID) {
		msg, ok := midimap.Feedback(m, f.FaderValue)
		if !ok {
			continue
		}
		if err := fb.Send(msg); err != nil {
			c.logger().Debugf("fader feedback: %v", err)
		}
	}
}
