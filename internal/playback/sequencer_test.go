package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"lightdesk/internal/apperr"
	"lightdesk/internal/dmx"
	"lightdesk/internal/logger"
	"lightdesk/internal/show"
)

var epoch = time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

type write struct {
	channel int
	value   int
	fade    float64
}

type recordChannels struct {
	mu     sync.Mutex
	writes []write
	levels map[int]int
}

func (r *recordChannels) Write(channel, value int, fade float64, _ dmx.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{channel, value, fade})
	r.levels[channel] = value
	return nil
}

func (r *recordChannels) Lit() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lit []int
	for ch := 1; ch <= dmx.Channels; ch++ {
		if r.levels[ch] > 0 {
			lit = append(lit, ch)
		}
	}
	return lit
}

func (r *recordChannels) level(channel int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[channel]
}

func (r *recordChannels) take() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.writes
	r.writes = nil
	return w
}

type fixture struct {
	store    *show.Store
	clock    *clock.Mock
	channels *recordChannels
	seq      *Sequencer

	mu     sync.Mutex
	states []State
}

func setupShow(t *testing.T) *show.Store {
	t.Helper()
	s := show.NewStore()
	if _, err := s.PutPersonality(show.Personality{
		ID: "dim", Name: "Dimmer", NumChannels: 2,
		Attributes: []show.Attribute{{Name: "dimmer", Offset: 0}, {Name: "color", Offset: 1, Max: 100}},
	}); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"f1", "f2"} {
		if _, err := s.PutFixture(show.Fixture{ID: id, Name: id, StartChannel: 1 + 10*i, PersonalityID: "dim"}); err != nil {
			t.Fatal(err)
		}
	}
	cues := []show.Cue{
		{ID: "q1", Name: "One", FadeIn: 2.0, DelayIn: 0, Values: []show.CueValue{{FixtureID: "f1", Attribute: "dimmer", Value: 200}}},
		{ID: "q2", Name: "Two", FadeIn: 1.0, DelayIn: 5.0, Values: []show.CueValue{
			{FixtureID: "f1", Attribute: "dimmer", Value: 100},
			{FixtureID: "f2", Attribute: "dimmer", Value: 255},
		}},
	}
	if _, err := s.PutCuelist(show.Cuelist{ID: "main", Name: "Main", Cues: cues}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutCuelist(show.Cuelist{ID: "empty", Name: "Empty"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    setupShow(t),
		clock:    clock.NewMock(),
		channels: &recordChannels{levels: make(map[int]int)},
	}
	f.clock.Set(epoch)
	opts = append(opts, WithNotifier(func(s State) {
		f.mu.Lock()
		f.states = append(f.states, s)
		f.mu.Unlock()
	}))
	f.seq = NewSequencer(logger.NewNop(), f.clock, f.store, f.store, f.channels, opts...)
	return f
}

func (f *fixture) emitted() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

// armed reports whether an auto-advance is scheduled.
func (f *fixture) armed() bool {
	f.seq.mu.Lock()
	defer f.seq.mu.Unlock()
	return f.seq.timer != nil
}

// waitState polls until cond holds. Timer callbacks of the mock clock run
// on their own goroutine, so an advance is observed shortly after Add returns.
func (f *fixture) waitState(t *testing.T, what string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := f.seq.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: state stuck at %+v", what, st)
		}
		time.Sleep(time.Millisecond)
	}
}

func stopped(st State) bool { return st.Status == Stopped }

func TestStartErrors(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("missing", 255); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
	if err := f.seq.Start("empty", 255); !errors.Is(err, apperr.ErrEmpty) {
		t.Errorf("got %v, want ErrEmpty", err)
	}
	if st := f.seq.State(); st.Status != Stopped || st.CueIndex != -1 {
		t.Errorf("failed start mutated state: %+v", st)
	}
}

func TestManualGoScenario(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	w := f.channels.take()
	if len(w) != 1 || w[0] != (write{1, 200, 2.0}) {
		t.Fatalf("cue 0 writes: got %v", w)
	}

	// delay_in 0 means wait for a manual go.
	if f.armed() {
		t.Error("auto-advance armed for a cue without delay")
	}
	f.clock.Add(time.Minute)
	if st := f.seq.State(); st.CueIndex != 0 || st.Status != Playing {
		t.Fatalf("auto-advanced without delay: %+v", st)
	}

	if err := f.seq.Next(); err != nil {
		t.Fatal(err)
	}
	w = f.channels.take()
	if len(w) != 2 || w[0] != (write{1, 100, 1.0}) || w[1] != (write{11, 255, 1.0}) {
		t.Fatalf("cue 1 writes: got %v", w)
	}

	f.clock.Add(4900 * time.Millisecond)
	if st := f.seq.State(); st.Status != Playing {
		t.Fatalf("stopped before delay elapsed: %+v", st)
	}
	f.clock.Add(100 * time.Millisecond)
	st := f.waitState(t, "auto stop after last cue", stopped)
	if st.Status != Stopped || st.CueIndex != -1 || st.CuelistID != "" {
		t.Fatalf("expected auto stop after last cue, got %+v", st)
	}
	// stop fades every lit channel to zero over the default fade out.
	w = f.channels.take()
	if len(w) != 2 || w[0] != (write{1, 0, show.DefaultFadeOut}) || w[1] != (write{11, 0, show.DefaultFadeOut}) {
		t.Errorf("fade out writes: got %v", w)
	}
}

func TestAutoAdvanceChain(t *testing.T) {
	f := setup(t)
	cues := []show.Cue{
		{Name: "A", DelayIn: 1, Values: []show.CueValue{{FixtureID: "f1", Attribute: "dimmer", Value: 10}}},
		{Name: "B", DelayIn: 1, Values: []show.CueValue{{FixtureID: "f1", Attribute: "dimmer", Value: 20}}},
		{Name: "C", Values: []show.CueValue{{FixtureID: "f1", Attribute: "dimmer", Value: 30}}},
	}
	if _, err := f.store.PutCuelist(show.Cuelist{ID: "chain", Name: "Chain", Cues: cues}); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Start("chain", 255); err != nil {
		t.Fatal(err)
	}
	f.clock.Add(time.Second)
	f.waitState(t, "cue B", func(st State) bool { return st.CueIndex == 1 })
	f.clock.Add(time.Second)
	f.waitState(t, "cue C", func(st State) bool { return st.CueIndex == 2 })
	f.clock.Add(500 * time.Millisecond)
	if st := f.seq.State(); st.CueIndex != 2 || st.Status != Playing {
		t.Fatalf("got %+v, want cue 2 playing", st)
	}
	if got := f.channels.level(1); got != 30 {
		t.Errorf("got level %d, want 30", got)
	}
}

func TestPrevAtBoundary(t *testing.T) {
	f := setup(t)
	if err := f.seq.Prev(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("prev while stopped: got %v", err)
	}
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	f.channels.take()
	if err := f.seq.Prev(); !errors.Is(err, apperr.ErrAtBoundary) {
		t.Fatalf("got %v, want AtBoundary", err)
	}
	if st := f.seq.State(); st.CueIndex != 0 || st.Status != Playing {
		t.Errorf("boundary changed state: %+v", st)
	}
	if len(f.channels.take()) != 0 {
		t.Error("boundary wrote channels")
	}

	if err := f.seq.Next(); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Prev(); err != nil {
		t.Fatal(err)
	}
	if st := f.seq.State(); st.CueIndex != 0 {
		t.Errorf("got index %d, want 0", st.CueIndex)
	}
	// going back cancels the delay armed by cue 1.
	f.clock.Add(10 * time.Second)
	if st := f.seq.State(); st.Status != Playing {
		t.Errorf("stale timer fired: %+v", st)
	}
}

func TestPauseResume(t *testing.T) {
	f := setup(t)
	if err := f.seq.Pause(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("pause while stopped: got %v", err)
	}
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Next(); err != nil {
		t.Fatal(err)
	}
	f.clock.Add(3 * time.Second)
	if err := f.seq.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Pause(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("double pause: got %v", err)
	}
	f.clock.Add(time.Minute)
	st := f.seq.State()
	if st.Status != Paused || st.CueIndex != 1 {
		t.Fatalf("paused playback moved: %+v", st)
	}

	f.channels.take()
	if err := f.seq.Resume(); err != nil {
		t.Fatal(err)
	}
	if w := f.channels.take(); len(w) != 2 || w[0].fade != 1.0 {
		t.Errorf("resume should re-apply the cue with its fade: %v", w)
	}
	// the delay restarts in full from resume.
	f.clock.Add(4 * time.Second)
	if f.seq.State().Status != Playing {
		t.Fatal("delay not restarted from resume")
	}
	f.clock.Add(time.Second)
	f.waitState(t, "stop after resumed delay", stopped)
}

func TestStopIsIdempotent(t *testing.T) {
	f := setup(t)
	if err := f.seq.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Stop(); err != nil {
		t.Fatal(err)
	}
	if n := len(f.emitted()); n != 0 {
		t.Errorf("no-op stop emitted %d states", n)
	}
}

func TestStopCancelsTimerAndKeepsMaster(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("main", 128); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Next(); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Stop(); err != nil {
		t.Fatal(err)
	}
	if f.armed() {
		t.Error("stop left the auto-advance armed")
	}
	if st := f.seq.State(); st.MasterIntensity != 128 {
		t.Errorf("master reset by stop: %d", st.MasterIntensity)
	}
	if err := f.seq.Next(); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("next while stopped: got %v", err)
	}
}

func TestStopTrackedOnly(t *testing.T) {
	f := setup(t, WithTrackedStop(true))
	// channel 100 is lit by another producer.
	if err := f.channels.Write(100, 255, 0, dmx.SourceEffect); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	f.channels.take()
	if err := f.seq.Stop(); err != nil {
		t.Fatal(err)
	}
	w := f.channels.take()
	if len(w) != 1 || w[0].channel != 1 || w[0].value != 0 {
		t.Errorf("got %v, want only channel 1 faded", w)
	}
}

func TestMasterIntensity(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	f.channels.take()

	if err := f.seq.SetMasterIntensity(300); err != nil {
		t.Fatal(err)
	}
	if w := f.channels.take(); len(w) != 0 {
		t.Errorf("unchanged master (clamped to 255) re-applied the cue: %v", w)
	}

	if err := f.seq.SetMasterIntensity(128); err != nil {
		t.Fatal(err)
	}
	w := f.channels.take()
	// round(200 * 128 / 255) = round(100.39) = 100, written without fade.
	if len(w) != 1 || w[0] != (write{1, 100, 0}) {
		t.Errorf("got %v", w)
	}
	if f.seq.State().MasterIntensity != 128 {
		t.Errorf("got master %d", f.seq.State().MasterIntensity)
	}
}

func TestMasterIntensityKeepsPendingAdvance(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("main", 255); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Next(); err != nil {
		t.Fatal(err)
	}
	f.clock.Add(3 * time.Second)
	if err := f.seq.SetMasterIntensity(10); err != nil {
		t.Fatal(err)
	}
	f.clock.Add(2 * time.Second)
	f.waitState(t, "auto-advance after master change", stopped)
}

func TestAttributeRangeAppliesBeforeMaster(t *testing.T) {
	f := setup(t)
	cues := []show.Cue{{Name: "Color", Values: []show.CueValue{{FixtureID: "f1", Attribute: "color", Value: 255}}}}
	if _, err := f.store.PutCuelist(show.Cuelist{ID: "color", Name: "Color", Cues: cues}); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Start("color", 255); err != nil {
		t.Fatal(err)
	}
	if w := f.channels.take(); len(w) != 1 || w[0].value != 100 {
		t.Errorf("got %v, want value clamped to attribute max 100", w)
	}
}

func TestUnresolvedValuesAreSkipped(t *testing.T) {
	f := setup(t)
	cues := []show.Cue{{Name: "Mixed", Values: []show.CueValue{
		{FixtureID: "ghost", Attribute: "dimmer", Value: 255},
		{FixtureID: "f2", Attribute: "dimmer", Value: 50},
	}}}
	if _, err := f.store.PutCuelist(show.Cuelist{ID: "mixed", Name: "Mixed", Cues: cues}); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Start("mixed", 255); err != nil {
		t.Fatal(err)
	}
	if w := f.channels.take(); len(w) != 1 || w[0].channel != 11 {
		t.Errorf("got %v", w)
	}
}

func TestScaleMaster(t *testing.T) {
	for v := 0; v <= 255; v++ {
		if got := ScaleMaster(uint8(v), 255); int(got) != v {
			t.Fatalf("master 255 changed %d to %d", v, got)
		}
		prev := uint8(0)
		for m := 0; m <= 255; m += 5 {
			got := ScaleMaster(uint8(v), m)
			if got < prev {
				t.Fatalf("value %d: master %d gave %d after %d", v, m, got, prev)
			}
			prev = got
		}
	}
}

func TestStatesAreEmitted(t *testing.T) {
	f := setup(t)
	if err := f.seq.Start("main", 200); err != nil {
		t.Fatal(err)
	}
	if err := f.seq.Pause(); err != nil {
		t.Fatal(err)
	}
	states := f.emitted()
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}
	if states[0].Status != Playing || states[0].MasterIntensity != 200 || states[1].Status != Paused {
		t.Errorf("got %+v", states)
	}
}
