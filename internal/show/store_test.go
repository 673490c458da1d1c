package show

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lightdesk/internal/apperr"
)

func rgbPersonality() Personality {
	return Personality{
		ID:          "par",
		Name:        "LED Par",
		NumChannels: 4,
		Attributes: []Attribute{
			{Name: "dimmer", Offset: 0},
			{Name: "red", Offset: 1},
			{Name: "green", Offset: 2},
			{Name: "blue", Offset: 3, Min: 10, Max: 200},
		},
	}
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if _, err := s.PutPersonality(rgbPersonality()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutFixture(Fixture{ID: "f1", Name: "Par 1", StartChannel: 1, PersonalityID: "par"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutFixture(Fixture{ID: "f2", Name: "Par 2", StartChannel: 11, PersonalityID: "par"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestResolve(t *testing.T) {
	s := setupStore(t)
	tg, err := s.Resolve("f2", "green")
	if err != nil {
		t.Fatal(err)
	}
	if tg.Channel != 13 {
		t.Errorf("got channel %d, want 13", tg.Channel)
	}

	if _, err := s.Resolve("nope", "green"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
	if _, err := s.Resolve("f1", "pan"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
}

func TestAttributeClamp(t *testing.T) {
	p := rgbPersonality()
	blue, _ := p.Attribute("blue")
	if got := blue.Clamp(255); got != 200 {
		t.Errorf("got %d, want 200", got)
	}
	if got := blue.Clamp(0); got != 10 {
		t.Errorf("got %d, want 10", got)
	}
	dimmer, _ := p.Attribute("dimmer")
	if got := dimmer.Clamp(255); got != 255 {
		t.Errorf("full range attribute clamped: %d", got)
	}
}

func TestFixtureConflicts(t *testing.T) {
	s := setupStore(t)
	_, err := s.PutFixture(Fixture{Name: "Par 3", StartChannel: 11, PersonalityID: "par"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("got %v, want Conflict", err)
	}
	_, err = s.PutFixture(Fixture{Name: "Par 3", StartChannel: 21, PersonalityID: "missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
	if err := s.DeletePersonality("par"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("got %v, want Conflict", err)
	}
	if len(s.Fixtures()) != 2 {
		t.Errorf("rejected writes changed the patch: %v", s.Fixtures())
	}
}

func TestPersonalityValidation(t *testing.T) {
	s := NewStore()
	p := rgbPersonality()
	p.Attributes = append(p.Attributes, Attribute{Name: "white", Offset: 1})
	if _, err := s.PutPersonality(p); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate offset: got %v, want Conflict", err)
	}
	p = rgbPersonality()
	p.Attributes[0].Offset = 9
	if _, err := s.PutPersonality(p); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("offset beyond footprint: got %v, want ValidationError", err)
	}
}

func TestCuelistLifecycle(t *testing.T) {
	s := setupStore(t)
	cl, err := s.PutCuelist(Cuelist{Name: " Act 1 "})
	if err != nil {
		t.Fatal(err)
	}
	if cl.Name != "Act 1" || cl.ID == "" {
		t.Fatalf("unexpected cuelist %+v", cl)
	}
	if cl.FadeOutTime() != DefaultFadeOut {
		t.Errorf("got fade out %v, want %v", cl.FadeOutTime(), DefaultFadeOut)
	}
	if _, err := s.PutCuelist(Cuelist{Name: "Act 1"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("got %v, want Conflict", err)
	}

	cue, err := s.AddCue(cl.ID, Cue{Name: "Open", FadeIn: 2, Values: []CueValue{{FixtureID: "f1", Attribute: "dimmer", Value: 255}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddCue(cl.ID, Cue{Name: "Bad", FadeIn: 1000}); !errors.Is(err, apperr.ErrOutOfRange) {
		t.Errorf("got %v, want OutOfRange", err)
	}

	cue.Name = "Open wide"
	cue.DelayIn = 3
	if _, err := s.UpdateCue(cl.ID, cue); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Cuelist(cl.ID)
	if len(got.Cues) != 1 || got.Cues[0].Name != "Open wide" || got.Cues[0].DelayIn != 3 {
		t.Fatalf("got %+v", got.Cues)
	}

	// returned copies must not alias the store.
	got.Cues[0].Values[0].Value = 1
	again, _ := s.Cuelist(cl.ID)
	if again.Cues[0].Values[0].Value != 255 {
		t.Error("cuelist copy aliases the store")
	}

	if err := s.DeleteCue(cl.ID, cue.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCue(cl.ID, cue.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
}

func TestExecutorNeedsCuelist(t *testing.T) {
	s := setupStore(t)
	if _, err := s.PutExecutor(Executor{Name: "Main", CuelistID: "missing"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("got %v, want NotFound", err)
	}
	cl, _ := s.PutCuelist(Cuelist{Name: "Main"})
	e, err := s.PutExecutor(Executor{Name: "Main", CuelistID: cl.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := s.Executor(e.ID); !ok || got.CuelistID != cl.ID {
		t.Errorf("got %+v", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show", "show.yaml")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutPersonality(rgbPersonality()); err != nil {
		t.Fatal(err)
	}
	fade := 2.5
	if _, err := s.PutFixture(Fixture{ID: "f1", Name: "Par 1", StartChannel: 1, PersonalityID: "par"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutCuelist(Cuelist{ID: "c1", Name: "Main", FadeOut: &fade}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Fixtures()) != 1 || len(loaded.Personalities()) != 1 {
		t.Fatalf("got %d fixtures, %d personalities", len(loaded.Fixtures()), len(loaded.Personalities()))
	}
	cl, ok := loaded.Cuelist("c1")
	if !ok || cl.FadeOutTime() != 2.5 {
		t.Errorf("got %+v", cl)
	}
}

const showHead = `
personalities:
  - id: dim
    name: Dimmer
    num_channels: 1
    attributes:
      - {name: dimmer, offset: 0}
`

func TestLoadRejectsInvalidShow(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "shared start channel",
			body: showHead + `
fixtures:
  - {id: a, name: A, start_channel: 1, personality_id: dim}
  - {id: b, name: B, start_channel: 1, personality_id: dim}
`,
			want: apperr.ErrConflict,
		},
		{
			name: "duplicate cuelist name",
			body: showHead + `
cuelists:
  - {id: c1, name: X}
  - {id: c2, name: X}
`,
			want: apperr.ErrConflict,
		},
		{
			name: "cue fade out of range",
			body: showHead + `
cuelists:
  - id: c1
    name: Main
    cues:
      - {id: q1, name: Slow, fade_in: 5000}
`,
			want: apperr.ErrOutOfRange,
		},
		{
			name: "unknown personality",
			body: showHead + `
fixtures:
  - {id: a, name: A, start_channel: 1, personality_id: spot}
`,
			want: apperr.ErrNotFound,
		},
		{
			name: "executor without cuelist",
			body: showHead + `
executors:
  - {id: x1, name: Main, cuelist_id: nope}
`,
			want: apperr.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "show.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			s, err := Load(path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if s != nil {
				t.Error("rejected show returned a store")
			}
		})
	}
}

func TestLoadValidShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.yaml")
	body := showHead + `
fixtures:
  - {id: a, name: A, start_channel: 1, personality_id: dim}
  - {id: b, name: B, start_channel: 2, personality_id: dim}
cuelists:
  - id: c1
    name: Main
    cues:
      - {id: q1, name: Go, fade_in: 2, values: [{fixture_id: a, attribute: dimmer, value: 255}]}
executors:
  - {id: x1, name: Main, cuelist_id: c1}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Fixtures()) != 2 || len(s.Executors()) != 1 {
		t.Errorf("got %d fixtures, %d executors", len(s.Fixtures()), len(s.Executors()))
	}
}

func TestFailedWriteKeepsShow(t *testing.T) {
	s := NewStore()
	if _, err := s.PutPersonality(rgbPersonality()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutFixture(Fixture{ID: "f1", Name: "Par 1", StartChannel: 1, PersonalityID: "par"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutCuelist(Cuelist{ID: "c1", Name: "Main", Cues: []Cue{{ID: "q1", Name: "One"}, {ID: "q2", Name: "Two"}}}); err != nil {
		t.Fatal(err)
	}

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s.path = filepath.Join(blocker, "show.yaml")

	if _, err := s.PutFixture(Fixture{ID: "f2", Name: "Par 2", StartChannel: 9, PersonalityID: "par"}); err == nil {
		t.Fatal("expected a write error")
	}
	if err := s.DeleteFixture("f1"); err == nil {
		t.Fatal("expected a write error")
	}
	if err := s.DeleteCue("c1", "q1"); err == nil {
		t.Fatal("expected a write error")
	}

	if fx := s.Fixtures(); len(fx) != 1 || fx[0].ID != "f1" {
		t.Errorf("failed writes changed the patch: %+v", fx)
	}
	cl, _ := s.Cuelist("c1")
	if len(cl.Cues) != 2 || cl.Cues[0].ID != "q1" || cl.Cues[1].ID != "q2" {
		t.Errorf("failed write changed the cues: %+v", cl.Cues)
	}
}
