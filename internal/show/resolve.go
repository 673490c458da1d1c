package show

import (
	"fmt"

	"lightdesk/internal/apperr"
)

// Target is a resolved (fixture, attribute) pair.
type Target struct {
	Channel   int
	Attribute Attribute
}

// Resolve translates a fixture attribute into an absolute channel:
// start_channel + attribute offset.
func (s *Store) Resolve(fixtureID, attribute string) (Target, error) {
	f, ok := s.Fixture(fixtureID)
	if !ok {
		return Target{}, apperr.NotFound("fixture", fixtureID)
	}
	p, ok := s.Personality(f.PersonalityID)
	if !ok {
		return Target{}, apperr.NotFound("personality", f.PersonalityID)
	}
	a, ok := p.Attribute(attribute)
	if !ok {
		return Target{}, fmt.Errorf("attribute %q of personality %q: %w", attribute, p.Name, apperr.ErrNotFound)
	}
	ch := f.StartChannel + a.Offset
	if ch < 1 || ch > 512 {
		return Target{}, apperr.OutOfRange("channel", ch, 1, 512)
	}
	return Target{Channel: ch, Attribute: a}, nil
}
