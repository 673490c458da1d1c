package playback

import (
	"lightdesk/internal/dmx"
	"lightdesk/internal/show"
)

// Status of the playback transport.
type Status string

const (
	Stopped Status = "stopped"
	Playing Status = "playing"
	Paused  Status = "paused"
)

// State is the single global playback transport.
type State struct {
	CuelistID       string `json:"cuelist_id"`
	CueIndex        int    `json:"cue_index"`
	Status          Status `json:"status"`
	MasterIntensity int    `json:"master_intensity"`
}

// Cuelists reads cuelists by id.
type Cuelists interface {
	Cuelist(id string) (show.Cuelist, bool)
}

// Resolver turns a fixture attribute into a channel.
type Resolver interface {
	Resolve(fixtureID, attribute string) (show.Target, error)
}

// Channels is the write side of the channel store.
type Channels interface {
	Write(channel, value int, fade float64, src dmx.Source) error
	Lit() []int
}

// Notifier receives the playback state after every change.
type Notifier func(State)
