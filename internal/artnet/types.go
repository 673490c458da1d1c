package artnet

import "sync"

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

func (u Universe) toByteSlice() [512]byte {
	return u
}

// State хранит последний кадр вселенной.
type State struct {
	mu    sync.Mutex
	frame Universe
}

// NewState конструктор.
func NewState() *State {
	return &State{}
}

// SetChannels applies a batch of channel values (1..512) and returns the new frame.
func (s *State) SetChannels(values map[int]uint8) Universe {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, v := range values {
		if ch < 1 || ch > len(s.frame) {
			continue
		}
		s.frame[ch-1] = v
	}
	return s.frame
}

// Reset zeroes every channel and returns the empty frame.
func (s *State) Reset() Universe {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = Universe{}
	return s.frame
}

// Get returns a copy of the current frame.
func (s *State) Get() Universe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Node is a discovered Art-Net node as published to observers.
type Node struct {
	Name      string   `json:"name"`
	IP        string   `json:"ip"`
	Type      string   `json:"type"`
	Outputs   []string `json:"outputs"`
	Universes []uint16 `json:"universes"`
}
