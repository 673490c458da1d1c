package dmx

// Output is the lighting interface capability: batch channel writes and blackout.
// Channels in Update are 1..512.
type Output interface {
	Update(values map[int]uint8) error
	Blackout() error
}

// NullOutput accepts every write and drives nothing.
type NullOutput struct{}

func (NullOutput) Update(map[int]uint8) error { return nil }

func (NullOutput) Blackout() error { return nil }

// Publisher receives a snapshot after every tick that changed at least one channel.
type Publisher func(Snapshot)
