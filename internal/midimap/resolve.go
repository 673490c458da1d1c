package midimap

// ActionKind says what a resolved message does to its target.
type ActionKind int

const (
	// Set replaces the target level with Value.
	Set ActionKind = iota
	// Nudge adds Delta to the target level.
	Nudge
	// Ignore is an encoder byte that is neither increment nor decrement.
	Ignore
)

// Action is the outcome of one message.
type Action struct {
	Kind    ActionKind
	Mapping Mapping
	Value   int
	Delta   int
}

// Lookup finds a mapping by key.
type Lookup interface {
	Find(Key) (Mapping, bool)
}

// Resolve picks the mapping for msg and computes its action. For control
// changes encoder mappings win over absolute ones and executors over the
// programmer; the first match decides, whatever the data byte. It reports
// false when no mapping matches.
func Resolve(msg Message, table Lookup) (Action, bool) {
	var order []Key
	switch msg.Kind {
	case ControlChange:
		order = []Key{
			{TargetExecutor, RelativeEncoder, msg.Channel, msg.Control},
			{TargetProgrammer, RelativeEncoder, msg.Channel, msg.Control},
			{TargetExecutor, AbsoluteCC, msg.Channel, msg.Control},
			{TargetProgrammer, AbsoluteCC, msg.Channel, msg.Control},
		}
	case NoteOn:
		order = []Key{
			{TargetExecutor, AbsoluteNote, msg.Channel, msg.Control},
			{TargetProgrammer, AbsoluteNote, msg.Channel, msg.Control},
		}
	}

	for _, k := range order {
		m, ok := table.Find(k)
		if !ok {
			continue
		}
		return action(m, msg.Value), true
	}
	return Action{}, false
}

func action(m Mapping, data int) Action {
	if m.Kind == RelativeEncoder && m.Relative != nil {
		switch data {
		case m.Relative.Increment:
			return Action{Kind: Nudge, Mapping: m, Delta: m.Relative.Step}
		case m.Relative.Decrement:
			return Action{Kind: Nudge, Mapping: m, Delta: -m.Relative.Step}
		}
		return Action{Kind: Ignore, Mapping: m}
	}
	if m.Absolute == nil {
		return Action{Kind: Ignore, Mapping: m}
	}
	return Action{Kind: Set, Mapping: m, Value: m.Absolute.Remap(data)}
}
