package clientmqtt

// Handler receives a command by name with its raw JSON payload.
type Handler func(name string, payload []byte) error

const cmdSegment = "cmd"

// Topic levels that are published retained: the latest value is the state.
var retainedRoots = map[string]bool{
	"state": true,
}
