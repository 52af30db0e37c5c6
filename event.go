package neighbournet

import (
	"time"
)

// Event kinds delivered over live channels.
const (
	EventNearbyRequest string = "request:nearby"
	EventRequestUpdate string = "request:update"
)

// Event is the wire format for realtime notifications. Payload carries the
// full current state of the request that triggered the event.
type Event struct {
	Kind      string    `json:"kind"`
	Target    string    `json:"target,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
