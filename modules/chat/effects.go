package chat

// Scope selects who receives an Effect.
type Scope string

const (
	ScopeConnection Scope = "connection"
	ScopeRoom       Scope = "room"
	ScopeAll        Scope = "all"
)

// Effect is one outbound event computed by the Engine. Recipients is resolved
// when the effect is produced, so delivery never consults engine state.
type Effect struct {
	Scope        Scope    `json:"scope"`
	RoomID       string   `json:"roomId,omitempty"`
	ConnectionID string   `json:"connectionId,omitempty"`
	Recipients   []string `json:"recipients"`
	Event        string   `json:"event"`
	Payload      any      `json:"payload"`
}

// Events returns the event names of effects in order. Handy in logs and tests.
func Events(effects []Effect) []string {
	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = e.Event
	}
	return names
}

// For returns the effects addressed to connID.
func For(effects []Effect, connID string) []Effect {
	var out []Effect
	for _, e := range effects {
		for _, r := range e.Recipients {
			if r == connID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
