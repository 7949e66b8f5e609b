package relaydto

import "encoding/json"

// Event names carried in Envelope.Event.
const (
	EventJoin = "join"
	EventMove = "move"

	EventSeatAssigned     = "seatAssigned"
	EventMoveRejected     = "moveRejected"
	EventStateSnapshot    = "stateSnapshot"
	EventRosterUpdate     = "rosterUpdate"
	EventParticipantCount = "participantCount"
	EventError            = "error"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
