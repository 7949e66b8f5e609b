package relaydto

// Rejection is delivered privately to the requester of a refused move.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProtocolError answers frames the relay could not understand.
type ProtocolError struct {
	Message string `json:"message"`
}
