package relaydto

type JoinRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type MoveRequest struct {
	RoomID string      `json:"roomId"`
	Move   MovePayload `json:"move"`
}
