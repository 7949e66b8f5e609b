package relaydto

import "time"

// MoveEntry is one accepted move as sent to clients.
type MoveEntry struct {
	From     string `json:"from"`
	To       string `json:"to"`
	SAN      string `json:"san"`
	Color    string `json:"color"`
	Captured string `json:"captured,omitempty"`
}

// Snapshot brings a client's view in sync with the authoritative room.
type Snapshot struct {
	Position string      `json:"position"`
	MoveLog  []MoveEntry `json:"moveLog"`
	Outcome  string      `json:"outcome,omitempty"`
	Method   string      `json:"method,omitempty"`
}

type SeatNotice struct {
	Seat  string `json:"seat"`
	Color string `json:"color,omitempty"`
}

type RosterEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Seat        string `json:"seat"`
	Color       string `json:"color"`
}

type Roster struct {
	Players []RosterEntry `json:"players"`
}

type ParticipantCount struct {
	Count int `json:"count"`
}

// RoomSummary is the read-only view served over HTTP.
type RoomSummary struct {
	RoomID           string `json:"roomId"`
	ParticipantCount int    `json:"participantCount"`
	MoveCount        int    `json:"moveCount"`
	SideToMove       string `json:"sideToMove"`
	Outcome          string `json:"outcome,omitempty"`
	Method           string `json:"method,omitempty"`
}

// GameFinished is POSTed to the result webhook once a room reaches a terminal outcome.
type GameFinished struct {
	RoomID    string    `json:"roomId"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"`
	Method    string    `json:"method,omitempty"`
	Plies     int       `json:"plies"`
	FinalFEN  string    `json:"finalFen"`
	PGN       string    `json:"pgn"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}
