package session

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotAParticipant = errors.New("not a participant")
	ErrOutOfTurn       = errors.New("out of turn")
	ErrIllegalMove     = errors.New("illegal move")

	ErrEmptyRoomID = errors.New("room id required")
)

// MoveError is a refused move. It unwraps to its kind so errors.Is works on the sentinels.
type MoveError struct {
	Kind   error
	Reason string
}

func (e *MoveError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *MoveError) Unwrap() error { return e.Kind }

// Code is the wire name of the kind.
func (e *MoveError) Code() string {
	switch e.Kind {
	case ErrRoomNotFound:
		return "RoomNotFound"
	case ErrNotAParticipant:
		return "NotAParticipant"
	case ErrOutOfTurn:
		return "OutOfTurn"
	default:
		return "IllegalMove"
	}
}

func illegal(reason string) *MoveError {
	return &MoveError{Kind: ErrIllegalMove, Reason: reason}
}
