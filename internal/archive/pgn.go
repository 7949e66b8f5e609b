package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-relay/internal/room"
)

// BuildPGN renders res as PGN. Unfinished games carry the "*" result.
func BuildPGN(res room.Result) string {
	var b strings.Builder
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(res.Outcome)

	b.WriteString("[Event \"Relay game\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.RoomID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", orUnknown(res.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", orUnknown(res.Black)))
	if m := strings.TrimSpace(res.Method); m != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(m)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(res.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s ", i/2+1, strings.TrimSpace(res.MovesSAN[i])))
		if i+1 < len(res.MovesSAN) {
			b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	b.WriteString("\n")
	return b.String()
}

// PGNFileName is a download name safe for Content-Disposition.
func PGNFileName(roomID string) string {
	var b strings.Builder
	for _, r := range roomID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "game.pgn"
	}
	return b.String() + ".pgn"
}

func pgnResult(outcome string) string {
	switch strings.TrimSpace(outcome) {
	case "1-0", "0-1", "1/2-1/2":
		return outcome
	default:
		return "*"
	}
}

func orUnknown(name string) string {
	if s := sanitizePGN(name); s != "" {
		return s
	}
	return "?"
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
