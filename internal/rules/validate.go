package rules

import (
	"fmt"
	"strings"
)

// Normalize lower-cases and trims req, then checks its shape before any board lookup.
func Normalize(req MoveRequest) (MoveRequest, error) {
	req.From = strings.ToLower(strings.TrimSpace(req.From))
	req.To = strings.ToLower(strings.TrimSpace(req.To))
	req.Promotion = strings.ToLower(strings.TrimSpace(req.Promotion))

	if !validSquare(req.From) {
		return req, reject(fmt.Sprintf("malformed square %q", req.From))
	}
	if !validSquare(req.To) {
		return req, reject(fmt.Sprintf("malformed square %q", req.To))
	}
	if req.From == req.To {
		return req, reject("from and to squares are the same")
	}
	switch req.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return req, reject(fmt.Sprintf("malformed promotion %q", req.Promotion))
	}
	return req, nil
}

func validSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}
