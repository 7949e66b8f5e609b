package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/chess-relay/internal/relayclient"
	"github.com/park285/chess-relay/pkg/relaydto"
)

func main() {
	wsURL := getenv("RELAY_WS_URL", "ws://localhost:5000/ws")
	roomID := getenv("ROOM_ID", "check-"+uuid.NewString()[:8])
	name := getenv("DISPLAY_NAME", "relaycheck")
	moves := strings.Fields(os.Getenv("MOVES"))
	window := 10 * time.Second
	if v := strings.TrimSpace(os.Getenv("OBSERVE_SEC")); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			window = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := relayclient.Dial(ctx, wsURL,
		relayclient.WithPingInterval(15*time.Second),
		relayclient.WithHeader("Origin", os.Getenv("RELAY_ORIGIN")),
	)
	if err != nil {
		log.Fatalf("dial error: %v", err)
	}
	defer func() { _ = client.Close() }()

	client.OnEvent(func(env relaydto.Envelope) {
		fmt.Printf("<- %s %s\n", env.Event, string(env.Data))
	})

	if err := client.Join(ctx, roomID, name); err != nil {
		log.Fatalf("join error: %v", err)
	}
	log.Printf("joined room=%s as %q", roomID, name)

	for _, mv := range moves {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if len(mv) < 4 {
			log.Printf("skip malformed move %q", mv)
			continue
		}
		req := relaydto.MovePayload{From: mv[:2], To: mv[2:4], Promotion: mv[4:]}
		if err := client.Move(ctx, roomID, req); err != nil {
			log.Printf("move %s error: %v", mv, err)
		}
	}

	// Observe for a short window
	t := time.NewTimer(window)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			return
		case _, ok := <-client.Events():
			if !ok {
				log.Println("connection closed by relay")
				return
			}
		}
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
