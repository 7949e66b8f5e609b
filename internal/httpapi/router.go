package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/archive"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/pkg/relaydto"
)

// Rooms is the read-only view of the registry the HTTP surface needs.
type Rooms interface {
	Summary(roomID string) (relaydto.RoomSummary, bool)
	Result(roomID string) (room.Result, bool)
	RoomIDs() []string
	RoomCount() int
}

// Connections reports live WebSocket connections.
type Connections interface {
	Len() int
}

type Deps struct {
	Rooms       Rooms
	Connections Connections
	WS          http.Handler
}

// NewRouter serves /ws straight from the hub and everything else through gin.
// The upgrade cannot run behind gin: nhooyr writes the 101 before hijacking,
// and gin's writer refuses to hijack once a status has been written.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	if d.WS != nil {
		mux.Handle("/ws", d.WS)
	}
	mux.Handle("/", newEngine(d))
	return mux
}

func newEngine(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	r.GET("/healthz", HealthHandler(d))
	r.GET("/rooms", RoomListHandler(d.Rooms))
	r.GET("/rooms/:id", RoomHandler(d.Rooms))
	r.GET("/rooms/:id/pgn", PGNHandler(d.Rooms))
	return r
}

func HealthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		conns := 0
		if d.Connections != nil {
			conns = d.Connections.Len()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       d.Rooms.RoomCount(),
			"connections": conns,
		})
	}
}

func RoomListHandler(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.RoomIDs()})
	}
}

func RoomHandler(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, ok := rooms.Summary(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func PGNHandler(rooms Rooms) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := rooms.Result(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.Header("Content-Disposition", `inline; filename="`+archive.PGNFileName(res.RoomID)+`"`)
		c.Data(http.StatusOK, "application/x-chess-pgn; charset=utf-8", []byte(archive.BuildPGN(res)))
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obslog.L().Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
