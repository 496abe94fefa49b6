package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/betbot/swingfeed/internal/domain"
)

// handleStream serves an event's results as server-sent events. The
// subscriber's offset comes from the since query parameter; the backlog
// past it is flushed first, then the live tail. Idle periods are kept
// alive with comment heartbeats.
func (s *Server) handleStream(c *gin.Context) {
	gameID := c.Param("gameID")
	since := intQuery(c, "since", 0)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	backlog, sub := s.hub.Subscribe(gameID, since)
	defer func() { sub.Close() }()

	offset := since
	for _, r := range backlog {
		writeEvent(c.Writer, offset, r)
		offset++
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat())
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case r := <-sub.C:
			writeEvent(c.Writer, offset, r)
			offset++
			flusher.Flush()
		case <-sub.Lagged():
			// missed a direct send; rejoin from the current offset and
			// replay the gap out of the buffer
			sub.Close()
			backlog, sub = s.hub.Subscribe(gameID, offset)
			for _, r := range backlog {
				writeEvent(c.Writer, offset, r)
				offset++
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, offset int, r domain.PlayResult) {
	buf, err := json.Marshal(r)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", offset, buf)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWS serves the same stream over a websocket, one JSON message per
// result, with ping frames keeping the connection alive.
func (s *Server) handleWS(c *gin.Context) {
	gameID := c.Param("gameID")
	since := intQuery(c, "since", 0)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade for %s: %v", gameID, err)
		return
	}
	defer conn.Close()

	backlog, sub := s.hub.Subscribe(gameID, since)
	defer func() { sub.Close() }()

	// reader goroutine only drains control frames and detects close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	offset := since
	for _, r := range backlog {
		if err := conn.WriteJSON(r); err != nil {
			return
		}
		offset++
	}

	heartbeat := time.NewTicker(s.heartbeat())
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case r := <-sub.C:
			if err := conn.WriteJSON(r); err != nil {
				return
			}
			offset++
		case <-sub.Lagged():
			sub.Close()
			backlog, sub = s.hub.Subscribe(gameID, offset)
			for _, r := range backlog {
				if err := conn.WriteJSON(r); err != nil {
					return
				}
				offset++
			}
		case <-heartbeat.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
