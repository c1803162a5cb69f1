package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/metergate/metergate/internal/events"
)

// StreamEvents pushes ledger events over SSE, starting with the
// buffered backlog so a late subscriber still sees recent activity.
func (s *Server) StreamEvents(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrInternal)
		return
	}

	sub, backlog, err := s.hub.Subscribe()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	write := func(w io.Writer, event events.Event) bool {
		payload, err := json.Marshal(event)
		if err != nil {
			return true
		}
		if _, err := w.Write([]byte("event: " + string(event.Kind) + "\ndata: " + string(payload) + "\n\n")); err != nil {
			return false
		}
		return true
	}

	for _, event := range backlog {
		if !write(c.Writer, event) {
			return
		}
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return false
			}
			return write(w, event)
		case <-c.Request.Context().Done():
			return false
		}
	})
}
