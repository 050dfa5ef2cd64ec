package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/gin-gonic/gin"
)

// handleDocumentEvents streams committed changes of one document as
// server-sent events until the client disconnects or the document is deleted.
func (h *httpHandler) handleDocumentEvents(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	if _, err := h.docsService.GetDocument(c.Request.Context(), documentID); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, documentID.String())
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(realtimeEventReady, gin.H{"document_id": documentID.String()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(string(event.Type), newEventPayload(event))
			return event.Type != docs.EventDocumentDeleted
		case now := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"timestamp": now.UTC()})
			return true
		}
	})
}
