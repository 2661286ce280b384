package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medword/internal/document"
	"medword/internal/transport/http/response"
)

const (
	defaultEditWait = 25 * time.Second
	maxEditWait     = 60 * time.Second
)

// HostHandler is the task pane's side of the document bridge.
type HostHandler struct {
	bridge *document.Bridge
}

func NewHostHandler(bridge *document.Bridge) *HostHandler {
	return &HostHandler{bridge: bridge}
}

func (h *HostHandler) PushSnapshot(c *gin.Context) {
	var req document.HostSnapshot
	if !bindJSON(c, &req) {
		return
	}
	h.bridge.Push(req)
	response.OK(c, gin.H{"connected": true})
}

// DrainEdits long-polls for queued document edits.
func (h *HostHandler) DrainEdits(c *gin.Context) {
	wait := defaultEditWait
	if raw := c.Query("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid wait")
			return
		}
		wait = min(parsed, maxEditWait)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()
	response.OK(c, h.bridge.Drain(ctx))
}
