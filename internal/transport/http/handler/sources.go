package handler

import (
	"github.com/gin-gonic/gin"

	"medword/internal/syncer"
	"medword/internal/transport/http/response"
)

type SourceHandler struct {
	store    *syncer.SourceStore
	maxBytes int64
}

type AnalyzeRequest struct {
	Instruction string `json:"instruction" binding:"max=2000"`
}

func NewSourceHandler(store *syncer.SourceStore, maxBytes int64) *SourceHandler {
	return &SourceHandler{store: store, maxBytes: maxBytes}
}

func (h *SourceHandler) List(c *gin.Context) {
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) Refresh(c *gin.Context) {
	if err := h.store.Refresh(c.Request.Context()); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) Upload(c *gin.Context) {
	name, content, err := readFormFile(c, "file", h.maxBytes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	source, err := h.store.Upload(c.Request.Context(), name, content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, source)
}

func (h *SourceHandler) RetryUpload(c *gin.Context) {
	source, err := h.store.RetryUpload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, source)
}

func (h *SourceHandler) DismissUpload(c *gin.Context) {
	if err := h.store.DismissUpload(c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) Remove(c *gin.Context) {
	if err := h.store.RemoveSource(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) Toggle(c *gin.Context) {
	if err := h.store.Toggle(c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) SelectAll(c *gin.Context) {
	h.store.SelectAll()
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) ClearSelection(c *gin.Context) {
	h.store.ClearSelection()
	response.OK(c, h.store.Snapshot())
}

func (h *SourceHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.store.Analyze(c.Request.Context(), req.Instruction)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"summary": res.Summary, "sources": h.store.Snapshot()})
}
