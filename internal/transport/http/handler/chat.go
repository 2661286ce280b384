package handler

import (
	"github.com/gin-gonic/gin"

	"medword/internal/app"
	"medword/internal/transport/http/response"
)

// SelectionSource supplies the selected source ids when a send does not name any.
type SelectionSource interface {
	SelectedIDs() []string
}

type ChatHandler struct {
	store   *app.SessionStore
	sources SelectionSource
}

type SendMessageRequest struct {
	Text         string `json:"text" binding:"required"`
	DocumentText string `json:"document_text"`
	// FromDocument reads the document text from the host instead of DocumentText.
	FromDocument bool     `json:"from_document"`
	SourceIDs    []string `json:"source_ids"`
}

type DraftRequest struct {
	Text string `json:"text"`
}

func NewChatHandler(store *app.SessionStore, sources SelectionSource) *ChatHandler {
	return &ChatHandler{store: store, sources: sources}
}

func (h *ChatHandler) State(c *gin.Context) {
	response.OK(c, h.store.Snapshot())
}

func (h *ChatHandler) Initialize(c *gin.Context) {
	if err := h.store.Initialize(c.Request.Context()); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	response.OK(c, h.store.CreateSession())
}

func (h *ChatHandler) SwitchSession(c *gin.Context) {
	if err := h.store.SwitchSession(c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	h.store.DeleteSession(c.Param("id"))
	response.OK(c, h.store.Snapshot())
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	sourceIDs := req.SourceIDs
	if sourceIDs == nil && h.sources != nil {
		sourceIDs = h.sources.SelectedIDs()
	}

	ctx := c.Request.Context()
	var err error
	if req.FromDocument {
		_, err = h.store.SendFromDocument(ctx, req.Text, sourceIDs)
	} else {
		_, err = h.store.SendMessage(ctx, req.Text, req.DocumentText, sourceIDs)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.Snapshot())
}

func (h *ChatHandler) SetDraft(c *gin.Context) {
	var req DraftRequest
	if !bindJSON(c, &req) {
		return
	}
	h.store.SetDraft(req.Text)
	response.OK(c, gin.H{"draft_message": req.Text})
}

func (h *ChatHandler) Reset(c *gin.Context) {
	h.store.Reset()
	response.OK(c, h.store.Snapshot())
}
