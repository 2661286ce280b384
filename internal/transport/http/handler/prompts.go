package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"medword/internal/model"
	"medword/internal/syncer"
	"medword/internal/transport/http/middleware"
	"medword/internal/transport/http/response"
)

type PromptHandler struct {
	store *syncer.PromptStore
}

type SelectPromptRequest struct {
	ID string `json:"id"`
}

func NewPromptHandler(store *syncer.PromptStore) *PromptHandler {
	return &PromptHandler{store: store}
}

func (h *PromptHandler) List(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("refresh"))
	if _, err := h.store.List(c.Request.Context(), force); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.View())
}

func (h *PromptHandler) Create(c *gin.Context) {
	var req model.PromptInput
	if !bindJSON(c, &req) {
		return
	}
	req.Library = c.Query("library") == "true"
	prompt, err := h.store.Create(c.Request.Context(), req, middleware.Privileged(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, prompt)
}

func (h *PromptHandler) Update(c *gin.Context) {
	var req model.PromptInput
	if !bindJSON(c, &req) {
		return
	}
	prompt, err := h.store.Update(c.Request.Context(), c.Param("id"), req, middleware.Privileged(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, prompt)
}

func (h *PromptHandler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id"), middleware.Privileged(c)); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.View())
}

func (h *PromptHandler) Select(c *gin.Context) {
	var req SelectPromptRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.store.Select(req.ID); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, h.store.View())
}
