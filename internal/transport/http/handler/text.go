package handler

import (
	"github.com/gin-gonic/gin"

	"medword/internal/app"
	"medword/internal/transport/http/response"
)

type TextHandler struct {
	service *app.TextService
}

type TranslateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	Model          string `json:"model"`
}

type GenerateRequest struct {
	Text     string `json:"text"`
	Template string `json:"template"`
	LLMModel string `json:"llm_model"`
}

type ApplyRequest struct {
	Text string `json:"text"`
}

type ReportRequest struct {
	Content  string `json:"content"`
	FileName string `json:"file_name"`
}

func NewTextHandler(service *app.TextService) *TextHandler {
	return &TextHandler{service: service}
}

func (h *TextHandler) Status(c *gin.Context) {
	response.OK(c, gin.H{"machine": h.service.Status(), "selection": h.service.LastSelection()})
}

func (h *TextHandler) Translate(c *gin.Context) {
	var req TranslateRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.service.Translate(c.Request.Context(), req.Text, req.TargetLanguage, req.Model)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"translated_text": out})
}

func (h *TextHandler) TranslateSelection(c *gin.Context) {
	var req TranslateRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.service.TranslateSelection(c.Request.Context(), req.TargetLanguage, req.Model)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"translated_text": out})
}

func (h *TextHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.service.Generate(c.Request.Context(), req.Text, req.Template, req.LLMModel)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"generated_text": out})
}

func (h *TextHandler) Apply(c *gin.Context) {
	var req ApplyRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ApplyGenerated(c.Request.Context(), req.Text); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"applied": true})
}

func (h *TextHandler) InsertReport(c *gin.Context) {
	var req ReportRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.InsertReport(c.Request.Context(), req.Content, req.FileName); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"inserted": true})
}
