package handler

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"medword/internal/app"
	"medword/internal/model"
	"medword/internal/transport/http/response"
)

type DatasetHandler struct {
	service  *app.DatasetService
	maxBytes int64
}

type ConfigRequest struct {
	ChartType string `json:"chartType" binding:"omitempty,oneof=bar line pie scatter"`
	XAxis     string `json:"xAxis"`
	YAxis     string `json:"yAxis"`
	Grouping  string `json:"grouping"`
}

func NewDatasetHandler(service *app.DatasetService, maxBytes int64) *DatasetHandler {
	return &DatasetHandler{service: service, maxBytes: maxBytes}
}

func (h *DatasetHandler) State(c *gin.Context) {
	response.OK(c, h.service.View())
}

func (h *DatasetHandler) Upload(c *gin.Context) {
	name, content, err := readFormFile(c, "file", h.maxBytes)
	if err != nil {
		response.FromError(c, err)
		return
	}
	ds, err := h.service.UploadDataset(c.Request.Context(), name, content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, ds)
}

func (h *DatasetHandler) UpdateConfig(c *gin.Context) {
	var req ConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	cfg := h.service.UpdateConfig(model.VisualizationConfig{
		ChartType: req.ChartType,
		XAxis:     req.XAxis,
		YAxis:     req.YAxis,
		Grouping:  req.Grouping,
	})
	response.OK(c, cfg)
}

func (h *DatasetHandler) Generate(c *gin.Context) {
	img, err := h.service.GenerateVisualization(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"image": base64.StdEncoding.EncodeToString(img)})
}

func (h *DatasetHandler) Insert(c *gin.Context) {
	if err := h.service.InsertVisualization(c.Request.Context()); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"inserted": true})
}
