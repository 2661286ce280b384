package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"medword/internal/pkg/apperr"
	"medword/internal/transport/http/response"
)

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return false
	}
	return true
}

// readFormFile reads the multipart file field. Content beyond maxBytes is cut
// at maxBytes+1 so size checks downstream still see it as too large.
func readFormFile(c *gin.Context, field string, maxBytes int64) (string, []byte, error) {
	const op = "read upload"
	file, err := c.FormFile(field)
	if err != nil {
		return "", nil, apperr.Validation(op, "file field is required")
	}
	f, err := file.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open upload failed: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload failed: %w", err)
	}
	return file.Filename, content, nil
}
