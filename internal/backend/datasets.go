package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
)

func (c *Client) UploadDataset(ctx context.Context, fileName string, content []byte) (model.Dataset, error) {
	const op = "upload dataset"

	body, contentType, err := multipartFile("file", fileName, content)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("build dataset body failed: %w", err)
	}
	raw, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/datasets/upload",
		body:        newProgressReader(body, nil),
		contentLen:  int64(len(body)),
		contentType: contentType,
		timeout:     c.uploadTimeout,
	})
	if err != nil {
		return model.Dataset{}, err
	}

	var resp struct {
		Columns []string         `json:"columns"`
		Preview []map[string]any `json:"preview"`
	}
	if err := decode(op, raw, &resp); err != nil {
		return model.Dataset{}, err
	}
	if resp.Columns == nil {
		return model.Dataset{}, apperr.InvalidResponse(op, "columns field missing")
	}
	return model.Dataset{Name: fileName, Columns: resp.Columns, Preview: resp.Preview}, nil
}

// GenerateVisualization renders a chart of the dataset and returns PNG bytes.
func (c *Client) GenerateVisualization(ctx context.Context, ds model.Dataset, cfg model.VisualizationConfig) ([]byte, error) {
	const op = "generate visualization"

	type datasetInfo struct {
		Data    []map[string]any `json:"data"`
		Columns []string         `json:"columns"`
	}
	req := struct {
		Dataset datasetInfo               `json:"dataset"`
		Config  model.VisualizationConfig `json:"config"`
	}{
		Dataset: datasetInfo{Data: ds.Preview, Columns: ds.Columns},
		Config:  cfg,
	}

	var resp struct {
		Image string `json:"image"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/generate-visualization", req, &resp, c.requestTimeout); err != nil {
		return nil, err
	}
	if resp.Image == "" {
		return nil, apperr.InvalidResponse(op, "image field missing")
	}
	img, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidResponse, Op: op, Message: "image is not base64", Err: err}
	}
	return img, nil
}
