package backend

import (
	"context"
	"net/http"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
)

type ChatRequest struct {
	Question     string              `json:"question"`
	DocumentText string              `json:"document_text"`
	History      []model.HistoryTurn `json:"history"`
	SourceIDs    []string            `json:"source_ids,omitempty"`
}

// Chat asks a question about the document and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	const op = "chat"
	if req.History == nil {
		req.History = []model.HistoryTurn{}
	}

	var resp struct {
		Response *string `json:"response"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/chat", req, &resp, c.requestTimeout); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", apperr.InvalidResponse(op, "response field missing")
	}
	if *resp.Response == "" {
		return "", apperr.InvalidResponse(op, "empty response")
	}
	return *resp.Response, nil
}
