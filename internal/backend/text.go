package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"medword/internal/pkg/apperr"
)

const (
	DirectionZhToEn = "zh2en"
	DirectionEnToZh = "en2zh"

	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func (c *Client) Translate(ctx context.Context, text, direction, modelName string) (string, error) {
	const op = "translate"
	req := struct {
		Text      string `json:"text"`
		Direction string `json:"direction"`
		Model     string `json:"model"`
	}{Text: text, Direction: direction, Model: modelName}

	var resp struct {
		TranslatedText *string `json:"translatedText"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/translate", req, &resp, c.requestTimeout); err != nil {
		return "", err
	}
	if resp.TranslatedText == nil {
		return "", apperr.InvalidResponse(op, "translatedText field missing")
	}
	return *resp.TranslatedText, nil
}

func (c *Client) Generate(ctx context.Context, text, template, llmModel string) (string, error) {
	const op = "generate"
	req := struct {
		Text     string `json:"text"`
		Template string `json:"template,omitempty"`
		LLMModel string `json:"llm_model,omitempty"`
	}{Text: text, Template: template, LLMModel: llmModel}

	var resp struct {
		GeneratedText *string `json:"generatedText"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/generate", req, &resp, c.requestTimeout); err != nil {
		return "", err
	}
	if resp.GeneratedText == nil {
		return "", apperr.InvalidResponse(op, "generatedText field missing")
	}
	return *resp.GeneratedText, nil
}

// DownloadReport renders content as a compliance report and returns the docx bytes.
func (c *Client) DownloadReport(ctx context.Context, content, fileName string) ([]byte, error) {
	const op = "download report"
	payload, err := json.Marshal(struct {
		Content  string `json:"content"`
		FileName string `json:"fileName"`
	}{Content: content, FileName: fileName})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request failed: %w", op, err)
	}

	raw, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/download-report",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		accept:      docxContentType,
		timeout:     c.requestTimeout,
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, apperr.InvalidResponse(op, "empty report")
	}
	return raw, nil
}
