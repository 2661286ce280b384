package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
)

// ProgressFunc receives upload progress in percent, 0 through 100.
type ProgressFunc func(percent int)

func (c *Client) ListSources(ctx context.Context) ([]model.SourceRecord, error) {
	const op = "list sources"
	var records []model.SourceRecord
	if err := c.doJSON(ctx, op, http.MethodGet, "/sources", nil, &records, c.listTimeout); err != nil {
		return nil, err
	}
	if err := checkRecords(op, records); err != nil {
		return nil, err
	}
	return records, nil
}

// UploadSource sends one file as multipart form data and returns the record
// the server created for it.
func (c *Client) UploadSource(ctx context.Context, fileName string, content []byte, progress ProgressFunc) (model.SourceRecord, error) {
	const op = "upload source"

	body, contentType, err := multipartFile("file", fileName, content)
	if err != nil {
		return model.SourceRecord{}, fmt.Errorf("build upload body failed: %w", err)
	}

	raw, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/sources/upload",
		body:        newProgressReader(body, progress),
		contentLen:  int64(len(body)),
		contentType: contentType,
		timeout:     c.uploadTimeout,
	})
	if err != nil {
		return model.SourceRecord{}, err
	}

	var resp struct {
		Document *model.SourceRecord `json:"document"`
	}
	if err := decode(op, raw, &resp); err != nil {
		return model.SourceRecord{}, err
	}
	if resp.Document == nil || resp.Document.ID == "" {
		return model.SourceRecord{}, apperr.InvalidResponse(op, "document missing from upload response")
	}
	return *resp.Document, nil
}

// DeleteSource removes a source. A source the server no longer knows counts
// as deleted.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		op:      "delete source",
		method:  http.MethodDelete,
		path:    "/sources/" + url.PathEscape(id),
		timeout: c.requestTimeout,
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	return err
}

type AnalyzeResult struct {
	Documents []model.SourceRecord `json:"documents"`
	Summary   string               `json:"summary,omitempty"`
}

func (c *Client) Analyze(ctx context.Context, docIDs []string, instruction string) (AnalyzeResult, error) {
	const op = "analyze sources"
	req := struct {
		DocIDs      []string `json:"docIds"`
		Instruction string   `json:"instruction"`
	}{DocIDs: docIDs, Instruction: instruction}

	var resp struct {
		Documents *[]model.SourceRecord `json:"documents"`
		Summary   string                `json:"summary"`
	}
	if err := c.doJSON(ctx, op, http.MethodPost, "/analyze", req, &resp, c.requestTimeout); err != nil {
		return AnalyzeResult{}, err
	}
	if resp.Documents == nil {
		return AnalyzeResult{}, apperr.InvalidResponse(op, "documents field missing")
	}
	if err := checkRecords(op, *resp.Documents); err != nil {
		return AnalyzeResult{}, err
	}
	return AnalyzeResult{Documents: *resp.Documents, Summary: resp.Summary}, nil
}

func checkRecords(op string, records []model.SourceRecord) error {
	for _, r := range records {
		if r.ID == "" {
			return apperr.InvalidResponse(op, "source record without id")
		}
	}
	return nil
}

func multipartFile(field, fileName string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// progressReader reports the share of the body consumed by the transport.
type progressReader struct {
	r        io.Reader
	total    int
	read     int
	last     int
	progress ProgressFunc
	once     sync.Once
}

func newProgressReader(body []byte, progress ProgressFunc) io.Reader {
	if progress == nil {
		return bytes.NewReader(body)
	}
	return &progressReader{r: bytes.NewReader(body), total: len(body), last: -1, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	p.once.Do(func() { p.report(0) })
	n, err := p.r.Read(b)
	p.read += n
	if p.total > 0 {
		p.report(p.read * 100 / p.total)
	}
	return n, err
}

func (p *progressReader) report(percent int) {
	if percent <= p.last {
		return
	}
	p.last = percent
	p.progress(percent)
}
