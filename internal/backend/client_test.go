package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medword/internal/model"
	"medword/internal/pkg/apperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(append([]Option{WithBaseURL(srv.URL), WithAPIKey("k-1")}, opts...)...)
}

func TestChatSendsHistoryAndKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "k-1", r.Header.Get("X-API-Key"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is the primary endpoint?", req.Question)
		assert.Len(t, req.History, 2)
		_, _ = w.Write([]byte(`{"response":"The primary endpoint is overall survival."}`))
	})

	reply, err := client.Chat(context.Background(), ChatRequest{
		Question:     "What is the primary endpoint?",
		DocumentText: "doc",
		History: []model.HistoryTurn{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "The primary endpoint is overall survival.", reply)
}

func TestChatMissingResponseField(t *testing.T) {
	for _, body := range []string{`{"answer":"x"}`, `{"response":""}`, `{"response":null}`} {
		t.Run(body, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			reply, err := client.Chat(context.Background(), ChatRequest{Question: "q"})
			assert.True(t, errors.Is(err, apperr.ErrInvalidResponse), "got %v", err)
			assert.Empty(t, reply)
		})
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   *apperr.Error
	}{
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusBadRequest, apperr.ErrValidation},
		{http.StatusUnprocessableEntity, apperr.ErrValidation},
		{http.StatusForbidden, apperr.ErrForbidden},
		{http.StatusUnauthorized, apperr.ErrForbidden},
		{http.StatusInternalServerError, apperr.ErrNetwork},
		{http.StatusGatewayTimeout, apperr.ErrTimeout},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
		})
		_, err := client.ListSources(context.Background())
		assert.True(t, errors.Is(err, tc.want), "status %d", tc.status)
		assert.Equal(t, "nope", apperr.Message(err))
	}
}

func TestUndecodableBodyIsInvalidResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := client.ListSources(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrInvalidResponse))
}

func TestListTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeouts(0, 20*time.Millisecond, 0))
	defer close(release)

	_, err := client.ListSources(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrTimeout))
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
}

func TestUploadSourceReportsProgress(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sources/upload", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Len(t, data, 4096)
		_, _ = w.Write([]byte(`{"document":{"id":"srv-42","name":"report.pdf","analyzed":false}}`))
	})

	var (
		mu   sync.Mutex
		seen []int
	)
	rec, err := client.UploadSource(context.Background(), "report.pdf", make([]byte, 4096), func(p int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "srv-42", rec.ID)
	require.NotNil(t, rec.Analyzed)
	assert.False(t, *rec.Analyzed)
	assert.Nil(t, rec.IsTemplate)

	require.NotEmpty(t, seen)
	assert.Equal(t, 0, seen[0])
	assert.Equal(t, 100, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}

func TestUploadSourceWithoutDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.UploadSource(context.Background(), "a.txt", []byte("x"), nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidResponse))
}

func TestDeleteSourceNotFoundIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/sources/gone", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, client.DeleteSource(context.Background(), "gone"))
}

func TestAnalyze(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []any{"a"}, req["docIds"])
		_, _ = w.Write([]byte(`{"documents":[{"id":"a","analyzed":true}],"summary":"done"}`))
	})

	res, err := client.Analyze(context.Background(), []string{"a"}, "summarize")
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.True(t, *res.Documents[0].Analyzed)
	assert.Equal(t, "done", res.Summary)
}

func TestPromptsAndText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prompts":
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`{"defaultPrompts":[{"id":"d1","title":"CSR"}],"userPrompts":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","title":"t","content":"0123456789","model_type":"generation","scope":"user"}`))
		case "/translate":
			_, _ = w.Write([]byte(`{"translatedText":"hello"}`))
		case "/generate":
			_, _ = w.Write([]byte(`{"generatedText":"generated"}`))
		case "/download-report":
			_, _ = w.Write([]byte("PK\x03\x04"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	list, err := client.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Len(t, list.DefaultPrompts, 1)

	p, err := client.CreatePrompt(ctx, model.PromptInput{Title: "t", Content: "0123456789", ModelType: "generation", Scope: "user"})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	out, err := client.Translate(ctx, "你好", DirectionZhToEn, "default")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	gen, err := client.Generate(ctx, "t", "csr", "")
	require.NoError(t, err)
	assert.Equal(t, "generated", gen)

	doc, err := client.DownloadReport(ctx, "content", "report.docx")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), doc)
}

func TestDatasets(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datasets/upload":
			_, _ = w.Write([]byte(`{"rows":2,"columns":["arm","os"],"preview":[{"arm":"A","os":12}]}`))
		case "/generate-visualization":
			var req struct {
				Config model.VisualizationConfig `json:"config"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "arm", req.Config.XAxis)
			_ = json.NewEncoder(w).Encode(map[string]string{"image": base64.StdEncoding.EncodeToString(png)})
		}
	})
	ctx := context.Background()

	ds, err := client.UploadDataset(ctx, "trial.csv", []byte("arm,os\nA,12\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"arm", "os"}, ds.Columns)
	assert.Equal(t, "trial.csv", ds.Name)

	img, err := client.GenerateVisualization(ctx, ds, model.VisualizationConfig{ChartType: "bar", XAxis: "arm", YAxis: "os"})
	require.NoError(t, err)
	assert.Equal(t, png, img)
}
