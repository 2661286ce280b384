package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"medword/internal/backend"
	"medword/internal/document"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

const (
	DefaultTranslateModel  = "local"
	DefaultReportFileName  = "compliance_report.docx"
	DefaultSelectionSettle = 300 * time.Millisecond

	targetChinese = "zh-CN"
)

type TextBackend interface {
	Translate(ctx context.Context, text, direction, modelName string) (string, error)
	Generate(ctx context.Context, text, template, llmModel string) (string, error)
	DownloadReport(ctx context.Context, content, fileName string) ([]byte, error)
}

// TextService runs translation, generation and report insertion against the
// current document. It has no initialization step of its own.
type TextService struct {
	backend TextBackend
	doc     document.Accessor
	machine *status.Machine
	logger  *zap.Logger

	mu        sync.Mutex
	selection string
}

func NewTextService(b TextBackend, doc document.Accessor, logger *zap.Logger) *TextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextService{
		backend: b,
		doc:     doc,
		machine: status.NewReady("text", logger),
		logger:  logger.Named("text"),
	}
}

// Direction maps the target language picked in the pane to a backend direction.
func Direction(targetLanguage string) string {
	if targetLanguage == targetChinese {
		return backend.DirectionEnToZh
	}
	return backend.DirectionZhToEn
}

func (s *TextService) Translate(ctx context.Context, text, targetLanguage, modelName string) (string, error) {
	const op = "translate"
	if strings.TrimSpace(text) == "" {
		return "", apperr.Validation(op, "text is empty")
	}
	if modelName == "" {
		modelName = DefaultTranslateModel
	}

	var out string
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.backend.Translate(ctx, text, Direction(targetLanguage), modelName)
		return err
	})
	return out, err
}

// TranslateSelection translates the host selection and writes the result
// over it. The last debounced selection is used when the host reports none.
func (s *TextService) TranslateSelection(ctx context.Context, targetLanguage, modelName string) (string, error) {
	const op = "translate selection"
	if modelName == "" {
		modelName = DefaultTranslateModel
	}

	var out string
	err := s.run(ctx, op, func(ctx context.Context) error {
		text, err := s.doc.ReadSelection(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			text = s.LastSelection()
		}
		if strings.TrimSpace(text) == "" {
			return apperr.Validation(op, "select some text first")
		}
		out, err = s.backend.Translate(ctx, text, Direction(targetLanguage), modelName)
		if err != nil {
			return err
		}
		return s.doc.ReplaceSelection(ctx, out)
	})
	return out, err
}

func (s *TextService) Generate(ctx context.Context, text, template, llmModel string) (string, error) {
	const op = "generate"
	if strings.TrimSpace(text) == "" {
		return "", apperr.Validation(op, "text is empty")
	}

	var out string
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.backend.Generate(ctx, text, template, llmModel)
		return err
	})
	return out, err
}

// ApplyGenerated replaces the host selection with previously generated text.
func (s *TextService) ApplyGenerated(ctx context.Context, text string) error {
	const op = "apply generated"
	if text == "" {
		return apperr.Validation(op, "nothing to apply")
	}
	return s.run(ctx, op, func(ctx context.Context) error {
		return s.doc.ReplaceSelection(ctx, text)
	})
}

// InsertReport renders content as a docx report and appends it to the document.
func (s *TextService) InsertReport(ctx context.Context, content, fileName string) error {
	const op = "insert report"
	if strings.TrimSpace(content) == "" {
		return apperr.Validation(op, "report content is empty")
	}
	if fileName == "" {
		fileName = DefaultReportFileName
	}
	return s.run(ctx, op, func(ctx context.Context) error {
		docx, err := s.backend.DownloadReport(ctx, content, fileName)
		if err != nil {
			return err
		}
		return s.doc.InsertAtEnd(ctx, docx, document.FormatDocx)
	})
}

// WatchSelection keeps the last settled host selection until ctx is done.
func (s *TextService) WatchSelection(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		wait = DefaultSelectionSettle
	}
	events, cancel := s.doc.SubscribeSelection()
	settled := document.Debounce(ctx, events, wait)
	go func() {
		defer cancel()
		for text := range settled {
			s.mu.Lock()
			s.selection = text
			s.mu.Unlock()
		}
	}()
}

func (s *TextService) LastSelection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

func (s *TextService) Status() status.Snapshot {
	return s.machine.Snapshot()
}

func (s *TextService) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := s.machine.Begin(status.OpRequest); err != nil {
		return err
	}
	err := fn(ctx)
	serviceRequests.WithLabelValues(op, resultLabel(err)).Inc()
	if err != nil {
		s.logger.Warn("text request failed", zap.String("op", op), zap.Error(err))
		_ = s.machine.Fail(err)
		return err
	}
	return s.machine.Succeed()
}
