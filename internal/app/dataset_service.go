package app

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"medword/internal/document"
	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

const DefaultChartType = "bar"

type DatasetBackend interface {
	UploadDataset(ctx context.Context, fileName string, content []byte) (model.Dataset, error)
	GenerateVisualization(ctx context.Context, ds model.Dataset, cfg model.VisualizationConfig) ([]byte, error)
}

type DatasetView struct {
	Dataset  *model.Dataset            `json:"dataset"`
	Config   model.VisualizationConfig `json:"config"`
	HasImage bool                      `json:"has_image"`
	Machine  status.Snapshot           `json:"machine"`
}

// DatasetService holds the uploaded dataset and the chart built from it.
type DatasetService struct {
	backend DatasetBackend
	doc     document.Accessor
	machine *status.Machine
	logger  *zap.Logger

	mu      sync.Mutex
	dataset *model.Dataset
	config  model.VisualizationConfig
	image   []byte
}

func NewDatasetService(b DatasetBackend, doc document.Accessor, logger *zap.Logger) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetService{
		backend: b,
		doc:     doc,
		machine: status.NewReady("datasets", logger),
		logger:  logger.Named("datasets"),
		config:  model.VisualizationConfig{ChartType: DefaultChartType},
	}
}

// UploadDataset replaces the current dataset. The chart config is kept and a
// previously generated chart is dropped.
func (s *DatasetService) UploadDataset(ctx context.Context, fileName string, content []byte) (model.Dataset, error) {
	const op = "upload dataset"
	if strings.TrimSpace(fileName) == "" || len(content) == 0 {
		return model.Dataset{}, apperr.Validation(op, "dataset file is empty")
	}

	var ds model.Dataset
	err := s.run(op, func() error {
		var err error
		ds, err = s.backend.UploadDataset(ctx, fileName, content)
		return err
	})
	if err != nil {
		return model.Dataset{}, err
	}

	s.mu.Lock()
	s.dataset = &ds
	s.image = nil
	s.mu.Unlock()
	s.logger.Info("dataset uploaded", zap.String("name", ds.Name), zap.Int("columns", len(ds.Columns)))
	return ds, nil
}

// UpdateConfig merges the non-empty fields of patch into the chart config.
func (s *DatasetService) UpdateConfig(patch model.VisualizationConfig) model.VisualizationConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = s.config.Merge(patch)
	return s.config
}

func (s *DatasetService) GenerateVisualization(ctx context.Context) ([]byte, error) {
	const op = "generate visualization"

	s.mu.Lock()
	ds := s.dataset
	cfg := s.config
	s.mu.Unlock()
	if ds == nil {
		return nil, apperr.Validation(op, "upload a dataset first")
	}
	if cfg.XAxis == "" || cfg.YAxis == "" {
		return nil, apperr.Validation(op, "please select both X and Y axes")
	}

	var img []byte
	err := s.run(op, func() error {
		var err error
		img, err = s.backend.GenerateVisualization(ctx, *ds, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.image = img
	s.mu.Unlock()
	return img, nil
}

// InsertVisualization appends the last generated chart to the document.
func (s *DatasetService) InsertVisualization(ctx context.Context) error {
	const op = "insert visualization"

	s.mu.Lock()
	img := s.image
	s.mu.Unlock()
	if len(img) == 0 {
		return apperr.Validation(op, "generate a visualization first")
	}
	return s.run(op, func() error {
		return s.doc.InsertAtEnd(ctx, img, document.FormatPNG)
	})
}

func (s *DatasetService) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.image...)
}

func (s *DatasetService) View() DatasetView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := DatasetView{
		Config:   s.config,
		HasImage: len(s.image) > 0,
		Machine:  s.machine.Snapshot(),
	}
	if s.dataset != nil {
		ds := *s.dataset
		view.Dataset = &ds
	}
	return view
}

func (s *DatasetService) run(op string, fn func() error) error {
	if err := s.machine.Begin(status.OpRequest); err != nil {
		return err
	}
	err := fn()
	serviceRequests.WithLabelValues(op, resultLabel(err)).Inc()
	if err != nil {
		_ = s.machine.Fail(err)
		return err
	}
	return s.machine.Succeed()
}
