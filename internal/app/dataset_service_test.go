package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medword/internal/document"
	"medword/internal/model"
	"medword/internal/pkg/apperr"
	"medword/internal/status"
)

type fakeDatasetBackend struct {
	gotConfig model.VisualizationConfig
	err       error
}

func (f *fakeDatasetBackend) UploadDataset(ctx context.Context, fileName string, content []byte) (model.Dataset, error) {
	if f.err != nil {
		return model.Dataset{}, f.err
	}
	return model.Dataset{
		Name:    fileName,
		Columns: []string{"arm", "responders"},
		Preview: []map[string]any{{"arm": "A", "responders": 12}},
	}, nil
}

func (f *fakeDatasetBackend) GenerateVisualization(ctx context.Context, ds model.Dataset, cfg model.VisualizationConfig) ([]byte, error) {
	f.gotConfig = cfg
	return []byte{0x89, 'P', 'N', 'G'}, f.err
}

func TestVisualizationNeedsBothAxes(t *testing.T) {
	b := &fakeDatasetBackend{}
	s := NewDatasetService(b, &fakeDoc{}, nil)

	_, err := s.GenerateVisualization(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = s.UploadDataset(context.Background(), "efficacy.csv", []byte("arm,responders\nA,12\n"))
	require.NoError(t, err)

	s.UpdateConfig(model.VisualizationConfig{XAxis: "arm"})
	_, err = s.GenerateVisualization(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, status.Ready, s.View().Machine.Status)

	cfg := s.UpdateConfig(model.VisualizationConfig{YAxis: "responders"})
	assert.Equal(t, DefaultChartType, cfg.ChartType)
	img, err := s.GenerateVisualization(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, img)
	assert.Equal(t, "arm", b.gotConfig.XAxis)
	assert.True(t, s.View().HasImage)
}

func TestInsertVisualization(t *testing.T) {
	doc := &fakeDoc{}
	s := NewDatasetService(&fakeDatasetBackend{}, doc, nil)

	assert.True(t, errors.Is(s.InsertVisualization(context.Background()), apperr.ErrValidation))

	_, err := s.UploadDataset(context.Background(), "efficacy.csv", []byte("x"))
	require.NoError(t, err)
	s.UpdateConfig(model.VisualizationConfig{ChartType: "line", XAxis: "arm", YAxis: "responders"})
	_, err = s.GenerateVisualization(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.InsertVisualization(context.Background()))
	assert.Equal(t, []document.Format{document.FormatPNG}, doc.inserted)
}

func TestUploadDatasetDropsOldImage(t *testing.T) {
	b := &fakeDatasetBackend{}
	s := NewDatasetService(b, &fakeDoc{}, nil)
	_, err := s.UploadDataset(context.Background(), "a.csv", []byte("x"))
	require.NoError(t, err)
	s.UpdateConfig(model.VisualizationConfig{XAxis: "arm", YAxis: "responders"})
	_, err = s.GenerateVisualization(context.Background())
	require.NoError(t, err)

	_, err = s.UploadDataset(context.Background(), "b.csv", []byte("y"))
	require.NoError(t, err)
	view := s.View()
	assert.False(t, view.HasImage)
	assert.Equal(t, "b.csv", view.Dataset.Name)
	assert.Equal(t, "arm", view.Config.XAxis)

	b.err = apperr.New(apperr.KindNetwork, "upload dataset", "down")
	_, err = s.UploadDataset(context.Background(), "c.csv", []byte("z"))
	require.Error(t, err)
	assert.Equal(t, status.Error, s.View().Machine.Status)
	assert.Equal(t, "b.csv", s.View().Dataset.Name)

	_, err = s.UploadDataset(context.Background(), "", nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
