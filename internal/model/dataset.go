package model

type Dataset struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Preview []map[string]any `json:"preview"`
}

type VisualizationConfig struct {
	ChartType string `json:"chartType"`
	XAxis     string `json:"xAxis,omitempty"`
	YAxis     string `json:"yAxis,omitempty"`
	Grouping  string `json:"grouping,omitempty"`
}

// Merge applies the non-empty fields of patch.
func (c VisualizationConfig) Merge(patch VisualizationConfig) VisualizationConfig {
	if patch.ChartType != "" {
		c.ChartType = patch.ChartType
	}
	if patch.XAxis != "" {
		c.XAxis = patch.XAxis
	}
	if patch.YAxis != "" {
		c.YAxis = patch.YAxis
	}
	if patch.Grouping != "" {
		c.Grouping = patch.Grouping
	}
	return c
}
