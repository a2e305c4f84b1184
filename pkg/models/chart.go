package models

import (
	"time"

	"github.com/google/uuid"
)

// Chart shape names produced by detection.
const (
	ChartTimeSeries  = "time_series"
	ChartCategorical = "categorical"
	ChartNumerical   = "numerical"
	ChartComparative = "comparative"
	ChartGeneric     = "generic"
)

// Renderer chart types that may be requested explicitly.
const (
	ChartBar      = "bar"
	ChartLine     = "line"
	ChartArea     = "area"
	ChartPie      = "pie"
	ChartDoughnut = "doughnut"
	ChartScatter  = "scatter"
)

// Dataset is one series of a chart. BackgroundColor is a single color for
// series charts and one color per label for pie/doughnut.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderColor     []string  `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
	Points          []Point   `json:"points,omitempty"`
}

// Point is an x/y pair used by scatter datasets.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type LegendOptions struct {
	Position string `json:"position,omitempty"`
}

// ChartOptions carries renderer hints computed alongside the data.
type ChartOptions struct {
	Legend   *LegendOptions `json:"legend,omitempty"`
	Tooltips []string       `json:"tooltips,omitempty"`
	Cutout   string         `json:"cutout,omitempty"`
}

// ChartData is the canonical, renderer-independent chart structure.
// Invariant: len(Labels) == len(Datasets[i].Data) for every dataset.
type ChartData struct {
	Type     string            `json:"type"`
	Labels   []string          `json:"labels"`
	Datasets []Dataset         `json:"datasets"`
	Metrics  map[string]string `json:"metrics"`
	RawData  []Record          `json:"rawData"`
	Options  *ChartOptions     `json:"options,omitempty"`
}

// ChartConfig binds renderer axis roles to column names of the prepared data.
type ChartConfig struct {
	Responsive          bool   `json:"responsive"`
	MaintainAspectRatio bool   `json:"maintainAspectRatio"`
	XAxisDataKey        string `json:"xAxisDataKey,omitempty"`
	YAxisDataKey        string `json:"yAxisDataKey,omitempty"`
	DataKey             string `json:"dataKey,omitempty"`
	NameKey             string `json:"nameKey,omitempty"`
}

// Visualization is what the orchestrator returns for rendering.
type Visualization struct {
	Type   string      `json:"type"`
	Data   []Record    `json:"data"`
	Config ChartConfig `json:"config"`
	Chart  *ChartData  `json:"chart,omitempty"`
}

// VisualizationRecord is the persisted form of a Visualization.
type VisualizationRecord struct {
	ID        uuid.UUID   `json:"id"`
	QueryID   uuid.UUID   `json:"queryId"`
	ChartType string      `json:"chartType"`
	Config    ChartConfig `json:"config"`
	Data      []Record    `json:"data"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"createdAt"`
}
