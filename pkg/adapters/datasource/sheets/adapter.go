// Package sheets reads Google Sheets ranges as a data source.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/query"
)

const (
	sourceName = string(models.DataSourceGoogleSheets)

	// DefaultRange covers the first 26 columns of the first sheet.
	DefaultRange = "A:Z"
	// DefaultSheetName is reported when the range names no sheet.
	DefaultSheetName = "Sheet1"

	schemaSampleRows = 10
)

// Config contains Google Sheets options. One of APIKey or CredentialsJSON
// must be set.
type Config struct {
	SpreadsheetID   string `json:"spreadsheet_id" validate:"required"`
	Range           string `json:"range"`
	APIKey          string `json:"api_key" validate:"required_without=CredentialsJSON"`
	CredentialsJSON string `json:"credentials_json"`
}

// FromMap decodes and validates a stored config map, applying defaults.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	if err := datasource.DecodeConfig(sourceName, raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}
	return cfg, nil
}

// ExtractSheetName returns the sheet part of an A1 range such as "Sales!A:D".
func ExtractSheetName(rng string) string {
	if i := strings.Index(rng, "!"); i > 0 {
		return strings.Trim(rng[:i], "'")
	}
	return DefaultSheetName
}

type Adapter struct {
	client Client
	logger *zap.Logger
}

func NewAdapter(client Client, logger *zap.Logger) *Adapter {
	return &Adapter{client: client, logger: logger.Named("sheets")}
}

// sheet is a fetched range split into its header row and data rows.
type sheet struct {
	headers []string
	rows    [][]any
}

func (a *Adapter) fetch(ctx context.Context, cfg *Config) (*sheet, error) {
	values, err := a.client.Values(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewConnectionError(sourceName, "failed to fetch sheet data", err)
	}
	if len(values) == 0 {
		return &sheet{}, nil
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.TrimSpace(fmt.Sprint(h))
	}
	return &sheet{headers: headers, rows: values[1:]}, nil
}

func cell(row []any, i int) any {
	if i >= len(row) || row[i] == nil {
		return nil
	}
	if s, ok := row[i].(string); ok && s == "" {
		return nil
	}
	return row[i]
}

// GetSchema samples up to ten data rows per column and classifies each column
// by majority ratio.
func (a *Adapter) GetSchema(ctx context.Context, raw map[string]any) (*models.Schema, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	s, err := a.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sample := s.rows
	if len(sample) > schemaSampleRows {
		sample = sample[:schemaSampleRows]
	}

	schema := &models.Schema{Columns: make([]models.SchemaColumn, 0, len(s.headers))}
	for i, h := range s.headers {
		var values []string
		for _, r := range sample {
			if v := cell(r, i); v != nil {
				values = append(values, fmt.Sprint(v))
			}
		}
		col := models.SchemaColumn{
			Name:     h,
			Type:     inference.InferRatio(values, inference.DefaultRatioThreshold),
			Nullable: len(values) < len(sample),
		}
		for j := 0; j < len(values) && j < 5; j++ {
			col.SampleValues = append(col.SampleValues, values[j])
		}
		schema.Columns = append(schema.Columns, col)
	}
	count := len(s.rows)
	schema.RowCount = &count

	a.logger.Debug("described sheet",
		zap.String("sheet", ExtractSheetName(cfg.Range)),
		zap.Int("columns", len(schema.Columns)),
		zap.Int("rows", count),
	)
	return schema, nil
}

// ExecuteQuery returns every row keyed by header. Query text is not parsed:
// text mentioning "where" or "filter" is logged and the full range is still
// returned. Structured queries are evaluated in memory.
func (a *Adapter) ExecuteQuery(ctx context.Context, raw map[string]any, q models.Query) (*models.Result, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	s, err := a.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &models.Result{
		Columns: append([]string(nil), s.headers...),
		Records: make([]models.Record, len(s.rows)),
	}
	for i, r := range s.rows {
		rec := make(models.Record, len(s.headers))
		for ci, h := range s.headers {
			rec[h] = cell(r, ci)
		}
		result.Records[i] = rec
	}

	if q.IsSQL() {
		lower := strings.ToLower(q.SQL)
		if strings.Contains(lower, "where") || strings.Contains(lower, "filter") {
			a.logger.Debug("sheet queries are not parsed; returning all rows",
				zap.String("sheet", ExtractSheetName(cfg.Range)))
		}
		return result, nil
	}
	if q.Structured != nil {
		return query.Apply(result, *q.Structured, nil), nil
	}
	return result, nil
}

// ValidateConnection fetches the spreadsheet metadata.
func (a *Adapter) ValidateConnection(ctx context.Context, raw map[string]any) bool {
	return datasource.SafeValidate(ctx, a.logger, sourceName, func(ctx context.Context) error {
		cfg, err := FromMap(raw)
		if err != nil {
			return err
		}
		_, err = a.client.Title(ctx, cfg)
		return err
	})
}

var _ datasource.Adapter = (*Adapter)(nil)
