// Package csv serves delimited files from local disk as a data source.
package csv

import (
	"context"
	encsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/inference"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/query"
)

const sourceName = string(models.DataSourceCSV)

// sampleValuesPerColumn is how many converted values a schema column carries.
const sampleValuesPerColumn = 5

// Config contains CSV-specific options.
type Config struct {
	FilePath  string `json:"file_path" validate:"required"`
	Delimiter string `json:"delimiter" validate:"omitempty,len=1"`
	HasHeader *bool  `json:"has_header"`
}

// FromMap decodes and validates a stored config map, applying defaults.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	if err := datasource.DecodeConfig(sourceName, raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if cfg.HasHeader == nil {
		t := true
		cfg.HasHeader = &t
	}
	return cfg, nil
}

// Adapter reads the whole file on every call, so edits on disk are picked up
// without invalidation.
type Adapter struct {
	logger *zap.Logger
}

// NewAdapter creates a CSV adapter.
func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger.Named("csv")}
}

// GetSchema infers each column's type from its first 100 non-empty values.
func (a *Adapter) GetSchema(ctx context.Context, raw map[string]any) (*models.Schema, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	_, schema, err := a.load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// ExecuteQuery evaluates a structured query in memory. Literal SQL is rejected.
func (a *Adapter) ExecuteQuery(ctx context.Context, raw map[string]any, q models.Query) (*models.Result, error) {
	if q.IsSQL() {
		return nil, apperrors.NewConfigurationError(sourceName, "csv sources accept structured queries only", nil)
	}
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}

	result, schema, err := a.load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if q.Structured == nil {
		return result, nil
	}

	out := query.Apply(result, *q.Structured, schema)
	a.logger.Debug("executed structured query",
		zap.String("file", cfg.FilePath),
		zap.Int("rowsIn", len(result.Records)),
		zap.Int("rowsOut", len(out.Records)),
	)
	return out, nil
}

// ValidateConnection checks that the file exists and has a readable first record.
func (a *Adapter) ValidateConnection(ctx context.Context, raw map[string]any) bool {
	return datasource.SafeValidate(ctx, a.logger, sourceName, func(ctx context.Context) error {
		cfg, err := FromMap(raw)
		if err != nil {
			return err
		}
		info, err := os.Stat(cfg.FilePath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", cfg.FilePath)
		}
		f, err := os.Open(cfg.FilePath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = newReader(f, cfg).Read()
		return err
	})
}

func newReader(r io.Reader, cfg *Config) *encsv.Reader {
	reader := encsv.NewReader(r)
	reader.Comma, _ = utf8.DecodeRuneInString(cfg.Delimiter)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}

// load parses the file into typed records and the matching schema.
func (a *Adapter) load(ctx context.Context, cfg *Config) (*models.Result, *models.Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(cfg.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperrors.NewConfigurationError(sourceName, "file not found: "+cfg.FilePath, err)
		}
		return nil, nil, apperrors.NewConfigurationError(sourceName, "file is not readable: "+cfg.FilePath, err)
	}
	defer f.Close()

	rows, err := newReader(f, cfg).ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewConfigurationError(sourceName, "malformed csv", err)
	}
	if len(rows) == 0 {
		zero := 0
		return &models.Result{}, &models.Schema{RowCount: &zero}, nil
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var header []string
	if *cfg.HasHeader {
		header = rows[0]
		rows = rows[1:]
	}
	columns := columnNames(header, width)

	// raw cells per column, used for inference
	cells := make([][]any, width)
	for _, r := range rows {
		for i := 0; i < width; i++ {
			if i < len(r) {
				cells[i] = append(cells[i], r[i])
			} else {
				cells[i] = append(cells[i], "")
			}
		}
	}

	schema := &models.Schema{Columns: make([]models.SchemaColumn, width)}
	for i, name := range columns {
		schema.Columns[i] = models.SchemaColumn{
			Name: name,
			Type: inference.InferType(cells[i]),
		}
	}

	records := make([]models.Record, len(rows))
	for ri := range rows {
		rec := make(models.Record, width)
		for ci := range schema.Columns {
			col := &schema.Columns[ci]
			v := inference.Convert(cells[ci][ri].(string), col.Type)
			rec[col.Name] = v
			if v == nil {
				col.Nullable = true
			} else if len(col.SampleValues) < sampleValuesPerColumn {
				col.SampleValues = append(col.SampleValues, v)
			}
		}
		records[ri] = rec
	}

	count := len(records)
	schema.RowCount = &count
	return &models.Result{Columns: columns, Records: records}, schema, nil
}

// columnNames returns header names, or column_1..n for positional files.
// Blank or duplicate header cells get positional names too.
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" || seen[name] {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

var _ datasource.Adapter = (*Adapter)(nil)
