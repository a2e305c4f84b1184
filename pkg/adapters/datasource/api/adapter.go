// Package api serves a JSON HTTP endpoint as a data source.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
	"github.com/ekaya-inc/ekaya-insights/pkg/retry"
)

const (
	sourceName = string(models.DataSourceAPI)

	maxResponseBytes = 32 << 20
)

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Config contains API endpoint options.
type Config struct {
	URL     string            `json:"url" validate:"required,url"`
	Method  string            `json:"method" validate:"omitempty,oneof=GET POST"`
	APIKey  string            `json:"api_key"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// FromMap decodes and validates a stored config map, applying defaults.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	if err := datasource.DecodeConfig(sourceName, raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	return cfg, nil
}

// statusError is a non-2xx response. 429 and 5xx are worth retrying.
type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string { return "API request failed: " + e.Status }

func (e *statusError) IsRetryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Adapter struct {
	client *http.Client
	retry  *retry.Config
	logger *zap.Logger
}

// NewAdapter creates an API adapter. A nil retry config uses retry.HTTPConfig.
func NewAdapter(client *http.Client, retryCfg *retry.Config, logger *zap.Logger) *Adapter {
	if retryCfg == nil {
		retryCfg = retry.HTTPConfig()
	}
	return &Adapter{client: client, retry: retryCfg, logger: logger.Named("api")}
}

// GetSchema infers columns from the first element of an array payload, or from
// the payload itself when it is an object.
func (a *Adapter) GetSchema(ctx context.Context, raw map[string]any) (*models.Schema, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	body, err := a.fetch(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}

	records, columns, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}

	schema := &models.Schema{Columns: []models.SchemaColumn{}}
	count := len(records)
	schema.RowCount = &count
	if len(records) == 0 {
		return schema, nil
	}
	first := records[0]
	for _, c := range columns {
		if _, ok := first[c]; !ok {
			continue
		}
		col := models.SchemaColumn{Name: c, Type: valueType(first[c]), Nullable: first[c] == nil}
		if first[c] != nil {
			col.SampleValues = []any{first[c]}
		}
		schema.Columns = append(schema.Columns, col)
	}
	return schema, nil
}

// ExecuteQuery performs a single request and returns the payload as records.
// Structured filters and limit are forwarded to the endpoint; nothing is
// filtered locally. Literal query text has no meaning for an endpoint and is
// ignored.
func (a *Adapter) ExecuteQuery(ctx context.Context, raw map[string]any, q models.Query) (*models.Result, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return nil, err
	}
	body, err := a.fetch(ctx, cfg, q.Structured)
	if err != nil {
		return nil, err
	}
	records, columns, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	return &models.Result{Columns: columns, Records: records}, nil
}

// ValidateConnection issues a HEAD request and reports whether it returned 2xx.
func (a *Adapter) ValidateConnection(ctx context.Context, raw map[string]any) bool {
	return datasource.SafeValidate(ctx, a.logger, sourceName, func(ctx context.Context) error {
		cfg, err := FromMap(raw)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.URL, nil)
		if err != nil {
			return err
		}
		setAuth(req, cfg)
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &statusError{Code: resp.StatusCode, Status: resp.Status}
		}
		return nil
	})
}

func setAuth(req *http.Request, cfg *Config) {
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
}

func (a *Adapter) fetch(ctx context.Context, cfg *Config, sq *models.StructuredQuery) ([]byte, error) {
	body, err := retry.DoWithResult(ctx, a.retry, func() ([]byte, error) {
		req, err := buildRequest(ctx, cfg, sq)
		if err != nil {
			return nil, err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &statusError{Code: resp.StatusCode, Status: resp.Status}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	if err != nil {
		a.logger.Warn("API request failed",
			zap.String("url", logging.SanitizeURL(cfg.URL)),
			zap.String("method", cfg.Method),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, apperrors.NewConnectionError(sourceName, "API request failed", err)
	}
	return body, nil
}

// buildRequest encodes structured filters as query parameters on GET and as a
// "filters" member of the JSON body on POST.
func buildRequest(ctx context.Context, cfg *Config, sq *models.StructuredQuery) (*http.Request, error) {
	target := cfg.URL
	var payload io.Reader

	if cfg.Method == http.MethodPost {
		body := map[string]any{}
		switch b := cfg.Body.(type) {
		case map[string]any:
			for k, v := range b {
				body[k] = v
			}
		case nil:
		default:
			body["body"] = b
		}
		if sq != nil {
			if len(sq.Filters) > 0 {
				body["filters"] = sq.Filters
			}
			if sq.Limit > 0 {
				body["limit"] = sq.Limit
			}
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	} else if sq != nil && (len(sq.Filters) > 0 || sq.Limit > 0) {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing url: %w", err)
		}
		params := u.Query()
		for _, f := range sq.Filters {
			key := f.Column
			if f.Operator != models.OpEquals && f.Operator != "" {
				key = fmt.Sprintf("%s[%s]", f.Column, f.Operator)
			}
			params.Add(key, fmt.Sprint(f.Value))
		}
		if sq.Limit > 0 {
			params.Set("limit", strconv.Itoa(sq.Limit))
		}
		u.RawQuery = params.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setAuth(req, cfg)
	return req, nil
}

// decodeRecords coerces a JSON payload into records. An array yields one
// record per element, an object yields a single record, and scalars are
// wrapped as {"value": v}. Column order follows the keys of the first object
// as they appear in the payload, then any later keys in sorted order.
func decodeRecords(body []byte) ([]models.Record, []string, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []models.Record{}, []string{}, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, apperrors.NewConnectionError(sourceName, "response is not valid JSON", err)
		}
	} else {
		if !json.Valid(trimmed) {
			return nil, nil, apperrors.NewConnectionError(sourceName, "response is not valid JSON", nil)
		}
		items = []json.RawMessage{trimmed}
	}

	records := make([]models.Record, 0, len(items))
	var columns []string
	seen := map[string]bool{}
	var extra []string

	for i, item := range items {
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, nil, apperrors.NewConnectionError(sourceName, "response is not valid JSON", err)
		}
		obj, ok := v.(map[string]any)
		if !ok {
			obj = map[string]any{"value": v}
			if !seen["value"] {
				seen["value"] = true
				columns = append(columns, "value")
			}
			records = append(records, obj)
			continue
		}
		if i == 0 {
			for _, k := range objectKeys(item) {
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
		records = append(records, obj)
	}

	sort.Strings(extra)
	columns = append(columns, extra...)
	if columns == nil {
		columns = []string{}
	}
	return records, columns, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

// valueType is the lightweight inference used for endpoint payloads, which
// arrive already typed.
func valueType(v any) models.ColumnType {
	switch val := v.(type) {
	case float64, json.Number:
		return models.ColumnNumber
	case bool:
		return models.ColumnBoolean
	case string:
		if isoDatePrefix.MatchString(val) {
			return models.ColumnDate
		}
	}
	return models.ColumnString
}

var _ datasource.Adapter = (*Adapter)(nil)
