// Package inference classifies untyped tabular values into semantic column types.
package inference

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

const (
	// MaxSamples bounds how many values InferType looks at per column.
	MaxSamples = 100
	// QuickSamples is the sample size used by InferQuick.
	QuickSamples = 5
	// DefaultRatioThreshold is the share of samples that must match for InferRatio.
	DefaultRatioThreshold = 0.8
)

// enumeration order doubles as the tie-break order
var typeOrder = []models.ColumnType{
	models.ColumnString,
	models.ColumnNumber,
	models.ColumnDate,
	models.ColumnBoolean,
}

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDatePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	dashDatePattern  = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)
)

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// InferType returns the plurality type of up to MaxSamples non-empty values.
// It is a pure function of the sample bag; an empty bag yields ColumnString.
func InferType(samples []any) models.ColumnType {
	return inferFrom(samples, MaxSamples)
}

// InferQuick is InferType restricted to the first QuickSamples non-empty values.
func InferQuick(samples []any) models.ColumnType {
	return inferFrom(samples, QuickSamples)
}

func inferFrom(samples []any, limit int) models.ColumnType {
	counts := make(map[models.ColumnType]int, len(typeOrder))
	seen := 0
	for _, v := range samples {
		if IsEmpty(v) {
			continue
		}
		counts[ClassifyValue(v)]++
		seen++
		if seen >= limit {
			break
		}
	}
	if seen == 0 {
		return models.ColumnString
	}

	best := models.ColumnString
	bestCount := -1
	for _, t := range typeOrder {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return best
}

// ClassifyValue classifies a single value by priority: boolean, number, date, string.
func ClassifyValue(v any) models.ColumnType {
	switch val := v.(type) {
	case bool:
		return models.ColumnBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return models.ColumnNumber
	case float32:
		if isFinite(float64(val)) {
			return models.ColumnNumber
		}
		return models.ColumnString
	case float64:
		if isFinite(val) {
			return models.ColumnNumber
		}
		return models.ColumnString
	case time.Time:
		return models.ColumnDate
	}

	s := strings.TrimSpace(toString(v))
	lower := strings.ToLower(s)
	if lower == "true" || lower == "false" {
		return models.ColumnBoolean
	}
	if _, ok := ParseNumber(s); ok {
		return models.ColumnNumber
	}
	if _, ok := ParseDate(s); ok {
		return models.ColumnDate
	}
	return models.ColumnString
}

// ParseNumber parses s fully as a finite float.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}

// ParseDate accepts YYYY-MM-DD (optionally followed by a time), MM/DD/YYYY
// and MM-DD-YYYY strings, plus time.Time values.
func ParseDate(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	if t, ok := v.(*time.Time); ok && t != nil {
		return *t, true
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)

	switch {
	case isoDatePattern.MatchString(s):
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case slashDatePattern.MatchString(s):
		if t, err := time.Parse("1/2/2006", s); err == nil {
			return t, true
		}
	case dashDatePattern.MatchString(s):
		if t, err := time.Parse("1-2-2006", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferRatio is the spreadsheet variant: a column is number or date only when
// strictly more than threshold of its non-empty samples match, otherwise text.
func InferRatio(samples []string, threshold float64) models.ColumnType {
	var numeric, dates, total int
	for _, s := range samples {
		if strings.TrimSpace(s) == "" {
			continue
		}
		total++
		if _, ok := ParseNumber(s); ok {
			numeric++
		}
		if _, ok := ParseDate(s); ok {
			dates++
		}
	}
	if total == 0 {
		return models.ColumnText
	}
	if float64(numeric)/float64(total) > threshold {
		return models.ColumnNumber
	}
	if float64(dates)/float64(total) > threshold {
		return models.ColumnDate
	}
	return models.ColumnText
}

// Convert turns a raw cell into a value of the column's type. Cells that do
// not convert are kept as their raw string; empty cells become nil.
func Convert(raw string, t models.ColumnType) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch t {
	case models.ColumnNumber:
		if f, ok := ParseNumber(s); ok {
			return f
		}
	case models.ColumnBoolean:
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
	case models.ColumnDate:
		if d, ok := ParseDate(s); ok {
			if d.Hour() == 0 && d.Minute() == 0 && d.Second() == 0 {
				return d.Format("2006-01-02")
			}
			return d.Format(time.RFC3339)
		}
	}
	return raw
}

// ToFloat coerces numbers and numeric strings; anything else reports false.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, isFinite(val)
	case float32:
		return float64(val), isFinite(float64(val))
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		return ParseNumber(val)
	case fmt.Stringer:
		return ParseNumber(val.String())
	}
	return 0, false
}

// IsEmpty reports whether v counts as missing for sampling purposes.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
