// Package fallback holds the deterministic, keyword-driven stand-ins for the
// AI collaborator. Everything here runs without network access.
package fallback

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// Canonical entity names.
const (
	EntitySales     = "sales"
	EntityCustomers = "customers"
	EntityProducts  = "products"
)

type entityKeywords struct {
	entity   string
	keywords []string
}

// entityTable is scanned in order, so entities come out in a stable order.
var entityTable = []entityKeywords{
	{EntitySales, []string{"sales", "sale", "revenue", "ventas", "ingresos"}},
	{EntityCustomers, []string{"customer", "user", "client", "clientes", "usuarios"}},
	{EntityProducts, []string{"product", "service", "productos", "servicios"}},
}

// knownYears are the timeframes recognized by substring match.
var knownYears = []string{"2020", "2021", "2022", "2023", "2024", "2025", "2026"}

var wordPattern = regexp.MustCompile(`[a-z0-9_]+`)

// Analyze reads a question with keyword rules. The first matching rule sets
// the query type: counting words give metrics, "by"/"each"/"per" give a
// distribution, time words give a trend, and anything else is metrics.
func Analyze(text string) models.Analysis {
	lower := strings.ToLower(text)
	words := wordPattern.FindAllString(lower, -1)

	entities := []string{}
	for _, e := range entityTable {
		for _, kw := range e.keywords {
			if strings.Contains(lower, kw) {
				entities = append(entities, e.entity)
				break
			}
		}
	}

	timeframe := ""
	firstAt := -1
	for _, y := range knownYears {
		if i := strings.Index(lower, y); i >= 0 && (firstAt < 0 || i < firstAt) {
			timeframe, firstAt = y, i
		}
	}

	queryType, chart := models.QueryMetrics, models.ChartBar
	switch {
	case strings.Contains(lower, "how many") || hasWord(words, "total", "totals", "count", "counts"):
		// metrics, same as the default
	case hasWord(words, "by", "each", "per"):
		queryType, chart = models.QueryDistribution, models.ChartPie
	case hasWordPrefix(words, "time", "month", "trend"):
		queryType, chart = models.QueryTrend, models.ChartLine
	}

	a := models.Analysis{
		Intent:                 intent(entities, timeframe),
		Entities:               entities,
		QueryType:              queryType,
		Timeframe:              timeframe,
		SuggestedVisualization: chart,
	}
	if timeframe != "" {
		a.Filters = map[string]any{"year": timeframe}
	}
	return a
}

func intent(entities []string, timeframe string) string {
	subject := "general"
	if len(entities) > 0 {
		subject = strings.Join(entities, " and ")
	}
	s := "Analyze " + subject + " data"
	if timeframe != "" {
		s += " for " + timeframe
	}
	return s
}

func hasWord(words []string, candidates ...string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

func hasWordPrefix(words []string, prefixes ...string) bool {
	for _, w := range words {
		for _, p := range prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}
