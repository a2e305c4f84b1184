// Package sql validates generated SQL and compiles structured queries to SQL.
package sql

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-insights/pkg/apperrors"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// bannedKeywords are matched as substrings of the lowercased statement.
var bannedKeywords = []string{"drop", "delete", "insert", "update", "alter", "create", "truncate"}

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateGeneratedSQL applies the read-only safety rules to SQL produced from a
// natural-language question and returns the normalized statement.
//
// Rules, in order: the statement starts with SELECT, contains none of the
// banned keywords, has balanced parentheses, and is a single statement.
// Violations are rejected, never repaired.
func ValidateGeneratedSQL(sqlQuery string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(sqlQuery))

	if lowered == "" {
		return "", apperrors.NewValidationError("empty", "", "query is empty")
	}
	if !strings.HasPrefix(lowered, "select") {
		return "", apperrors.NewValidationError("select_only", "", "only SELECT statements are allowed")
	}
	for _, kw := range bannedKeywords {
		if strings.Contains(lowered, kw) {
			return "", apperrors.NewValidationError("banned_keyword", strings.ToUpper(kw), "statement contains a disallowed command")
		}
	}
	if strings.Count(lowered, "(") != strings.Count(lowered, ")") {
		return "", apperrors.NewValidationError("parentheses", "", "unbalanced parentheses")
	}

	res := ValidateAndNormalize(sqlQuery)
	if res.Error != nil {
		return "", apperrors.NewValidationError("single_statement", "", res.Error.Error())
	}
	return res.NormalizedSQL, nil
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside string literals)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// a doubled '' exits and immediately re-enters, which keeps us in the string
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}

var (
	codeFencePattern  = regexp.MustCompile("```(?:sql|SQL)?\\n?")
	whitespacePattern = regexp.MustCompile(`\s+`)
	limitPattern      = regexp.MustCompile(`(?i)\blimit\s+\d+|\btop\s*\(?\s*\d+`)
	selectStarPattern = regexp.MustCompile(`(?i)^select\s+\*`)
	orderByPattern    = regexp.MustCompile(`(?i)\border\s+by\b`)
)

// CleanSQLResponse turns an LLM answer into a single-line statement: code
// fences are removed, whitespace runs collapse to one space, and the result
// ends with a semicolon.
func CleanSQLResponse(text string) string {
	text = codeFencePattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text != "" && !strings.HasSuffix(text, ";") {
		text += ";"
	}
	return text
}

// SuggestImprovements returns hints for making a generated statement cheaper
// or more precise. It never rejects anything.
func SuggestImprovements(sqlQuery string) []string {
	q := strings.TrimSpace(sqlQuery)
	var hints []string

	hasLimit := limitPattern.MatchString(q)
	if selectStarPattern.MatchString(q) {
		hints = append(hints, "Select only the columns you need instead of SELECT *")
	}
	if orderByPattern.MatchString(q) && !hasLimit {
		hints = append(hints, "ORDER BY without LIMIT sorts the whole result; add a LIMIT for top-N questions")
	} else if !hasLimit && !strings.Contains(strings.ToLower(q), "group by") {
		hints = append(hints, "Add a LIMIT to bound the number of returned rows")
	}
	return hints
}

// ExampleQuery pairs a natural-language question with SQL against the
// reference schema.
type ExampleQuery struct {
	Natural string `json:"natural"`
	SQL     string `json:"sql"`
}

// ExampleQueries returns sample questions with their expected SQL.
func ExampleQueries() []ExampleQuery {
	return []ExampleQuery{
		{
			Natural: "Show employees by country",
			SQL:     "SELECT country, COUNT(*) AS total_employees FROM employees GROUP BY country ORDER BY total_employees DESC;",
		},
		{
			Natural: "What are the 10 best-selling products?",
			SQL:     "SELECT p.product_name, SUM(od.quantity) AS total_sold FROM products p JOIN order_details od ON p.product_id = od.product_id GROUP BY p.product_id, p.product_name ORDER BY total_sold DESC LIMIT 10;",
		},
		{
			Natural: "Sales by product category",
			SQL:     "SELECT c.category_name, COUNT(od.order_id) AS total_sales FROM categories c JOIN products p ON c.category_id = p.category_id JOIN order_details od ON p.product_id = od.product_id GROUP BY c.category_id, c.category_name ORDER BY total_sales DESC;",
		},
		{
			Natural: "Orders per month in 2023",
			SQL:     "SELECT DATE_TRUNC('month', order_date) AS month, COUNT(*) AS total_orders FROM orders WHERE EXTRACT(YEAR FROM order_date) = 2023 GROUP BY month ORDER BY month;",
		},
		{
			Natural: "Top 5 customers by number of orders",
			SQL:     "SELECT c.company_name, COUNT(o.order_id) AS total_orders FROM customers c JOIN orders o ON c.customer_id = o.customer_id GROUP BY c.customer_id, c.company_name ORDER BY total_orders DESC LIMIT 5;",
		},
	}
}
