package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// InjectionCheckResult contains the result of an injection check on a value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Column or parameter the value belongs to
	ParamValue  any
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a value. Only strings are checked; other types return nil.
//
// Example:
//
//	CheckParameterForInjection("region", "North")                  // nil
//	CheckParameterForInjection("region", "'; DROP TABLE users--")  // IsSQLi == true
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckFilters screens every filter value of a structured query, in order.
func CheckFilters(filters []models.Filter) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, f := range filters {
		if result := CheckParameterForInjection(f.Column, f.Value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
