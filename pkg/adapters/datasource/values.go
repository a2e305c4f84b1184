package datasource

import (
	"time"

	"github.com/google/uuid"
)

// NormalizeValue converts driver-specific scan results into the plain values
// records carry: strings for bytes and UUIDs, float64 for float32, and dates
// as "2006-01-02" when they fall on midnight UTC or RFC3339 otherwise.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case float32:
		return float64(val)
	case time.Time:
		u := val.UTC()
		if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
			return u.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	}
	return v
}
