package chart

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Palette is the fixed series color cycle.
var Palette = []string{
	"rgba(102, 126, 234, 0.8)",
	"rgba(244, 63, 94, 0.8)",
	"rgba(34, 197, 94, 0.8)",
	"rgba(251, 191, 36, 0.8)",
	"rgba(139, 92, 246, 0.8)",
	"rgba(236, 72, 153, 0.8)",
	"rgba(14, 165, 233, 0.8)",
	"rgba(249, 115, 22, 0.8)",
	"rgba(168, 85, 247, 0.8)",
	"rgba(84, 250, 175, 0.8)",
}

const areaFill = "rgba(102, 126, 234, 0.1)"

// opaque returns the palette color with alpha 1.
func opaque(color string) string {
	if i := strings.LastIndex(color, ","); i >= 0 && strings.HasSuffix(color, ")") {
		return color[:i] + ", 1)"
	}
	return color
}

// FormatNumber abbreviates large values: 2300000 -> "2.3M", 1500 -> "1.5K",
// anything below a thousand is rounded to an integer. Exact halves round
// away from zero, so 1250 is "1.3K".
func FormatNumber(v float64) string {
	switch {
	case v >= 1e6:
		return oneDecimal(v/1e6) + "M"
	case v >= 1e3:
		return oneDecimal(v/1e3) + "K"
	}
	return integer(v)
}

// FormatAxisValue is FormatNumber for axes and tooltips: small non-integers
// keep one decimal place.
func FormatAxisValue(v float64) string {
	switch {
	case math.Abs(v) >= 1e6:
		return oneDecimal(v/1e6) + "M"
	case math.Abs(v) >= 1e3:
		return oneDecimal(v/1e3) + "K"
	case v != math.Trunc(v):
		return oneDecimal(v)
	}
	return integer(v)
}

// oneDecimal formats v with one decimal place, deciding ties on the exact
// binary value of v and rounding them away from zero. %.1f would round
// exact ties to even.
func oneDecimal(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	tenths := new(big.Float).SetPrec(256).SetFloat64(v)
	tenths.Mul(tenths, big.NewFloat(10))
	tenths.Add(tenths, big.NewFloat(0.5))
	n, _ := tenths.Int(nil)

	whole, frac := new(big.Int).QuoRem(n, big.NewInt(10), new(big.Int))
	if whole.Sign() == 0 && frac.Sign() == 0 {
		sign = ""
	}
	return sign + whole.String() + "." + frac.String()
}

func integer(v float64) string {
	r := math.Round(v)
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', 0, 64)
}

// PieTooltip renders "label: value (p%)" where p is value's share of values.
func PieTooltip(label string, value float64, values []float64) string {
	total := sum(values)
	share := 0.0
	if total != 0 {
		share = value / total * 100
	}
	return fmt.Sprintf("%s: %s (%s%%)", label, FormatAxisValue(value), oneDecimal(share))
}
