package brfmt

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatInt formats n with pt-BR thousands grouping, e.g. 50000 -> "50.000".
func FormatInt(n int64) string {
	return strings.ReplaceAll(humanize.Comma(n), ",", ".")
}

// ParseInt reads the digits of a grouped number such as "50.000".
// Every non-digit is ignored and input without digits yields 0. Values
// that overflow saturate at math.MaxInt64.
func ParseInt(s string) int64 {
	digits := onlyDigits(s)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

// MaskNumber reformats typed quota input with thousands grouping.
// It returns "" when the input holds no digits.
func MaskNumber(s string) string {
	if onlyDigits(s) == "" {
		return ""
	}
	return FormatInt(ParseInt(s))
}
