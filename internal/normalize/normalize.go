// Package normalize repairs individual vendor field values into their
// canonical string forms.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigitRe   = regexp.MustCompile(`\D`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	priceJunkRe  = regexp.MustCompile(`[$,\s]`)
)

// truthy is the permissive token set for vendor boolean encodings.
var truthy = map[string]bool{
	"true": true,
	"yes":  true,
	"1":    true,
	"t":    true,
	"y":    true,
}

// Text trims surrounding whitespace and collapses internal runs of spaces.
func Text(raw string) string {
	return multiSpaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
}

// Phone strips every non-digit character. When exactly ten digits remain the
// result is formatted as (XXX) XXX-XXXX and ok is true; otherwise the bare
// digits are returned and ok is false.
func Phone(raw string) (string, bool) {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) != 10 {
		return digits, false
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:]), true
}

// Height converts a raw inch count into feet'inches" form. Values that are
// not a positive number are returned trimmed with ok false, on the
// assumption that they are already formatted.
func Height(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return s, false
	}
	inches := int(math.Round(n))
	return fmt.Sprintf("%d'%d\"", inches/12, inches%12), true
}

// falsy are the tokens read as an explicit no.
var falsy = map[string]bool{
	"false": true,
	"no":    true,
	"0":     true,
	"f":     true,
	"n":     true,
}

// Bool reports whether raw is one of true, yes, 1, t or y, ignoring case.
// Anything else is false.
func Bool(raw string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(raw))]
}

// ParseBool is Bool plus whether raw was a recognised yes or no token.
func ParseBool(raw string) (value, ok bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	return truthy[token], truthy[token] || falsy[token]
}

// List splits a comma-separated value into trimmed, non-empty segments. The
// literal "[]" yields an empty list.
func List(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "[]" {
		return []string{}
	}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Price parses a price, tolerating a leading dollar sign and thousands
// separators. Unparseable or negative values yield 0 with ok false.
func Price(raw string) (float64, bool) {
	s := priceJunkRe.ReplaceAllString(raw, "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int parses a whole number, accepting spreadsheet floats such as "42.0".
func Int(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// State upper-cases and trims a state code.
func State(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Gender maps values starting with m or f to Male or Female. Other values
// are returned trimmed.
func Gender(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(strings.ToLower(s), "m"):
		return "Male"
	case strings.HasPrefix(strings.ToLower(s), "f"):
		return "Female"
	default:
		return s
	}
}

// Zip trims whitespace and the ".0" suffix spreadsheets add to numeric zips.
func Zip(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasSuffix(s, ".0") && len(nonDigitRe.ReplaceAllString(s[:len(s)-2], "")) == len(s)-2 {
		s = s[:len(s)-2]
	}
	return s
}

// FormatPrice renders a price without trailing zeros: 45, 22.5, 49.01.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(RoundCents(p), 'f', -1, 64)
}

// RoundCents rounds to two decimal places.
func RoundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
