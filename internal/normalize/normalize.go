// Package normalize canonicalizes property keys and values before they are
// written back to the feature store.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Snake converts s to lower snake case. Words break on any rune that is not a
// letter or digit and on lower-to-upper transitions ("landPlot", "XMLHttp").
// Letter/digit boundaries do not break, so "42a" stays "42a".
func Snake(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	lower := cases.Lower(language.Und)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, "_")
}

func splitWords(s string) []string {
	rs := []rune(s)
	var words []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(rs[start:end]))
		}
		start = -1
	}
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := rs[i-1]
		switch {
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush(i)
			start = i
		case unicode.IsLower(r) && unicode.IsUpper(prev) && i-1 > start:
			// "XMLHttp": the last upper of a run starts the next word
			flush(i - 1)
			start = i - 1
		}
	}
	flush(len(rs))
	return words
}

// Number parses s as a float and reports whether formatting the result gives
// back exactly s. "42" and "-3.5" qualify; "007", "1.50", "42a" and "-0" do not.
func Number(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f == 0 && math.Signbit(f) {
		return 0, false
	}
	if canonical(f) != s {
		return 0, false
	}
	return f, true
}

// canonical formats f the way a browser prints a number: plain decimals in
// [1e-6, 1e21), shortest exponent form ("1e-7", "1.5e+21") outside it.
func canonical(f float64) string {
	if a := math.Abs(f); a == 0 || (a >= 1e-6 && a < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// Value normalizes a submitted form value: exact numbers become float64,
// everything else is snake cased.
func Value(s string) any {
	if n, ok := Number(s); ok {
		return n
	}
	return Snake(s)
}

// Key normalizes a submitted property key.
func Key(s string) string {
	return Snake(s)
}
