package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultIdentifierPattern matches work-order-number shaped tokens.
var DefaultIdentifierPattern = regexp.MustCompile(`[A-Z0-9][A-Z0-9-]{3,}`)

// zero look-alikes OCR produces inside numeric runs
var zeroLookalikes = map[rune]bool{'O': true, 'Q': true, 'D': true}

// ExtractIdentifier returns the first token in text matching pattern (or
// DefaultIdentifierPattern when nil) that contains at least one digit. If pattern
// has a capture group, the first group is used. Returns "" when nothing matches.
func ExtractIdentifier(text string, pattern *regexp.Regexp) string {
	if pattern == nil {
		pattern = DefaultIdentifierPattern
	}
	upper := strings.ToUpper(text)
	for _, m := range pattern.FindAllStringSubmatch(upper, -1) {
		tok := m[0]
		if len(m) > 1 && m[1] != "" {
			tok = m[1]
		}
		tok = fixDigitRuns(strings.Trim(tok, "-"))
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return tok
		}
	}
	return ""
}

// fixDigitRuns reads a run of O/Q/D as zeros when a digit sits on both sides of it,
// so "12345O7" becomes "1234507". Leading and trailing letters are kept: "1234567S"
// and "AB-1234" are returned unchanged.
func fixDigitRuns(tok string) string {
	rs := []rune(tok)
	for i := 0; i < len(rs); {
		if !zeroLookalikes[rs[i]] {
			i++
			continue
		}
		j := i
		for j < len(rs) && zeroLookalikes[rs[j]] {
			j++
		}
		if i > 0 && j < len(rs) && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[j]) {
			for k := i; k < j; k++ {
				rs[k] = '0'
			}
		}
		i = j
	}
	return string(rs)
}
