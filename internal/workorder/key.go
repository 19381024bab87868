// Package workorder derives the deterministic keys that identify a logical work order.
package workorder

import (
	"strings"
	"unicode"
)

// Key is the composite "<issuer>:<identifier>" key shared by every ingestion path.
type Key string

func (k Key) String() string { return string(k) }

// Split returns the issuer and identifier halves of k.
func (k Key) Split() (issuer, identifier string) {
	issuer, identifier, _ = strings.Cut(string(k), ":")
	return issuer, identifier
}

// NormalizeIssuer lowercases s and collapses runs of non-alphanumerics into '-'.
func NormalizeIssuer(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NormalizeIdentifier uppercases s and keeps only letters, digits and inner dashes,
// so "wo# 12 345" and "WO12345" do not diverge on whitespace or punctuation noise.
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// NewKey builds the key for issuer and identifier. It returns "" when either
// normalizes to nothing.
func NewKey(issuer, identifier string) Key {
	i, id := NormalizeIssuer(issuer), NormalizeIdentifier(identifier)
	if i == "" || id == "" {
		return ""
	}
	return Key(i + ":" + id)
}
