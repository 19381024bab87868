// Package issuer resolves inbound senders to configured issuer profiles.
package issuer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/workorder-intake/internal/entity"
)

// Rule names the domain comparison that produced a match.
type Rule string

const (
	RuleExact         Rule = "exact"
	RuleSenderSubdom  Rule = "sender-subdomain"
	RulePatternSubdom Rule = "pattern-subdomain"
	RuleSenderPrefix  Rule = "sender-prefix"
	RulePatternPrefix Rule = "pattern-prefix"
)

// AmbiguityWarning reports that more than one profile matched a sender. It is not
// fatal: the first profile in list order wins.
type AmbiguityWarning struct {
	Sender string
	Chosen string
	Others []string
}

func (w *AmbiguityWarning) Error() string {
	return fmt.Sprintf("sender %q matches %d profiles; using %q (also: %s)",
		w.Sender, len(w.Others)+1, w.Chosen, strings.Join(w.Others, ", "))
}

// Match is a successful profile resolution.
type Match struct {
	Profile *entity.IssuerProfile
	Pattern string
	Rule    Rule
	Warning *AmbiguityWarning
}

// Matcher holds an ordered profile list.
type Matcher struct {
	profiles []entity.IssuerProfile
	logger   *slog.Logger
}

func NewMatcher(profiles []entity.IssuerProfile, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{profiles: profiles, logger: logger}
}

// Profiles returns the configured profiles in match order.
func (m *Matcher) Profiles() []entity.IssuerProfile { return m.profiles }

// Match returns the first profile any of whose patterns matches sender.
func (m *Matcher) Match(sender string) (Match, bool) {
	res, ok := matchProfiles(sender, m.profiles)
	if !ok {
		m.logger.Debug("issuer.match.none", "sender", sender)
		return Match{}, false
	}
	if res.Warning != nil {
		m.logger.Warn("issuer.match.ambiguous",
			"sender", sender,
			"chosen", res.Warning.Chosen,
			"others", res.Warning.Others,
		)
	}
	m.logger.Debug("issuer.match.ok", "sender", sender, "issuer", res.Profile.IssuerKey, "pattern", res.Pattern, "rule", res.Rule)
	return res, true
}

// MatchIssuer is the stateless form of Matcher.Match.
func MatchIssuer(sender string, profiles []entity.IssuerProfile) *entity.IssuerProfile {
	res, ok := matchProfiles(sender, profiles)
	if !ok {
		return nil
	}
	return res.Profile
}

func matchProfiles(sender string, profiles []entity.IssuerProfile) (Match, bool) {
	domain := SenderDomain(sender)
	if domain == "" {
		return Match{}, false
	}
	var first Match
	found := false
	var others []string
	for i := range profiles {
		p := &profiles[i]
		pattern, rule, ok := matchDomain(domain, p.DomainPatterns)
		if !ok {
			continue
		}
		if !found {
			first = Match{Profile: p, Pattern: pattern, Rule: rule}
			found = true
			continue
		}
		others = append(others, p.IssuerKey)
	}
	if found && len(others) > 0 {
		first.Warning = &AmbiguityWarning{Sender: domain, Chosen: first.Profile.IssuerKey, Others: others}
	}
	return first, found
}

func matchDomain(domain string, patterns []string) (string, Rule, bool) {
	for _, raw := range patterns {
		pattern := normalizeDomain(raw)
		if pattern == "" {
			continue
		}
		if rule, ok := DomainMatches(domain, pattern); ok {
			return pattern, rule, true
		}
	}
	return "", "", false
}

// DomainMatches applies the ordered domain rules to a normalized sender domain
// and pattern. A sender domain without a dot matches only by equality.
func DomainMatches(sender, pattern string) (Rule, bool) {
	switch {
	case sender == pattern:
		return RuleExact, true
	case !strings.Contains(sender, "."):
		return "", false
	case strings.HasSuffix(sender, "."+pattern):
		return RuleSenderSubdom, true
	case strings.HasSuffix(pattern, "."+sender):
		return RulePatternSubdom, true
	case strings.HasPrefix(sender, pattern+"."):
		return RuleSenderPrefix, true
	case strings.HasPrefix(pattern, sender+"."):
		return RulePatternPrefix, true
	}
	return "", false
}

// SenderDomain reduces an address ("Ops <ops@Mail.Acme.com>") or bare domain to a
// lowercase domain.
func SenderDomain(sender string) string {
	s := strings.TrimSpace(sender)
	if i := strings.LastIndexByte(s, '<'); i >= 0 {
		s = strings.TrimSuffix(s[i+1:], ">")
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	return normalizeDomain(s)
}

func normalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimPrefix(s, "*.")
	return strings.Trim(s, ".>")
}
