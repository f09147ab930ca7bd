// Package normalize provides the canonical string forms used for identity
// comparison across the import pipeline. All functions are pure and total.
package normalize

import (
	"strings"
)

// Email canonicalizes an email address for matching: trimmed, lower-cased.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone reduces a phone number to its digits. "+1 (555) 123-4567" becomes
// "15551234567".
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DomainFromEmail extracts the domain part of an email address. Returns ""
// unless splitting on "@" yields exactly two segments.
func DomainFromEmail(email string) string {
	parts := strings.Split(Email(email), "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// BestDomain picks the company domain for a row: an explicit domain wins,
// otherwise the domain is derived from the email. Returns "" when neither
// yields one.
func BestDomain(domain, email string) string {
	if d := strings.ToLower(strings.TrimSpace(domain)); d != "" {
		return d
	}
	return DomainFromEmail(email)
}

// Industry canonicalizes a free-text industry label.
func Industry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// leadSourceAliases folds common spreadsheet spellings into canonical
// lead-source values.
var leadSourceAliases = map[string]string{
	"linkedin":        "linkedin",
	"linkedin import": "linkedin",
	"li":              "linkedin",
	"referral":        "referral",
	"referred":        "referral",
	"web":             "website",
	"website":         "website",
	"site":            "website",
	"event":           "event",
	"conference":      "event",
	"trade show":      "event",
	"cold call":       "cold_call",
	"cold-call":       "cold_call",
	"cold email":      "cold_email",
	"cold-email":      "cold_email",
}

// LeadSource canonicalizes a lead-source label, folding known aliases.
// Unknown values pass through trimmed and lower-cased.
func LeadSource(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return ""
	}
	if canonical, ok := leadSourceAliases[v]; ok {
		return canonical
	}
	return v
}

// DisplayName derives a display name for a contact row. Preference order:
// explicit full name, first+last, the local part of the email, "Unnamed".
func DisplayName(name, first, last, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first != "" || last != "" {
		return strings.TrimSpace(first + " " + last)
	}
	if e := Email(email); e != "" {
		if at := strings.Index(e, "@"); at > 0 {
			return e[:at]
		}
	}
	return "Unnamed"
}
