package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Foo@BAR.com ", "foo@bar.com"},
		{"foo@bar.com", "foo@bar.com"},
		{"", ""},
		{"   ", ""},
		{"UPPER@CASE.IO", "upper@case.io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Email(tt.in), "Email(%q)", tt.in)
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 123-4567", "15551234567"},
		{"555.123.4567", "5551234567"},
		{"no digits", ""},
		{"", ""},
		{"00 49 30 1234", "0049301234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Phone(tt.in), "Phone(%q)", tt.in)
	}
}

func TestDomainFromEmail(t *testing.T) {
	assert.Equal(t, "acme.com", DomainFromEmail("jane@acme.com"))
	assert.Equal(t, "acme.com", DomainFromEmail(" Jane@ACME.com "))
	assert.Equal(t, "", DomainFromEmail("not-an-email"))
	assert.Equal(t, "", DomainFromEmail("two@@ats.com"))
	assert.Equal(t, "", DomainFromEmail(""))
}

func TestBestDomain(t *testing.T) {
	assert.Equal(t, "acme.com", BestDomain(" ACME.com ", "jane@other.com"), "explicit domain wins")
	assert.Equal(t, "other.com", BestDomain("", "jane@other.com"))
	assert.Equal(t, "", BestDomain("", "garbage"))
}

func TestLeadSource(t *testing.T) {
	assert.Equal(t, "linkedin", LeadSource("LinkedIn Import"))
	assert.Equal(t, "event", LeadSource("Conference"))
	assert.Equal(t, "cold_call", LeadSource("Cold Call"))
	assert.Equal(t, "newsletter", LeadSource(" Newsletter "), "unknown values pass through")
	assert.Equal(t, "", LeadSource(""))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", DisplayName("Jane Doe", "", "", "j@x.com"))
	assert.Equal(t, "Jane Doe", DisplayName("", "Jane", "Doe", ""))
	assert.Equal(t, "Jane", DisplayName("", "Jane", "", ""))
	assert.Equal(t, "jane.doe", DisplayName("", "", "", "Jane.Doe@x.com"))
	assert.Equal(t, "Unnamed", DisplayName("", "", "", ""))
	assert.Equal(t, "Unnamed", DisplayName("  ", "", "", "@broken"))
}
