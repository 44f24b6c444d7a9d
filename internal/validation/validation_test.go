package validation

import (
	"strings"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "owner@example.com", "first.last+tag@sub.domain.org"}
	for _, s := range valid {
		if !IsValidEmail(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "no-at-sign", "a@b", "two@@example.com", "spaces in@example.com"}
	for _, s := range invalid {
		if IsValidEmail(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsValidMetric(t *testing.T) {
	valid := []string{"api_calls", "seats.active", "storage_bytes"}
	for _, s := range valid {
		if !IsValidMetric(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "API_CALLS", "1starts_with_digit", "has space", strings.Repeat("x", 100)}
	for _, s := range invalid {
		if IsValidMetric(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsValidDomain(t *testing.T) {
	valid := []string{"example.com", "sub.example.co.uk", "Acme.IO"}
	for _, s := range valid {
		if !IsValidDomain(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{"", "nodot", "-leading.com", "http://example.com"}
	for _, s := range invalid {
		if IsValidDomain(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  ", 100); got != "helloworld" {
		t.Errorf("SanitizeString = %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("SanitizeString truncation = %q", got)
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := SanitizeEmail("  Owner@Example.COM "); got != "owner@example.com" {
		t.Errorf("SanitizeEmail = %q", got)
	}
}
