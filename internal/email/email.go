// Package email provides address validation and domain extraction.
//
// The checks are purely syntactic: no DNS or mailbox verification is done.
package email

import (
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	domainPattern  = regexp.MustCompile(`^[a-z0-9-]+(\.[a-z0-9-]+)*\.[a-z]{2,}$`)
)

// Normalize trims whitespace and lower-cases an address.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsValid reports whether addr matches the conservative
// local-part@domain.tld pattern.
func IsValid(addr string) bool {
	return addressPattern.MatchString(addr)
}

// ExtractDomain returns the lower-cased part after the first "@".
// Returns empty string if there is no "@" or the remainder is not
// shaped like a domain (labels, at least one dot, alphabetic TLD of 2+).
func ExtractDomain(addr string) string {
	at := strings.Index(addr, "@")
	if at < 0 {
		return ""
	}
	domain := strings.ToLower(addr[at+1:])
	if !domainPattern.MatchString(domain) {
		return ""
	}
	return domain
}

// Check validates addr and returns its domain.
// ok is false when either the address or its domain is malformed.
func Check(addr string) (domain string, ok bool) {
	if !IsValid(addr) {
		return "", false
	}
	domain = ExtractDomain(addr)
	return domain, domain != ""
}
