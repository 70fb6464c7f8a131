package domain

import "strings"

// Credential is the secret bot token binding a shop bot to its transport identity.
// String masks it, so a Credential can be passed to loggers directly.
type Credential string

const visibleCredentialRunes = 8

// Secret returns the raw token; only the transport should call it
func (c Credential) Secret() string {
	return string(c)
}

// String returns the credential with everything past the first few characters hidden
func (c Credential) String() string {
	r := []rune(string(c))
	if len(r) <= visibleCredentialRunes {
		return strings.Repeat("*", len(r))
	}
	return string(r[:visibleCredentialRunes]) + "…"
}

// Redact replaces every occurrence of the credential in s
func (c Credential) Redact(s string) string {
	if c == "" {
		return s
	}
	return strings.ReplaceAll(s, string(c), "<REDACTED>")
}
