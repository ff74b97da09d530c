package scheduling

import (
	"net/mail"
	"strings"
)

// normalizeFromEmail extracts a bare local@domain address from an RFC 5322
// style From header ("Dana Lee <dana@example.com>", "dana@example.com").
// Empty or unparseable input yields "".
func normalizeFromEmail(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		// A bare address with stray whitespace still counts.
		if strings.Count(trimmed, "@") == 1 && !strings.ContainsAny(trimmed, " <>") {
			return strings.ToLower(trimmed)
		}
		return ""
	}
	return strings.ToLower(addr.Address)
}

// displayNameFromEmail derives a fallback greeting name from the local part.
func displayNameFromEmail(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "there"
	}
	// "dana.lee" and "dana_lee" read better split and capitalised.
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	words := strings.Fields(local)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "there"
	}
	return strings.Join(words, " ")
}

// firstName picks the leading word of a display name for greetings.
func firstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
