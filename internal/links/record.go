// Package links issues and resolves token-gated availability links. Short
// token ids live in Redis under a create-if-absent contract; the legacy HMAC
// token format remains readable for links minted by older deployments.
package links

// Record is the stored availability link. The token id itself is the key and
// is globally unique in the store.
type Record struct {
	TokenID           string `json:"tokenId"`
	AdvisorID         string `json:"advisorId"`
	ClientID          string `json:"clientId,omitempty"`
	ClientEmail       string `json:"clientEmail"`
	ClientDisplayName string `json:"clientDisplayName,omitempty"`
	ClientReference   string `json:"clientReference,omitempty"`
	ClientTimezone    string `json:"clientTimezone,omitempty"`
	DurationMinutes   int    `json:"durationMinutes"`
	IssuedAtMs        int64  `json:"issuedAtMs"`
	ExpiresAtMs       int64  `json:"expiresAtMs"`
}
