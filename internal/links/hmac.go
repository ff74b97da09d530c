package links

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// LegacyPayload is the body of the signed token format that predates the
// short-id store. New links never mint these, but inbound ones stay valid
// until they expire.
type LegacyPayload struct {
	AdvisorID       string `json:"advisorId"`
	IssuedAtMs      int64  `json:"issuedAtMs"`
	ExpiresAtMs     int64  `json:"expiresAtMs"`
	ClientTimezone  string `json:"clientTimezone,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

// SignLegacy produces "<base64url(payload)>.<base64url(hmac-sha256)>".
func SignLegacy(p LegacyPayload, key []byte) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + signature(encoded, key), nil
}

// VerifyLegacy checks the signature and payload sanity. Any failure returns
// (zero, false); callers never learn which check tripped.
func VerifyLegacy(token string, key []byte, now time.Time) (LegacyPayload, bool) {
	// Split on the last dot so a payload containing one cannot shift the
	// signature boundary.
	idx := strings.LastIndex(token, ".")
	if idx <= 0 {
		return LegacyPayload{}, false
	}
	encoded, gotSig := token[:idx], token[idx+1:]

	wantSig := signature(encoded, key)
	if len(gotSig) != len(wantSig) || !hmac.Equal([]byte(gotSig), []byte(wantSig)) {
		return LegacyPayload{}, false
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return LegacyPayload{}, false
	}
	var p LegacyPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return LegacyPayload{}, false
	}
	if p.AdvisorID == "" || p.IssuedAtMs <= 0 || p.ExpiresAtMs <= 0 {
		return LegacyPayload{}, false
	}
	if p.ExpiresAtMs <= now.UnixMilli() || p.ExpiresAtMs <= p.IssuedAtMs {
		return LegacyPayload{}, false
	}
	return p, true
}

func signature(encodedPayload string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
