package jaasjwt

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Flag is a boolean-like request field. It decodes from true/false, "true"/"false" and 1/0
// and always renders as the literal "true" or "false".
type Flag bool

// String returns "true" or "false".
func (f Flag) String() string {
	return strconv.FormatBool(bool(f))
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", `"true"`, "1":
		*f = true
	case "false", `"false"`, "0":
		*f = false
	default:
		return fmt.Errorf("unsupported boolean value %s", data)
	}
	return nil
}

// ParseFlag parses the textual forms accepted by UnmarshalJSON.
func ParseFlag(s string) (Flag, error) {
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("unsupported boolean value %q", s)
}

// TokenRequest is a validated request for a room token.
type TokenRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
	Moderator     Flag   `json:"moderator"`
	Livestreaming Flag   `json:"livestreaming"`
	Recording     Flag   `json:"recording"`
	Moderation    Flag   `json:"moderation"`
	Room          string `json:"room"`
}

// UserClaims is context.user.
type UserClaims struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Email     string `json:"email"`
	Moderator string `json:"moderator"`
}

// FeatureClaims is context.features.
type FeatureClaims struct {
	Livestreaming string `json:"livestreaming"`
	Recording     string `json:"recording"`
	Moderation    string `json:"moderation"`
}

// ClaimContext is the context claim.
type ClaimContext struct {
	User     UserClaims    `json:"user"`
	Features FeatureClaims `json:"features"`
}

// ClaimSet is the exact JWT payload sent to the conferencing platform.
type ClaimSet struct {
	Audience  string       `json:"aud"`
	Context   ClaimContext `json:"context"`
	ExpiresAt int64        `json:"exp"`
	Issuer    string       `json:"iss"`
	NotBefore int64        `json:"nbf"`
	Room      string       `json:"room"`
	Subject   string       `json:"sub"`
}

func newClaimSet(cfg IssuerConfig, req TokenRequest, now time.Time) ClaimSet {
	nbf := now.Unix()
	return ClaimSet{
		Audience: cfg.Audience,
		Context: ClaimContext{
			User: UserClaims{
				ID:        req.ID,
				Name:      req.Name,
				Avatar:    req.Avatar,
				Email:     req.Email,
				Moderator: req.Moderator.String(),
			},
			Features: FeatureClaims{
				Livestreaming: req.Livestreaming.String(),
				Recording:     req.Recording.String(),
				Moderation:    req.Moderation.String(),
			},
		},
		ExpiresAt: nbf + int64(cfg.Validity/time.Second),
		Issuer:    cfg.Issuer,
		NotBefore: nbf,
		Room:      req.Room,
		Subject:   cfg.TenantID,
	}
}

// Claims represents a verified token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time
	Room      string

	User     UserClaims
	Features FeatureClaims
}
