package jaasjwt

import (
	"encoding/json"
	"errors"
)

// RequiredFields lists the token request fields in the order they are checked.
var RequiredFields = []string{"id", "name", "avatar", "email", "moderator", "livestreaming", "recording", "moderation", "room"}

// DecodeTokenRequest decodes a JSON object into a TokenRequest.
// The first absent field yields ErrCodeMissingParameter; a field of the wrong
// shape yields ErrCodeInvalidParameter.
func DecodeTokenRequest(body []byte) (TokenRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body is not a JSON object")
		}
		return TokenRequest{}, paramError(ErrCodeInvalidParameter, "body", err)
	}
	for _, name := range RequiredFields {
		if _, ok := fields[name]; !ok {
			return TokenRequest{}, paramError(ErrCodeMissingParameter, name, nil)
		}
	}

	var req TokenRequest
	strs := []struct {
		name string
		dst  *string
	}{
		{"id", &req.ID},
		{"name", &req.Name},
		{"avatar", &req.Avatar},
		{"email", &req.Email},
		{"room", &req.Room},
	}
	for _, f := range strs {
		if err := decodeString(fields[f.name], f.dst); err != nil {
			return TokenRequest{}, paramError(ErrCodeInvalidParameter, f.name, err)
		}
	}

	flags := []struct {
		name string
		dst  *Flag
	}{
		{"moderator", &req.Moderator},
		{"livestreaming", &req.Livestreaming},
		{"recording", &req.Recording},
		{"moderation", &req.Moderation},
	}
	for _, f := range flags {
		if err := json.Unmarshal(fields[f.name], f.dst); err != nil {
			return TokenRequest{}, paramError(ErrCodeInvalidParameter, f.name, err)
		}
	}
	return req, nil
}

func decodeString(raw json.RawMessage, dst *string) error {
	// json.Unmarshal leaves a string untouched for null, so reject it explicitly.
	if string(raw) == "null" {
		return errors.New("value must be a string, got null")
	}
	return json.Unmarshal(raw, dst)
}
