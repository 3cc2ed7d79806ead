package jaasjwt

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

var googleValidate = idtoken.Validate

// Caller authentication methods.
const (
	CallerMethodAPIKey      = "api_key"
	CallerMethodGoogleToken = "google_id_token"
)

// CallerConfig lists the credentials a backend may present.
type CallerConfig struct {
	// APIKeys are accepted as "Authorization: Bearer <key>".
	APIKeys []string
	// GoogleAudience enables Google-signed ID tokens minted for this audience.
	GoogleAudience string
	// AllowedSubjects restricts Google callers by subject or email. Empty allows any.
	AllowedSubjects []string
	HTTPTimeout     time.Duration
}

// Caller identifies an authenticated backend.
type Caller struct {
	Method  string
	Subject string
	Email   string
}

// CallerAuthenticator checks the Authorization header of incoming token requests.
type CallerAuthenticator struct {
	apiKeys         [][]byte
	googleAudience  string
	allowedSubjects map[string]struct{}
	timeout         time.Duration
}

// NewCallerAuthenticator builds an authenticator from the given configuration.
func NewCallerAuthenticator(cfg CallerConfig) (*CallerAuthenticator, error) {
	a := &CallerAuthenticator{
		googleAudience:  strings.TrimSpace(cfg.GoogleAudience),
		allowedSubjects: toSet(cfg.AllowedSubjects),
		timeout:         cfg.HTTPTimeout,
	}
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			a.apiKeys = append(a.apiKeys, []byte(key))
		}
	}
	if len(a.apiKeys) == 0 && a.googleAudience == "" {
		return nil, errors.New("at least one API key or a Google audience must be configured")
	}
	if a.timeout <= 0 {
		a.timeout = defaultHTTPTimeout
	}
	return a, nil
}

// Authenticate validates an Authorization header value.
func (a *CallerAuthenticator) Authenticate(ctx context.Context, header string) (*Caller, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, newError(ErrCodeUnauthorized, errors.New("bearer credential is missing"))
	}
	for _, key := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(token), key) == 1 {
			return &Caller{Method: CallerMethodAPIKey}, nil
		}
	}
	if a.googleAudience == "" || strings.Count(token, ".") != 2 {
		return nil, newError(ErrCodeUnauthorized, errors.New("credential not recognized"))
	}
	return a.authenticateGoogle(ctx, token)
}

func (a *CallerAuthenticator) authenticateGoogle(ctx context.Context, token string) (*Caller, error) {
	validateCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	payload, err := googleValidate(validateCtx, token, a.googleAudience)
	if err != nil {
		return nil, newError(ErrCodeUnauthorized, err)
	}
	caller := &Caller{Method: CallerMethodGoogleToken, Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		caller.Email = strings.ToLower(email)
	}
	if !a.allowed(caller) {
		return nil, newError(ErrCodeUnauthorized, fmt.Errorf("subject %q not allowed", caller.Subject))
	}
	return caller, nil
}

func (a *CallerAuthenticator) allowed(c *Caller) bool {
	if len(a.allowedSubjects) == 0 {
		return true
	}
	if _, ok := a.allowedSubjects[strings.ToLower(c.Subject)]; ok {
		return true
	}
	if c.Email != "" {
		if _, ok := a.allowedSubjects[c.Email]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
