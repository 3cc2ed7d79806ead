package jaasjwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	defaultClockSkew   = 30 * time.Second
	defaultMinRefresh  = 5 * time.Minute
	defaultHTTPTimeout = 5 * time.Second
)

// VerifierConfig describes where verification keys come from and which claims to expect.
// Exactly one of KeySet and JWKSURL must be set.
type VerifierConfig struct {
	KeySet      jwk.Set
	JWKSURL     string
	Audience    string
	Issuer      string
	Subject     string
	ClockSkew   time.Duration
	MinRefresh  time.Duration
	HTTPTimeout time.Duration
}

func (c *VerifierConfig) normalize() {
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = defaultClockSkew
	}
	if c.MinRefresh <= 0 {
		c.MinRefresh = defaultMinRefresh
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
}

func (c VerifierConfig) validate() error {
	switch {
	case c.KeySet == nil && c.JWKSURL == "":
		return errors.New("either a key set or a JWKS URL is required")
	case c.KeySet != nil && c.JWKSURL != "":
		return errors.New("key set and JWKS URL are mutually exclusive")
	}
	return nil
}

// Verifier checks tokens minted by an Issuer.
type Verifier struct {
	cfg   VerifierConfig
	cache *jwk.Cache
}

// NewVerifier builds a verifier from the given configuration.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	v := &Verifier{cfg: cfg}
	if cfg.JWKSURL != "" {
		cache := jwk.NewCache(context.Background())
		httpClient := &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
		if err := cache.Register(
			cfg.JWKSURL,
			jwk.WithMinRefreshInterval(cfg.MinRefresh),
			jwk.WithHTTPClient(httpClient),
		); err != nil {
			return nil, fmt.Errorf("register jwks %q: %w", cfg.JWKSURL, err)
		}
		v.cache = cache
	}
	return v, nil
}

// Warmup refreshes the remote JWKS. It is a no-op for a static key set.
func (v *Verifier) Warmup(ctx context.Context) error {
	if v.cache == nil {
		return nil
	}
	refreshCtx, cancel := context.WithTimeout(ctx, v.cfg.HTTPTimeout)
	defer cancel()
	if _, err := v.cache.Refresh(refreshCtx, v.cfg.JWKSURL); err != nil {
		return newError(ErrCodeJWKSUnavailable, err)
	}
	return nil
}

// Verify checks the signature and registered claims of token and returns its claims.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, newError(ErrCodeInvalidToken, errors.New("token is empty"))
	}
	keySet, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse([]byte(token), jwt.WithKeySet(keySet), jwt.WithValidate(false))
	if err != nil {
		return nil, newError(ErrCodeInvalidToken, err)
	}

	validateOpts := []jwt.ValidateOption{
		jwt.WithAcceptableSkew(v.cfg.ClockSkew),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithRequiredClaim(jwt.NotBeforeKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if err := jwt.Validate(parsed, validateOpts...); err != nil {
		switch {
		case errors.Is(err, jwt.ErrInvalidIssuer()):
			return nil, newError(ErrCodeInvalidIssuer, err)
		case errors.Is(err, jwt.ErrInvalidAudience()):
			return nil, newError(ErrCodeInvalidAudience, err)
		case errors.Is(err, jwt.ErrTokenExpired()):
			return nil, newError(ErrCodeExpired, err)
		case errors.Is(err, jwt.ErrTokenNotYetValid()):
			return nil, newError(ErrCodeNotYetValid, err)
		default:
			return nil, newError(ErrCodeInvalidToken, err)
		}
	}

	if v.cfg.Subject != "" && parsed.Subject() != v.cfg.Subject {
		return nil, newError(ErrCodeInvalidSubject, fmt.Errorf("sub %q does not match %q", parsed.Subject(), v.cfg.Subject))
	}

	return extractClaims(parsed)
}

func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	if v.cache == nil {
		return v.cfg.KeySet, nil
	}
	set, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, newError(ErrCodeJWKSUnavailable, err)
	}
	return set, nil
}

func extractClaims(token jwt.Token) (*Claims, error) {
	claims := &Claims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		Audience:  append([]string(nil), token.Audience()...),
		ExpiresAt: token.Expiration(),
		NotBefore: token.NotBefore(),
	}
	private := token.PrivateClaims()
	if room, ok := private["room"].(string); ok {
		claims.Room = room
	}
	raw, ok := private["context"]
	if !ok {
		return nil, newError(ErrCodeInvalidToken, errors.New("context claim is missing"))
	}
	// The context claim arrives as a generic map; round-trip it into the typed form.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, newError(ErrCodeInvalidToken, fmt.Errorf("context claim: %w", err))
	}
	var cc ClaimContext
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, newError(ErrCodeInvalidToken, fmt.Errorf("context claim: %w", err))
	}
	claims.User = cc.User
	claims.Features = cc.Features
	return claims, nil
}
