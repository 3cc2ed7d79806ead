package jaasjwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// IssuedToken is a signed token together with the claims it carries.
type IssuedToken struct {
	Token  string
	Claims ClaimSet
}

// ExpiresAt returns the exp claim as a time.
func (t *IssuedToken) ExpiresAt() time.Time {
	return time.Unix(t.Claims.ExpiresAt, 0)
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source used for nbf/exp.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// Issuer mints RS256 room tokens. It is safe for concurrent use.
type Issuer struct {
	cfg  IssuerConfig
	keys *KeyProvider
	now  func() time.Time
}

// NewIssuer builds an issuer signing with keys obtained from the given provider.
func NewIssuer(cfg IssuerConfig, keys *KeyProvider, opts ...IssuerOption) (*Issuer, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, errors.New("key provider is required")
	}
	i := &Issuer{cfg: cfg, keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Config returns the normalized issuer configuration.
func (i *Issuer) Config() IssuerConfig {
	return i.cfg
}

// IssueToken returns a compact signed token for req.
func (i *Issuer) IssueToken(ctx context.Context, req TokenRequest) (string, error) {
	issued, err := i.Issue(ctx, req)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// Issue signs a token for req and returns it with its claims.
// Every failure is reported as ErrCodeSigning wrapping the cause.
func (i *Issuer) Issue(ctx context.Context, req TokenRequest) (*IssuedToken, error) {
	key, err := i.keys.SigningKey(ctx)
	if err != nil {
		return nil, newError(ErrCodeSigning, err)
	}

	claims := newClaimSet(i.cfg, req, i.now())
	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, newError(ErrCodeSigning, fmt.Errorf("marshal claims: %w", err))
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.TypeKey, "JWT"); err != nil {
		return nil, newError(ErrCodeSigning, err)
	}
	if err := headers.Set(jws.KeyIDKey, i.cfg.KeyID); err != nil {
		return nil, newError(ErrCodeSigning, err)
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, key.key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return nil, newError(ErrCodeSigning, err)
	}
	return &IssuedToken{Token: string(signed), Claims: claims}, nil
}

// PublicKeys returns the public verification key as a JWK set tagged with the configured kid.
func (i *Issuer) PublicKeys(ctx context.Context) (jwk.Set, error) {
	key, err := i.keys.SigningKey(ctx)
	if err != nil {
		return nil, err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if err := pub.Set(jwk.KeyIDKey, i.cfg.KeyID); err != nil {
		return nil, fmt.Errorf("set kid: %w", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, fmt.Errorf("set alg: %w", err)
	}
	if err := pub.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("set use: %w", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("add key: %w", err)
	}
	return set, nil
}
