package jaasjwt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWKSServer(t *testing.T, set jwk.Set) string {
	t.Helper()
	payload, err := json.Marshal(set)
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestVerifierLocalKeySet(t *testing.T) {
	issuer := newTestIssuer(t, &countingSource{pem: pkcs8PEM(t, newRSAKey(t))})
	set, err := issuer.PublicKeys(context.Background())
	require.NoError(t, err)

	verifier, err := NewVerifier(VerifierConfig{KeySet: set, Subject: testTenant})
	require.NoError(t, err)
	require.NoError(t, verifier.Warmup(context.Background()))

	token, err := issuer.IssueToken(context.Background(), aliceRequest())
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testTenant, claims.Subject)
	assert.Equal(t, "chat", claims.Issuer)
	assert.Equal(t, []string{"jitsi"}, claims.Audience)
	assert.Equal(t, "room42", claims.Room)
	assert.Equal(t, UserClaims{ID: "u1", Name: "Alice", Avatar: "http://x/a.png", Email: "a@x.com", Moderator: "true"}, claims.User)
	assert.Equal(t, FeatureClaims{Livestreaming: "false", Recording: "false", Moderation: "true"}, claims.Features)
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.NotBefore))
}

func TestVerifierRemoteJWKS(t *testing.T) {
	issuer := newTestIssuer(t, &countingSource{pem: pkcs8PEM(t, newRSAKey(t))})
	set, err := issuer.PublicKeys(context.Background())
	require.NoError(t, err)

	verifier, err := NewVerifier(VerifierConfig{
		JWKSURL:     newJWKSServer(t, set),
		MinRefresh:  time.Second,
		HTTPTimeout: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, verifier.Warmup(context.Background()))

	token, err := issuer.IssueToken(context.Background(), aliceRequest())
	require.NoError(t, err)
	claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "room42", claims.Room)
}

func TestVerifierRejects(t *testing.T) {
	issuer := newTestIssuer(t, &countingSource{pem: pkcs8PEM(t, newRSAKey(t))})
	set, err := issuer.PublicKeys(context.Background())
	require.NoError(t, err)
	token, err := issuer.IssueToken(context.Background(), aliceRequest())
	require.NoError(t, err)

	t.Run("wrong subject", func(t *testing.T) {
		verifier, err := NewVerifier(VerifierConfig{KeySet: set, Subject: "vpaas-magic-cookie-other"})
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeInvalidSubject, CodeOf(err))
	})

	t.Run("wrong audience", func(t *testing.T) {
		verifier, err := NewVerifier(VerifierConfig{KeySet: set, Audience: "other"})
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeInvalidAudience, CodeOf(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		verifier, err := NewVerifier(VerifierConfig{KeySet: set, Issuer: "other"})
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeInvalidIssuer, CodeOf(err))
	})

	t.Run("foreign key", func(t *testing.T) {
		other := newTestIssuer(t, &countingSource{pem: pkcs8PEM(t, newRSAKey(t))})
		otherSet, err := other.PublicKeys(context.Background())
		require.NoError(t, err)
		verifier, err := NewVerifier(VerifierConfig{KeySet: otherSet})
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeInvalidToken, CodeOf(err))
	})

	t.Run("empty token", func(t *testing.T) {
		verifier, err := NewVerifier(VerifierConfig{KeySet: set})
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), "")
		assert.Equal(t, ErrCodeInvalidToken, CodeOf(err))
	})
}

func TestVerifierExpiredAndNotYetValid(t *testing.T) {
	source := &countingSource{pem: pkcs8PEM(t, newRSAKey(t))}
	live := newTestIssuer(t, source)
	set, err := live.PublicKeys(context.Background())
	require.NoError(t, err)
	verifier, err := NewVerifier(VerifierConfig{KeySet: set, ClockSkew: time.Second})
	require.NoError(t, err)

	t.Run("expired token", func(t *testing.T) {
		past := newTestIssuer(t, source, WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
		token, err := past.IssueToken(context.Background(), aliceRequest())
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeExpired, CodeOf(err))
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := newTestIssuer(t, source, WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
		token, err := future.IssueToken(context.Background(), aliceRequest())
		require.NoError(t, err)
		_, err = verifier.Verify(context.Background(), token)
		assert.Equal(t, ErrCodeNotYetValid, CodeOf(err))
	})
}

func TestVerifierMissingContextClaim(t *testing.T) {
	key := newRSAKey(t)
	pub, err := jwk.PublicKeyOf(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("chat").
		Audience([]string{"jitsi"}).
		Subject(testTenant).
		NotBefore(now).
		Expiration(now.Add(time.Hour)).
		Build()
	require.NoError(t, err)

	priv, err := jwk.FromRaw(key)
	require.NoError(t, err)
	hdr := jws.NewHeaders()
	require.NoError(t, hdr.Set(jws.KeyIDKey, testKeyID))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv, jws.WithProtectedHeaders(hdr)))
	require.NoError(t, err)

	verifier, err := NewVerifier(VerifierConfig{KeySet: set})
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), string(signed))
	assert.Equal(t, ErrCodeInvalidToken, CodeOf(err))
}

func TestNewVerifierConfig(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	require.Error(t, err)

	_, err = NewVerifier(VerifierConfig{KeySet: jwk.NewSet(), JWKSURL: "https://example.com/jwks"})
	require.Error(t, err)
}

func TestVerifierJWKSUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	verifier, err := NewVerifier(VerifierConfig{JWKSURL: server.URL, HTTPTimeout: time.Second})
	require.NoError(t, err)
	err = verifier.Warmup(context.Background())
	assert.Equal(t, ErrCodeJWKSUnavailable, CodeOf(err))
}

func TestVerifierRequiresConfiguredSubject(t *testing.T) {
	key := newRSAKey(t)
	priv, err := jwk.FromRaw(key)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, testKeyID))
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("chat").
		Audience([]string{"jitsi"}).
		NotBefore(now).
		Expiration(now.Add(time.Hour)).
		Claim("context", map[string]any{"user": map[string]any{"id": "u1"}}).
		Build()
	require.NoError(t, err)
	hdr := jws.NewHeaders()
	require.NoError(t, hdr.Set(jws.KeyIDKey, testKeyID))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv, jws.WithProtectedHeaders(hdr)))
	require.NoError(t, err)

	lenient, err := NewVerifier(VerifierConfig{KeySet: set})
	require.NoError(t, err)
	claims, err := lenient.Verify(context.Background(), string(signed))
	require.NoError(t, err)
	assert.Empty(t, claims.Subject)

	strict, err := NewVerifier(VerifierConfig{KeySet: set, Subject: testTenant})
	require.NoError(t, err)
	_, err = strict.Verify(context.Background(), string(signed))
	assert.Equal(t, ErrCodeInvalidSubject, CodeOf(err))
}
