package jaasjwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTenant = "vpaas-magic-cookie-098f04f2b4b64b6cbd0b6490cd5f2319"
	testKeyID  = testTenant + "/f682a6"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func pkcs8PEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func pkcs1PEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// countingSource is a KeySource that records how often it is read.
type countingSource struct {
	pem   []byte
	err   error
	reads atomic.Int32
	delay time.Duration
}

func (s *countingSource) ReadKey(context.Context) ([]byte, error) {
	s.reads.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.pem, nil
}

func newTestIssuer(t *testing.T, source KeySource, opts ...IssuerOption) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(IssuerConfig{TenantID: testTenant, KeyID: testKeyID}, NewKeyProvider(source), opts...)
	require.NoError(t, err)
	return issuer
}

func aliceRequest() TokenRequest {
	return TokenRequest{
		ID:            "u1",
		Name:          "Alice",
		Avatar:        "http://x/a.png",
		Email:         "a@x.com",
		Moderator:     true,
		Livestreaming: false,
		Recording:     false,
		Moderation:    true,
		Room:          "room42",
	}
}
