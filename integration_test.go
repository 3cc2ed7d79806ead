package jaasjwt

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// TestDeployedKeyIntegration mints with a real tenant key and, when a JWKS
// endpoint is configured, verifies the token against it.
func TestDeployedKeyIntegration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("RUN_INTEGRATION_TESTS not set to true")
	}

	tenant := strings.TrimSpace(os.Getenv("JAASJWT_TENANT_ID"))
	kid := strings.TrimSpace(os.Getenv("JAASJWT_KEY_ID"))
	keyPath := strings.TrimSpace(os.Getenv("JAASJWT_PRIVATE_KEY_PATH"))
	if tenant == "" || kid == "" || keyPath == "" {
		t.Fatal("JAASJWT_TENANT_ID, JAASJWT_KEY_ID and JAASJWT_PRIVATE_KEY_PATH are required")
	}

	issuer, err := NewIssuer(IssuerConfig{TenantID: tenant, KeyID: kid}, NewKeyProvider(FileKeySource{Path: keyPath}))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	issued, err := issuer.Issue(ctx, aliceRequest())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.Claims.Subject != tenant {
		t.Fatalf("unexpected sub %q", issued.Claims.Subject)
	}

	cfg := VerifierConfig{Subject: tenant, HTTPTimeout: 10 * time.Second}
	if url := strings.TrimSpace(os.Getenv("JAASJWT_JWKS_URL")); url != "" {
		cfg.JWKSURL = url
	} else {
		set, err := issuer.PublicKeys(ctx)
		if err != nil {
			t.Fatalf("public keys: %v", err)
		}
		cfg.KeySet = set
	}

	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	claims, err := verifier.Verify(ctx, issued.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Room != "room42" || claims.User.Moderator != "true" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	t.Logf("token verified, expires at %s", claims.ExpiresAt.Format(time.RFC3339))
}
