package jaasjwt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAudience = "jitsi"
	defaultIssuer   = "chat"
	defaultValidity = 24 * time.Hour
)

// IssuerConfig describes the tenant identity stamped into every token.
type IssuerConfig struct {
	// TenantID is the JaaS "magic cookie" placed in the sub claim.
	TenantID string
	// KeyID is the kid header, <TenantID>/<key fingerprint>.
	KeyID    string
	Audience string
	Issuer   string
	Validity time.Duration
}

// normalize sets default values for optional fields.
func (c *IssuerConfig) normalize() {
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.KeyID = strings.TrimSpace(c.KeyID)
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if c.Issuer == "" {
		c.Issuer = defaultIssuer
	}
	if c.Validity == 0 {
		c.Validity = defaultValidity
	}
}

// validate ensures the issuer configuration is usable.
func (c IssuerConfig) validate() error {
	switch {
	case c.TenantID == "":
		return errors.New("tenant id is required")
	case c.KeyID == "":
		return errors.New("key id is required")
	case !strings.HasPrefix(c.KeyID, c.TenantID+"/") || len(c.KeyID) == len(c.TenantID)+1:
		return fmt.Errorf("key id %q must have the form %s/<fingerprint>", c.KeyID, c.TenantID)
	case c.Validity < time.Second || c.Validity%time.Second != 0:
		return fmt.Errorf("validity %s must be a positive whole number of seconds", c.Validity)
	}
	return nil
}
