package jaasjwt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	// DefaultKeyPath is read by FileKeySource when no path is configured.
	DefaultKeyPath = "/etc/jaasjwt/rs256.pem"
	// DefaultKeyEnv is read by EnvKeySource when no variable name is configured.
	DefaultKeyEnv = "RS256_PRIVATE_KEY"
)

// KeySource yields PEM encoded private key material.
type KeySource interface {
	ReadKey(ctx context.Context) ([]byte, error)
}

// FileKeySource reads the key from a file on disk.
type FileKeySource struct {
	Path string
}

// ReadKey implements KeySource.
func (s FileKeySource) ReadKey(context.Context) ([]byte, error) {
	path := s.Path
	if path == "" {
		path = DefaultKeyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// EnvKeySource reads the key from an environment variable.
type EnvKeySource struct {
	Name string
}

// ReadKey implements KeySource.
func (s EnvKeySource) ReadKey(context.Context) ([]byte, error) {
	name := s.Name
	if name == "" {
		name = DefaultKeyEnv
	}
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}
	return []byte(value), nil
}

// SecretsManagerAPI is the subset of the Secrets Manager client used by SecretsManagerKeySource.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerKeySource reads the key from the string value of an AWS Secrets Manager secret.
type SecretsManagerKeySource struct {
	Client       SecretsManagerAPI
	SecretID     string
	VersionStage string
}

// ReadKey implements KeySource.
func (s SecretsManagerKeySource) ReadKey(ctx context.Context) ([]byte, error) {
	if s.Client == nil || s.SecretID == "" {
		return nil, errors.New("secrets manager client and secret id are required")
	}
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(s.SecretID)}
	if s.VersionStage != "" {
		input.VersionStage = aws.String(s.VersionStage)
	}
	out, err := s.Client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get secret %q: %w", s.SecretID, err)
	}
	if aws.ToString(out.SecretString) == "" {
		return nil, fmt.Errorf("secret %q has no string value", s.SecretID)
	}
	return []byte(aws.ToString(out.SecretString)), nil
}

// SigningKey is a parsed RSA private key. It is immutable and never printed.
type SigningKey struct {
	key jwk.Key
}

// PublicKey returns the public half as a JWK.
func (k *SigningKey) PublicKey() (jwk.Key, error) {
	return k.key.PublicKey()
}

// String keeps key material out of logs and fmt output.
func (k *SigningKey) String() string { return "SigningKey(RSA)" }

// GoString keeps key material out of %#v output.
func (k *SigningKey) GoString() string { return k.String() }

// KeyProvider loads the signing key once and serves the cached copy afterwards.
// A failed load is not cached; the next call tries the source again.
type KeyProvider struct {
	mu     sync.RWMutex
	source KeySource
	key    *SigningKey
}

// NewKeyProvider constructs a KeyProvider reading from source.
func NewKeyProvider(source KeySource) *KeyProvider {
	if source == nil {
		source = FileKeySource{}
	}
	return &KeyProvider{source: source}
}

// SigningKey returns the cached key, loading it on first use.
func (p *KeyProvider) SigningKey(ctx context.Context) (*SigningKey, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		return p.key, nil
	}

	pemBytes, err := p.source.ReadKey(ctx)
	if err != nil {
		return nil, newError(ErrCodeKeyLoad, err)
	}
	key, err = ParseSigningKey(pemBytes)
	if err != nil {
		return nil, err
	}
	p.key = key
	return key, nil
}

// ParseSigningKey parses a PEM encoded RSA private key (PKCS#8 or PKCS#1).
func ParseSigningKey(pemBytes []byte) (*SigningKey, error) {
	if len(strings.TrimSpace(string(pemBytes))) == 0 {
		return nil, newError(ErrCodeKeyParse, errors.New("key material is empty"))
	}
	parsed, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, newError(ErrCodeKeyParse, err)
	}
	if _, ok := parsed.(jwk.RSAPrivateKey); !ok {
		return nil, newError(ErrCodeKeyParse, fmt.Errorf("expected RSA private key, got %s %T", parsed.KeyType(), parsed))
	}
	return &SigningKey{key: parsed}, nil
}
