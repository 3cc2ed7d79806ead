package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
	"github.com/bionicotaku/lingo-utils-jaasjwt/logging"
)

// Key source kinds.
const (
	keySourceFile           = "file"
	keySourceEnv            = "env"
	keySourceSecretsManager = "aws-secretsmanager"
)

type config struct {
	TenantID string        `env:"JAASJWT_TENANT_ID"`
	KeyID    string        `env:"JAASJWT_KEY_ID"`
	TokenTTL time.Duration `env:"JAASJWT_TOKEN_TTL" envDefault:"24h"`

	KeySource        string `env:"JAASJWT_KEY_SOURCE" envDefault:"file"`
	PrivateKeyPath   string `env:"JAASJWT_PRIVATE_KEY_PATH" envDefault:"/etc/jaasjwt/rs256.pem"`
	PrivateKeyEnv    string `env:"JAASJWT_PRIVATE_KEY_ENV" envDefault:"RS256_PRIVATE_KEY"`
	AWSSecretID      string `env:"JAASJWT_AWS_SECRET_ID"`
	AWSSecretVersion string `env:"JAASJWT_AWS_SECRET_VERSION_STAGE"`
	AWSRegion        string `env:"JAASJWT_AWS_REGION"`

	APIKeys               []string `env:"JAASJWT_API_KEYS" envSeparator:","`
	GoogleAudience        string   `env:"JAASJWT_GOOGLE_AUDIENCE"`
	GoogleAllowedSubjects []string `env:"JAASJWT_GOOGLE_ALLOWED_SUBJECTS" envSeparator:","`

	Addr         string        `env:"JAASJWT_ADDR" envDefault:":8080"`
	CORSOrigins  []string      `env:"JAASJWT_CORS_ORIGINS" envSeparator:","`
	ReadTimeout  time.Duration `env:"JAASJWT_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"JAASJWT_WRITE_TIMEOUT" envDefault:"15s"`

	LogLevel  string `env:"JAASJWT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"JAASJWT_LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"JAASJWT_LOG_FILE"`
}

func defaultEnvPath() string {
	if path := os.Getenv("JAASJWT_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

// loadConfig reads an optional .env file, then parses the environment.
// Variables already present in the environment win over the file.
func loadConfig(envPath string) (config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c config) issuerConfig() jaasjwt.IssuerConfig {
	return jaasjwt.IssuerConfig{
		TenantID: c.TenantID,
		KeyID:    c.KeyID,
		Validity: c.TokenTTL,
	}
}

func (c config) callerConfig() jaasjwt.CallerConfig {
	return jaasjwt.CallerConfig{
		APIKeys:         c.APIKeys,
		GoogleAudience:  c.GoogleAudience,
		AllowedSubjects: c.GoogleAllowedSubjects,
	}
}

func (c config) loggingConfig() logging.Config {
	return logging.Config{
		Level:   c.LogLevel,
		Format:  c.LogFormat,
		File:    c.LogFile,
		Service: "jaasjwt",
	}
}

func (c config) keySource(ctx context.Context) (jaasjwt.KeySource, error) {
	switch c.KeySource {
	case "", keySourceFile:
		return jaasjwt.FileKeySource{Path: c.PrivateKeyPath}, nil
	case keySourceEnv:
		return jaasjwt.EnvKeySource{Name: c.PrivateKeyEnv}, nil
	case keySourceSecretsManager:
		if c.AWSSecretID == "" {
			return nil, errors.New("JAASJWT_AWS_SECRET_ID is required for the aws-secretsmanager key source")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if c.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(c.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return jaasjwt.SecretsManagerKeySource{
			Client:       secretsmanager.NewFromConfig(awsCfg),
			SecretID:     c.AWSSecretID,
			VersionStage: c.AWSSecretVersion,
		}, nil
	}
	return nil, fmt.Errorf("unknown key source %q (want %s, %s or %s)", c.KeySource, keySourceFile, keySourceEnv, keySourceSecretsManager)
}

// newIssuer builds the key provider and issuer from the configuration.
func (c config) newIssuer(ctx context.Context) (*jaasjwt.Issuer, error) {
	source, err := c.keySource(ctx)
	if err != nil {
		return nil, err
	}
	return jaasjwt.NewIssuer(c.issuerConfig(), jaasjwt.NewKeyProvider(source))
}
