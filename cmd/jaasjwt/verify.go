package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
)

func newVerifyCmd(load func() (config, error)) *cobra.Command {
	var (
		jwksURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print its claims",
		Long: `Verify a token signed by this service.

The token is taken from the argument or the JAASJWT_TOKEN environment variable.
Without --jwks-url the public key is derived from the configured private key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			token := os.Getenv("JAASJWT_TOKEN")
			if len(args) == 1 {
				token = args[0]
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token is required (argument or JAASJWT_TOKEN)")
			}

			vcfg := jaasjwt.VerifierConfig{
				JWKSURL:     jwksURL,
				Subject:     cfg.TenantID,
				HTTPTimeout: timeout,
			}
			if jwksURL == "" {
				issuer, err := cfg.newIssuer(cmd.Context())
				if err != nil {
					return err
				}
				set, err := issuer.PublicKeys(cmd.Context())
				if err != nil {
					return err
				}
				vcfg.KeySet = set
			}
			verifier, err := jaasjwt.NewVerifier(vcfg)
			if err != nil {
				return err
			}
			if err := verifier.Warmup(cmd.Context()); err != nil {
				return err
			}
			claims, err := verifier.Verify(cmd.Context(), token)
			if err != nil {
				return err
			}
			printClaims(cmd.OutOrStdout(), claims)
			return nil
		},
	}
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "Verify against a remote JWKS instead of the local key")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for fetching the JWKS")
	return cmd
}

func newJWKSCmd(load func() (config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Print the public key set for the configured signing key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			issuer, err := cfg.newIssuer(cmd.Context())
			if err != nil {
				return err
			}
			set, err := issuer.PublicKeys(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		},
	}
}

func printClaims(w io.Writer, claims *jaasjwt.Claims) {
	fmt.Fprintln(w, "== JaaS Token Verified ==")
	fmt.Fprintf(w, "subject       : %s\n", claims.Subject)
	fmt.Fprintf(w, "issuer        : %s\n", claims.Issuer)
	fmt.Fprintf(w, "audience      : %s\n", strings.Join(claims.Audience, ","))
	fmt.Fprintf(w, "room          : %s\n", claims.Room)
	fmt.Fprintf(w, "not_before    : %s\n", claims.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "expires_at    : %s\n", claims.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "user.id       : %s\n", claims.User.ID)
	fmt.Fprintf(w, "user.name     : %s\n", claims.User.Name)
	fmt.Fprintf(w, "user.email    : %s\n", claims.User.Email)
	fmt.Fprintf(w, "user.avatar   : %s\n", claims.User.Avatar)
	fmt.Fprintf(w, "moderator     : %s\n", claims.User.Moderator)
	fmt.Fprintf(w, "livestreaming : %s\n", claims.Features.Livestreaming)
	fmt.Fprintf(w, "recording     : %s\n", claims.Features.Recording)
	fmt.Fprintf(w, "moderation    : %s\n", claims.Features.Moderation)
}
