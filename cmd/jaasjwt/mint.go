package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	jaasjwt "github.com/bionicotaku/lingo-utils-jaasjwt"
)

type mintFlags struct {
	requestFile   string
	id            string
	name          string
	avatar        string
	email         string
	room          string
	moderator     string
	livestreaming string
	recording     string
	moderation    string
	showClaims    bool
}

func newMintCmd(load func() (config, error)) *cobra.Command {
	var f mintFlags
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a single token and print it",
		Example: `  jaasjwt mint --id u1 --name Alice --email a@x.com --avatar http://x/a.png --room room42 --moderator true
  jaasjwt mint --request request.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			req, err := f.tokenRequest()
			if err != nil {
				return err
			}
			issuer, err := cfg.newIssuer(cmd.Context())
			if err != nil {
				return err
			}
			issued, err := issuer.Issue(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.showClaims {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(issued.Claims); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(out, issued.Token)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.requestFile, "request", "", "JSON file with the token request (overrides the field flags)")
	fl.StringVar(&f.id, "id", "", "User id")
	fl.StringVar(&f.name, "name", "", "User display name")
	fl.StringVar(&f.avatar, "avatar", "", "User avatar URL")
	fl.StringVar(&f.email, "email", "", "User email")
	fl.StringVar(&f.room, "room", "", "Room name")
	fl.StringVar(&f.moderator, "moderator", "false", "Grant moderator rights (true/false/1/0)")
	fl.StringVar(&f.livestreaming, "livestreaming", "false", "Enable livestreaming (true/false/1/0)")
	fl.StringVar(&f.recording, "recording", "false", "Enable recording (true/false/1/0)")
	fl.StringVar(&f.moderation, "moderation", "false", "Enable moderation (true/false/1/0)")
	fl.BoolVar(&f.showClaims, "claims", false, "Print the claim set before the token")
	return cmd
}

func (f mintFlags) tokenRequest() (jaasjwt.TokenRequest, error) {
	if f.requestFile != "" {
		data, err := os.ReadFile(f.requestFile)
		if err != nil {
			return jaasjwt.TokenRequest{}, err
		}
		return jaasjwt.DecodeTokenRequest(data)
	}

	req := jaasjwt.TokenRequest{ID: f.id, Name: f.name, Avatar: f.avatar, Email: f.email, Room: f.room}
	for _, flag := range []struct {
		name  string
		value string
		dst   *jaasjwt.Flag
	}{
		{"moderator", f.moderator, &req.Moderator},
		{"livestreaming", f.livestreaming, &req.Livestreaming},
		{"recording", f.recording, &req.Recording},
		{"moderation", f.moderation, &req.Moderation},
	} {
		v, err := jaasjwt.ParseFlag(flag.value)
		if err != nil {
			return jaasjwt.TokenRequest{}, fmt.Errorf("--%s: %w", flag.name, err)
		}
		*flag.dst = v
	}
	if req.ID == "" || req.Room == "" {
		return jaasjwt.TokenRequest{}, fmt.Errorf("--id and --room are required")
	}
	return req, nil
}
