// Command jaasjwt mints JaaS room tokens over HTTP or from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "jaasjwt",
		Short:         "Issue signed JaaS room tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", defaultEnvPath(), "Path to .env file (env JAASJWT_ENV_FILE)")

	load := func() (config, error) { return loadConfig(envFile) }
	root.AddCommand(
		newServeCmd(load),
		newMintCmd(load),
		newVerifyCmd(load),
		newJWKSCmd(load),
	)
	return root
}
