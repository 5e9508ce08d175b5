package main

import (
	"github.com/spf13/cobra"
)

// Version is the release version (set by build flags).
var Version = "0.1.0"

type rootFlags struct {
	configFile string
	daemon     bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "mini-https-server",
		Short: "Minimal HTTPS static file server",
		Long: `mini-https-server answers GET requests with files from a document root.

Each connection carries exactly one request: the server replies and closes it.
In --daemon mode the server binds port 443 by default, records its pid and
drops to the configured user and group.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}
	cmd.SetVersionTemplate("mini-https-server, version: {{.Version}}\n")
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "configuration file (YAML)")
	cmd.Flags().BoolVar(&flags.daemon, "daemon", false, "run as a daemon on the privileged port")
	return cmd
}
