// Command certgen creates the CA, server and owner certificates for a
// capsule server running with mutual TLS.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/atinyakov/chronos/internal/certgen"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:          "certgen",
		Short:        "Generate mTLS certificates for the capsule server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "certs", "output directory")

	var hosts []string
	var owner string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a CA, a server certificate and a first owner certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ca, err := certgen.NewAuthority("Chronos CA")
			if err != nil {
				return err
			}
			if err := ca.PEM.Write(dir, "ca"); err != nil {
				return err
			}
			server, err := ca.IssueServer(hosts...)
			if err != nil {
				return err
			}
			if err := server.Write(dir, "server"); err != nil {
				return err
			}
			if err := issueOwner(ca, dir, owner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Certificates generated into %s\n", dir)
			return nil
		},
	}
	initCmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "server host names or IPs")
	initCmd.Flags().StringVar(&owner, "owner", "me", "owner id of the first client certificate")

	ownerCmd := &cobra.Command{
		Use:   "owner <id>",
		Short: "Issue an owner certificate from an existing CA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ca, err := certgen.LoadAuthority(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
			if err != nil {
				return err
			}
			if err := issueOwner(ca, dir, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Owner certificate for %q written to %s\n", args[0], dir)
			return nil
		},
	}

	root.AddCommand(initCmd, ownerCmd)
	return root
}

// issueOwner writes <dir>/<owner>.crt and .key.
func issueOwner(ca *certgen.Authority, dir, owner string) error {
	pair, err := ca.IssueOwner(owner)
	if err != nil {
		return err
	}
	return pair.Write(dir, owner)
}
