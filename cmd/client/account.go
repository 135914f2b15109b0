package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/atinyakov/chronos/internal/client"
)

func newRegisterCmd(a *app) *cobra.Command {
	var name string
	var force bool
	cmd := &cobra.Command{
		Use:   "register <login>",
		Short: "Create an account and save its client certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(a.cfg.CertFile); err == nil {
					return fmt.Errorf("%s already exists, use --force to replace it", a.cfg.CertFile)
				}
			}
			reg, err := a.api.Register(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			files := []struct {
				path string
				data string
				perm os.FileMode
			}{
				{a.cfg.CertFile, reg.Cert, 0o644},
				{a.cfg.KeyFile, reg.Key, 0o600},
				{a.cfg.CAFile, reg.CA, 0o644},
			}
			for _, f := range files {
				if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
					return fmt.Errorf("create credentials dir: %w", err)
				}
				if err := os.WriteFile(f.path, []byte(f.data), f.perm); err != nil {
					return fmt.Errorf("write %s: %w", f.path, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSuccess(fmt.Sprintf("Registered %q, certificate saved to %s", reg.User.Login, a.cfg.CertFile)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the login)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing client certificate")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account of the configured certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.api.Me(cmd.Context())
			if errors.Is(err, client.ErrNotFound) {
				return errors.New("the server has no profile for this certificate")
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styleTitle.Render(u.DisplayName)+" "+styleMuted.Render("@"+u.Login))
			fmt.Fprintf(out, "Member since %s\n", a.render.date(u.CreatedAt))
			fmt.Fprintf(out, "Last seen    %s\n", a.render.date(u.LastLoginAt))
			return nil
		},
	}
}
