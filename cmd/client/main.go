// Command chronos is the terminal client of the capsule server.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atinyakov/chronos/internal/client"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// app holds what every command needs after flags and config are loaded.
type app struct {
	configPath string
	server     string
	cfg        *Config
	api        *client.Client
	render     renderer
	now        func() time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{now: time.Now}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chronos",
		Short:         "Seal messages for your future self",
		Long:          styleTitle.Render("Chronos") + " - time capsules in your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version":
				return nil
			case "register":
				return a.init(false)
			}
			return a.init(true)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&a.server, "server", "", "server URL (overrides config)")

	root.AddCommand(
		newSealCmd(a),
		newQuickCmd(a),
		newListCmd(a),
		newTimelineCmd(a),
		newGalleryCmd(a),
		newOpenCmd(a),
		newDeleteCmd(a),
		newLetterCmd(a),
		newTitleCmd(a),
		newWatchCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the config and builds the API client. Without withCert the
// client presents no certificate and trusts the CA file only if it exists.
func (a *app) init(withCert bool) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	setTheme(cfg.Theme)

	certFile, keyFile, caFile := cfg.CertFile, cfg.KeyFile, cfg.CAFile
	if !withCert {
		certFile, keyFile = "", ""
		if _, err := os.Stat(caFile); err != nil {
			caFile = ""
		}
	}
	hc, err := client.NewHTTPClient(certFile, keyFile, caFile)
	if err != nil {
		return err
	}
	a.api = client.New(cmp.Or(a.server, cfg.Server), hc)
	a.render = renderer{dateFormat: cfg.DateFormat, loc: time.Local}
	return nil
}

// resolveID expands a unique ID prefix, as printed by list, to a full ID.
func (a *app) resolveID(ctx context.Context, prefix string) (string, error) {
	capsules, err := a.api.List(ctx)
	if err != nil {
		return "", err
	}
	var match string
	for _, c := range capsules {
		if c.ID == prefix {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", client.ErrNotFound
	}
	return match, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Build version: %s\n", cmp.Or(version, "N/A"))
			fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", cmp.Or(buildDate, "N/A"))
		},
	}
}

func isLocked(err error) (*client.LockedError, bool) {
	var locked *client.LockedError
	ok := errors.As(err, &locked)
	return locked, ok
}
