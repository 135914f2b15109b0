package main

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/client"
	"github.com/atinyakov/chronos/internal/models"
)

func newSealCmd(a *app) *cobra.Command {
	var (
		title, message, unlock, theme string
		files                         []string
		upload                        bool
	)
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a new capsule",
		Example: `  chronos seal --title "Dear me" --message "..." --unlock 2030-01-01
  chronos seal --title "Summer" --unlock 1y --attach beach.jpg --upload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.now()
			at, err := parseUnlock(unlock, now)
			if err != nil {
				return err
			}

			draft := models.Draft{Title: title, Message: message, UnlockAt: at.UnixMilli(), ThemeColor: theme}
			for _, f := range files {
				att, err := a.attachment(cmd, f, upload)
				if err != nil {
					return err
				}
				draft.Attachments = append(draft.Attachments, att)
			}

			c, err := a.api.Seal(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSuccess(fmt.Sprintf("Sealed %q until %s (id %s)", c.Title, a.render.date(c.UnlockAt), shortID(c.ID))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "capsule title")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message body")
	cmd.Flags().StringVarP(&unlock, "unlock", "u", "", "unlock date (2006-01-02, RFC3339) or offset (90d, 2y, 720h)")
	cmd.Flags().StringVar(&theme, "theme", "", "theme color")
	cmd.Flags().StringSliceVarP(&files, "attach", "a", nil, "files to seal inside")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload attachments before sealing instead of sending them inline")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("unlock")
	return cmd
}

// attachment reads path and returns it inline as a data URI, or uploaded
// to the server's temp folder when upload is set.
func (a *app) attachment(cmd *cobra.Command, path string, upload bool) (models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)
	if upload {
		return a.api.Upload(cmd.Context(), name, data)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(name))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	// Parameters such as charset are dropped; dataurl.New takes them apart.
	mediaType, _, _ = strings.Cut(mediaType, ";")
	return models.Attachment{
		URL:  dataurl.New(data, mediaType).String(),
		Name: name,
	}, nil
}

func newQuickCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quick <note>",
		Short: "Seal a note to unlock at a random time 30 days to 2 years from now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.api.QuickNote(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSuccess(fmt.Sprintf("%s sealed. It will surprise you on %s.", c.Title, a.render.date(c.UnlockAt))))
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the dashboard and all capsules",
		RunE: func(cmd *cobra.Command, args []string) error {
			capsules, err := a.api.List(cmd.Context())
			if err != nil {
				return err
			}
			v := client.BuildView(capsules, a.now(), a.render.loc)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, a.render.Dashboard(v.Dashboard))
			fmt.Fprintln(out, a.render.List(v.Capsules, v.At))
			return nil
		},
	}
}

func newTimelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show capsules grouped by unlock year",
		RunE: func(cmd *cobra.Command, args []string) error {
			capsules, err := a.api.List(cmd.Context())
			if err != nil {
				return err
			}
			v := client.BuildView(capsules, a.now(), a.render.loc)
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Timeline(v.Timeline, v.At))
			return nil
		},
	}
}

func newGalleryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Show attachments of unlocked capsules",
		RunE: func(cmd *cobra.Command, args []string) error {
			capsules, err := a.api.List(cmd.Context())
			if err != nil {
				return err
			}
			v := client.BuildView(capsules, a.now(), a.render.loc)
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Gallery(v.Gallery))
			return nil
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Open a capsule whose time has come",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c, err := a.api.Open(cmd.Context(), id)
			if locked, ok := isLocked(err); ok {
				fmt.Fprintln(cmd.OutOrStdout(), a.render.Locked(locked, a.now()))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Capsule(c))
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a capsule and its attachments",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.resolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.api.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSuccess("Capsule deleted"))
			return nil
		},
	}
}

func newLetterCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "letter <thoughts>",
		Short: "Turn raw thoughts into a letter to your future self",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.api.GenerateLetter(cmd.Context(), models.LetterRequest{
				UserThoughts:        strings.Join(args, " "),
				DurationDescription: in,
			})
			reportFallback(cmd, err)
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Letter(l))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", `when the letter will be read, e.g. "5 years"`)
	return cmd
}

func newTitleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "title <message>",
		Short: "Suggest a title for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := a.api.SuggestTitle(cmd.Context(), strings.Join(args, " "))
			reportFallback(cmd, err)
			fmt.Fprintln(cmd.OutOrStdout(), title)
			return nil
		},
	}
}

// reportFallback explains why a fallback was used. The fallback itself is
// always printed.
func reportFallback(cmd *cobra.Command, err error) {
	switch {
	case err == nil:
	case errors.Is(err, client.ErrRateLimited):
		fmt.Fprintln(cmd.ErrOrStderr(), formatWarning("Too many requests, try again in a minute. Using a simple version for now."))
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(cmd.ErrOrStderr(), formatInfo("Letter generation is not enabled on the server. Using a simple version."))
	default:
		fmt.Fprintln(cmd.ErrOrStderr(), formatWarning("Generation failed: "+err.Error()))
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard that follows changes and the clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			log, _ := zap.NewDevelopment()
			defer func() { _ = log.Sync() }()

			s := client.NewSession(a.api, func(v client.View) {
				fmt.Fprint(out, "\033[H\033[2J")
				fmt.Fprintln(out, a.render.Dashboard(v.Dashboard))
				fmt.Fprintln(out, a.render.List(v.Capsules, v.At))
				fmt.Fprintln(out, styleMuted.Render("Updated "+v.At.Format("15:04:05")+" · Ctrl+C to quit"))
			},
				client.WithRefresh(time.Duration(a.cfg.RefreshSeconds)*time.Second),
				client.WithLocation(a.render.loc),
				client.WithLogger(log),
			)
			s.Start(cmd.Context())
			<-cmd.Context().Done()
			s.Stop()
			return nil
		},
	}
}

// parseUnlock accepts a date, a date and time, RFC3339, a Go duration or a
// whole number of days (d), weeks (w), months (mo) or years (y).
func parseUnlock(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("unlock date is required")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	for _, u := range []struct {
		suffix string
		apply  func(n int) time.Time
	}{
		{"mo", func(n int) time.Time { return now.AddDate(0, n, 0) }},
		{"d", func(n int) time.Time { return now.AddDate(0, 0, n) }},
		{"w", func(n int) time.Time { return now.AddDate(0, 0, 7*n) }},
		{"y", func(n int) time.Time { return now.AddDate(n, 0, 0) }},
	} {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			if n, err := strconv.Atoi(num); err == nil {
				return u.apply(n), nil
			}
		}
	}

	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse unlock %q", s)
}
