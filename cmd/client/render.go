package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/atinyakov/chronos/internal/client"
	"github.com/atinyakov/chronos/internal/lifecycle"
	"github.com/atinyakov/chronos/internal/models"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "2", Dark: "2"}
	colorError   = lipgloss.AdaptiveColor{Light: "1", Dark: "1"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "5", Dark: "5"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "6", Dark: "6"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "8", Dark: "8"}
	colorWarning = lipgloss.AdaptiveColor{Light: "3", Dark: "3"}

	styleSuccess lipgloss.Style
	styleError   lipgloss.Style
	styleTitle   lipgloss.Style
	styleHeader  lipgloss.Style
	styleInfo    lipgloss.Style
	styleMuted   lipgloss.Style
	styleWarning lipgloss.Style
	styleBox     lipgloss.Style
)

func init() {
	setTheme("auto")
}

// setTheme applies "auto", "dark" or "light".
func setTheme(theme string) {
	switch theme {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	}

	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleTitle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Underline(true)
	styleHeader = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleInfo = lipgloss.NewStyle().Foreground(colorInfo)
	styleMuted = lipgloss.NewStyle().Foreground(colorMuted)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1)
}

func formatSuccess(msg string) string { return styleSuccess.Render("✔ " + msg) }
func formatError(msg string) string   { return styleError.Render("✘ " + msg) }
func formatWarning(msg string) string { return styleWarning.Render("⚠ " + msg) }
func formatInfo(msg string) string    { return styleInfo.Render("ℹ " + msg) }

// renderer formats views with a fixed date layout.
type renderer struct {
	dateFormat string
	loc        *time.Location
}

func (r renderer) date(ms int64) string {
	return time.UnixMilli(ms).In(r.loc).Format(r.dateFormat)
}

func lockIcon(c models.Capsule, now time.Time) string {
	if lifecycle.IsLocked(c, now) {
		return "🔒"
	}
	return "🔓"
}

// Dashboard renders counters and the next-unlock countdown.
func (r renderer) Dashboard(d lifecycle.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d total · %d locked · %d unlocked\n",
		styleHeader.Render("Chronos"), d.Total, d.Locked, d.Unlocked)

	if d.Next == nil {
		b.WriteString(styleMuted.Render("No capsule is waiting to unlock."))
		return styleBox.Render(b.String())
	}
	fmt.Fprintf(&b, "Next: %s\n", styleInfo.Render(d.Next.Title))
	fmt.Fprintf(&b, "Opens %s, in %s\n", r.date(d.Next.UnlockAt), d.Remaining)
	b.WriteString(progressBar(d.Progress, 30))
	return styleBox.Render(b.String())
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = max(0, min(width, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3.0f%%", styleInfo.Render(bar), pct)
}

// List renders one line per capsule.
func (r renderer) List(capsules []models.Capsule, now time.Time) string {
	if len(capsules) == 0 {
		return styleMuted.Render("No capsules yet. Seal one with `chronos seal`.")
	}
	var b strings.Builder
	for _, c := range capsules {
		line := fmt.Sprintf("%s %-12s %-32s %s", lockIcon(c, now), shortID(c.ID), truncate(c.Title, 32), r.date(c.UnlockAt))
		if lifecycle.IsLocked(c, now) {
			line += "  " + styleMuted.Render(lifecycle.Remaining(c.UnlockAt, now).String())
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Timeline renders capsules by unlock year, alternating sides.
func (r renderer) Timeline(groups []lifecycle.YearGroup, now time.Time) string {
	if len(groups) == 0 {
		return styleMuted.Render("The timeline is empty.")
	}
	var b strings.Builder
	for _, g := range groups {
		b.WriteString(styleHeader.Render(fmt.Sprint(g.Year)) + "\n")
		for i, c := range g.Capsules {
			entry := fmt.Sprintf("%s %s · %s", lockIcon(c, now), truncate(c.Title, 28), r.date(c.UnlockAt))
			if lifecycle.Side(i) == "left" {
				fmt.Fprintf(&b, "%40s ┤\n", entry)
			} else {
				fmt.Fprintf(&b, "%40s ├ %s\n", "", entry)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Gallery renders unlocked attachments, newest year first.
func (r renderer) Gallery(years []lifecycle.GalleryYear) string {
	if len(years) == 0 {
		return styleMuted.Render("Nothing unlocked yet.")
	}
	var b strings.Builder
	for _, y := range years {
		b.WriteString(styleHeader.Render(fmt.Sprint(y.Year)) + "\n")
		for _, a := range y.Artifacts {
			where := a.URL
			if a.IsInline() {
				where = "(inline)"
			}
			fmt.Fprintf(&b, "  %-6s %-24s from %q  %s\n", a.Type, truncate(a.Name, 24), a.Title, styleMuted.Render(where))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Capsule renders an opened capsule.
func (r renderer) Capsule(c models.Capsule) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render(c.Title) + "\n")
	b.WriteString(styleMuted.Render(fmt.Sprintf("Sealed %s · opened for %s", r.date(c.CreatedAt), r.date(c.UnlockAt))) + "\n\n")
	for _, p := range c.MessageParagraphs() {
		b.WriteString(p + "\n")
	}
	if len(c.Attachments) > 0 {
		b.WriteString("\n" + styleHeader.Render("Attachments") + "\n")
		for _, a := range c.Attachments {
			fmt.Fprintf(&b, "  %-6s %s\n", a.Type, a.Name)
		}
	}
	return styleBox.Render(strings.TrimRight(b.String(), "\n"))
}

// Locked renders a rejected open.
func (r renderer) Locked(e *client.LockedError, now time.Time) string {
	return formatWarning(fmt.Sprintf("This capsule is sealed until %s (%s left).",
		e.UnlockAt.In(r.loc).Format(r.dateFormat), lifecycle.Remaining(e.UnlockAt.UnixMilli(), now)))
}

// Letter renders a generated letter.
func (r renderer) Letter(l models.Letter) string {
	return styleBox.Render(styleTitle.Render(l.Subject) + "\n\n" + l.Content)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
