package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/koltyakov/siren/internal/appstore"
	"github.com/koltyakov/siren/internal/domain"
	"github.com/koltyakov/siren/internal/updatecheck"
	"github.com/koltyakov/siren/internal/versionutil"
)

const (
	alertMinWidth = 40
	alertMaxWidth = 64
)

var (
	colorForce       = lipgloss.Color("#ef4444")
	colorSoft        = lipgloss.Color("#06b6d4")
	colorMaintenance = lipgloss.Color("#eab308")
	colorMuted       = lipgloss.Color("#6b7280")

	alertTitleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	mutedStyle      = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

func init() {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func alertColor(a domain.AlertType) lipgloss.Color {
	switch a {
	case domain.AlertForce:
		return colorForce
	case domain.AlertMaintenance:
		return colorMaintenance
	default:
		return colorSoft
	}
}

func alertTitle(a domain.AlertType) string {
	switch a {
	case domain.AlertForce:
		return "Update Required"
	case domain.AlertMaintenance:
		return "Update Coming Soon"
	default:
		return "Update Available"
	}
}

func alertMessage(v domain.Verdict, installed string) string {
	published := v.PublishedVersion()
	switch v.Alert {
	case domain.AlertForce:
		if published == "" {
			return fmt.Sprintf("Version %s is no longer supported. Please update from the App Store.", installed)
		}
		return fmt.Sprintf("Version %s is no longer supported. Please update to version %s now.", installed, published)
	case domain.AlertMaintenance:
		return fmt.Sprintf("Version %s is no longer supported and a fixed release is on its way. Please check back soon.", installed)
	default:
		return fmt.Sprintf("Version %s is available in the App Store. Would you like to update now?", published)
	}
}

// renderAlert draws the alert box of an actionable verdict.
func renderAlert(v domain.Verdict, installed string, width int) string {
	boxWidth := alertMaxWidth
	if width > 0 && width-2 < boxWidth {
		boxWidth = max(width-2, alertMinWidth)
	}
	color := alertColor(v.Alert)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(boxWidth)

	lines := []string{
		alertTitleStyle.Foreground(color).Render(alertTitle(v.Alert)),
		"",
		alertMessage(v, installed),
		"",
		renderDetail("Installed", versionutil.EnsureVPrefix(installed)),
	}
	if md := v.Metadata; md != nil {
		lines = append(lines, renderDetail("Published", versionutil.EnsureVPrefix(md.Version)))
		if !md.ReleaseDate.IsZero() {
			lines = append(lines, renderDetail("Released", md.ReleaseDate.Format(time.DateOnly)))
		}
		if notes := firstLine(md.ReleaseNotes); notes != "" {
			lines = append(lines, "", mutedStyle.Render(notes))
		}
	}
	return box.Render(strings.Join(lines, "\n"))
}

// renderNegative describes a check that produced no alert.
func renderNegative(v domain.Verdict, installed string, nextPrompt time.Time) string {
	switch v.Reason {
	case domain.ReasonRecentlyPrompted:
		msg := fmt.Sprintf("An update to %s is available, but the user was prompted recently.", versionutil.EnsureVPrefix(v.PublishedVersion()))
		if !nextPrompt.IsZero() {
			msg += "\n" + renderDetail("Next prompt", nextPrompt.Local().Format(time.DateTime))
		}
		return msg
	default:
		return fmt.Sprintf("%s is up to date.", versionutil.EnsureVPrefix(installed))
	}
}

func renderDetail(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

type checkOutput struct {
	Alert            domain.AlertType `json:"alert"`
	Reason           domain.Reason    `json:"reason,omitempty"`
	InstalledVersion string           `json:"installed_version"`
	PublishedVersion string           `json:"published_version,omitempty"`
	StoreID          int64            `json:"store_id,omitempty"`
	StoreURL         string           `json:"store_url,omitempty"`
	ReleaseDate      *time.Time       `json:"release_date,omitempty"`
	CheckedAt        time.Time        `json:"checked_at"`
	NextPromptAt     *time.Time       `json:"next_prompt_at,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorCode        string           `json:"error_code,omitempty"`
}

func newCheckOutput(installed string, res updatecheck.Result, nextPrompt time.Time, err error) checkOutput {
	out := checkOutput{
		Alert:            res.Verdict.Alert,
		Reason:           res.Verdict.Reason,
		InstalledVersion: installed,
		PublishedVersion: res.Verdict.PublishedVersion(),
		CheckedAt:        res.CheckedAt.UTC(),
	}
	if md := res.Verdict.Metadata; md != nil {
		out.StoreID = md.StoreID
		if u, urlErr := appstore.StoreURL(md.StoreID); urlErr == nil {
			out.StoreURL = u
		}
		if !md.ReleaseDate.IsZero() {
			released := md.ReleaseDate.UTC()
			out.ReleaseDate = &released
		}
	}
	if !nextPrompt.IsZero() {
		next := nextPrompt.UTC()
		out.NextPromptAt = &next
	}
	if err != nil && !domain.IsNegativeVerdict(err) {
		out.Error = err.Error()
		out.ErrorCode = domain.ErrorCode(err)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
