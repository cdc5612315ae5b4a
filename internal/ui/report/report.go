// Package report renders a learner profile as a terminal summary.
package report

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/abhisek/tutord/internal/assessment"
	"github.com/abhisek/tutord/internal/learner"
	"github.com/abhisek/tutord/internal/ui/components"
	"github.com/abhisek/tutord/internal/ui/theme"
)

// Options controls rendering.
type Options struct {
	Width int
	// Color keeps ANSI styling. Without it the output is plain text.
	Color bool
	// RecentSessions caps the session history section. Zero means 5.
	RecentSessions int
}

const (
	defaultWidth    = 60
	defaultSessions = 5
)

// Render draws the profile: one mastery bar per topic with its level,
// trajectory and open misconceptions, followed by recent sessions.
func Render(p *learner.Profile, pol assessment.Policy, opts Options) string {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.RecentSessions <= 0 {
		opts.RecentSessions = defaultSessions
	}

	names := p.TopicNames()
	labelWidth := 0
	for _, n := range names {
		labelWidth = max(labelWidth, lipgloss.Width(n))
	}

	var b strings.Builder
	b.WriteString(theme.Title.Render("Learner " + p.LearnerID))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("%d topics · %d sessions · updated %s",
		len(names), len(p.Sessions), p.UpdatedAt.UTC().Format(time.DateTime))))
	b.WriteString("\n")

	if len(names) == 0 {
		b.WriteString("\n")
		b.WriteString(theme.Hint.Render("No topics yet."))
	}
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(topicBlock(p, name, pol, labelWidth, opts.Width))
	}

	if sessions := recentSessions(p.Sessions, opts.RecentSessions); len(sessions) > 0 {
		b.WriteString("\n\n")
		b.WriteString(theme.Title.Render("Recent sessions"))
		for _, s := range sessions {
			b.WriteString("\n")
			b.WriteString(sessionLine(s))
		}
	}

	out := theme.Card.Render(b.String())
	if !opts.Color {
		out = ansi.Strip(out)
	}
	return out
}

func topicBlock(p *learner.Profile, name string, pol assessment.Policy, labelWidth, width int) string {
	ts := p.Topics[name]

	bar := components.NewProgressBar(name, ts.Mastery, true, width)
	bar.LabelWidth = labelWidth
	bar.Fill = theme.MasteryColor(ts.Mastery, pol)

	detail := fmt.Sprintf("  %s · %s · %d attempts",
		ts.Level,
		theme.TrajectoryStyle(ts.Trajectory).Render(string(ts.Trajectory)),
		len(ts.Attempts),
	)
	if ts.WarmupPending {
		detail += " · " + theme.Warn.Render("warmup pending")
	}
	if p.NeedsGraph(name) {
		detail += " · " + theme.Hint.Render("no topic graph")
	}

	lines := []string{bar.View(), theme.Subtitle.Render(detail)}
	for _, m := range ts.Misconceptions {
		if m.Resolved {
			continue
		}
		lines = append(lines, theme.Bad.Render("  ! ")+theme.Body.Render(fmt.Sprintf("%s (seen %d×)", m.Description, m.TimesObserved)))
	}
	return strings.Join(lines, "\n")
}

// recentSessions returns up to n sessions, newest first.
func recentSessions(all []learner.SessionRecord, n int) []learner.SessionRecord {
	out := make([]learner.SessionRecord, 0, min(n, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out
}

func sessionLine(s learner.SessionRecord) string {
	accuracy := "  -"
	if s.Attempts > 0 {
		accuracy = fmt.Sprintf("%3d%%", s.Correct*100/s.Attempts)
	}
	status := "open"
	if !s.Open() {
		status = s.EndedAt.Sub(s.StartedAt).Round(time.Minute).String()
	}

	change := s.MasteryEnd - s.MasteryStart
	changeStyle := theme.Subtitle
	switch {
	case change > 0.005:
		changeStyle = theme.Good
	case change < -0.005:
		changeStyle = theme.Bad
	}

	return fmt.Sprintf("%s  %s  %2d attempts  %s  %s  %s",
		s.StartedAt.UTC().Format("2006-01-02 15:04"),
		s.Topic,
		s.Attempts,
		accuracy,
		changeStyle.Render(fmt.Sprintf("%+.2f", change)),
		theme.Hint.Render(status),
	)
}
