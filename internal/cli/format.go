package cli

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/service"
	"alcyxob/workout-planner/internal/timer"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("#fe8019")).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("#928374"))
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8ec07c"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#fabd2f"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fb4934"))
	styleBold   = lipgloss.NewStyle().Bold(true)
)

// renderTable aligns columns by visible width, so styled cells line up.
func renderTable(headers []string, rows [][]string) string {
	const colGap = 2
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := widths[i] - lipgloss.Width(cell)
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < len(headers)-1 {
				b.WriteString(strings.Repeat(" ", pad+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, &styleHeader)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	writeRow(sep, &styleDim)
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}

// renderBar renders a bar like [████░░░░] 45%, pct in [0, 100].
func renderBar(pct float64, width int) string {
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := styleGreen
	if pct < 33 {
		style = styleRed
	} else if pct < 66 {
		style = styleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar), pct)
}

func formatSchedule(days []domain.ScheduleDay) string {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		session := styleDim.Render("rest")
		exercises := ""
		if !d.IsRest {
			session = fmt.Sprintf("#%d %s", d.SessionOrder, d.SessionTitle)
			exercises = strconv.Itoa(d.PlannedExerciseCount)
		}
		rows = append(rows, []string{
			strconv.Itoa(d.DayIndex),
			strconv.Itoa(d.WeekNumber),
			d.CalendarDate,
			d.DayAbbrev.String(),
			session,
			exercises,
		})
	}
	return renderTable([]string{"DAY", "WEEK", "DATE", "", "SESSION", "EXERCISES"}, rows)
}

func formatWarnings(warnings []service.LedgerWarning) string {
	var b strings.Builder
	for _, w := range warnings {
		fmt.Fprintf(&b, "%s week %d session %q: day %q not recognized, scheduled as rest\n",
			styleYellow.Render("warning:"), w.WeekNumber, w.Title, w.Tag)
	}
	return b.String()
}

func formatProgress(p *service.PlanProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s as of %s\n\n", styleBold.Render("Progress"), p.AsOf)
	fmt.Fprintf(&b, "  consistency  %s  (%d training days)\n", renderBar(p.ConsistencyPercent, 20), p.TrainingDays)
	fmt.Fprintf(&b, "  sessions     %d completed\n", p.SessionsCompleted)
	fmt.Fprintf(&b, "  exercises    %d completed, %d series\n", p.ExercisesCompleted, p.TotalSeries)
	fmt.Fprintf(&b, "  time         %s training, %s in sessions\n", formatSeconds(p.TotalTimeSeconds), formatSeconds(p.SessionTimeSeconds))
	fmt.Fprintf(&b, "  streak       %d day(s)\n\n", p.CurrentStreak)

	if len(p.Sessions) == 0 {
		return b.String()
	}
	rows := make([][]string, len(p.Sessions))
	for i, s := range p.Sessions {
		rows[i] = []string{
			strconv.Itoa(s.WeekNumber),
			s.Day.String(),
			s.Title,
			string(s.Status),
			fmt.Sprintf("%d/%d", s.ExercisesCompleted, s.ExercisesTotal),
			renderBar(s.CompletionPercent, 10),
		}
	}
	b.WriteString(renderTable([]string{"WEEK", "DAY", "SESSION", "STATUS", "DONE", ""}, rows))
	return b.String()
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

func formatSnapshot(name string, s timer.Snapshot) string {
	state := s.Phase.String()
	if s.Paused {
		state += " (paused)"
	}
	clock := "press enter when done"
	if !s.Manual {
		clock = fmt.Sprintf("%ds left", s.Remaining)
	}
	return fmt.Sprintf("%s  series %d/%d  %s  %s", styleBold.Render(name), s.SeriesCompleted, s.SeriesTotal, state, styleDim.Render(clock))
}
