package main

import (
	"fmt"
	"io"
	"recast/internal/core/app"
	"recast/internal/data/history"
	"recast/internal/engine/plan"
	"recast/internal/shared/util"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	addStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	delStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	hunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
)

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("error:"), err)
}

func printPlanSummary(w io.Writer, res *app.Result) {
	counts := make(map[string]int)
	for _, issue := range res.Plan.Issues {
		counts[issue.Pattern]++
	}

	fmt.Fprintln(w, titleStyle.Render("recast plan"))
	fmt.Fprintf(w, "  files: %d  issues: %d  duration: %s\n",
		len(res.Files), res.Plan.Len(), res.Duration.Round(time.Millisecond))
	for _, name := range util.SortedStringKeys(counts) {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render(fmt.Sprintf("%4d", counts[name])), name)
	}
	if res.Failures > 0 {
		fmt.Fprintf(w, "  %s\n", errorStyle.Render(fmt.Sprintf("%d pattern failures (see log)", res.Failures)))
	} else if res.Plan.Len() == 0 {
		fmt.Fprintf(w, "  %s\n", okStyle.Render("nothing to change"))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  plan %s fingerprint %016x", res.Plan.ID, res.Plan.Fingerprint())))
}

func printPreviews(w io.Writer, previews []plan.FilePreview) {
	for _, pv := range previews {
		for _, line := range strings.SplitAfter(pv.Diff, "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				fmt.Fprint(w, titleStyle.Render(strings.TrimSuffix(line, "\n"))+"\n")
			case strings.HasPrefix(line, "@@"):
				fmt.Fprint(w, hunkStyle.Render(strings.TrimSuffix(line, "\n"))+"\n")
			case strings.HasPrefix(line, "+"):
				fmt.Fprint(w, addStyle.Render(strings.TrimSuffix(line, "\n"))+"\n")
			case strings.HasPrefix(line, "-"):
				fmt.Fprint(w, delStyle.Render(strings.TrimSuffix(line, "\n"))+"\n")
			default:
				fmt.Fprint(w, line)
			}
		}
		for _, c := range pv.Conflicts {
			fmt.Fprintf(w, "%s issue %d step %s overlaps an earlier edit\n",
				warnStyle.Render("skipped:"), c.IssueID, c.Step.Range)
		}
	}
}

func printTrend(w io.Writer, report history.TrendReport) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("recast history: %s", report.ProjectKey)))
	if report.RunCount == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no runs recorded"))
		return
	}
	for _, p := range report.Points {
		delta := mutedStyle.Render("  =")
		switch {
		case p.DeltaIssues > 0:
			delta = warnStyle.Render(fmt.Sprintf("%+3d", p.DeltaIssues))
		case p.DeltaIssues < 0:
			delta = okStyle.Render(fmt.Sprintf("%+3d", p.DeltaIssues))
		}
		changed := ""
		if !p.Changed {
			changed = mutedStyle.Render(" (unchanged)")
		}
		fmt.Fprintf(w, "  %s  %-6s files=%-5d issues=%-5d %s%s\n",
			p.Run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			p.Run.Command, p.Run.FileCount, p.Run.IssueCount, delta, changed)
	}
}
