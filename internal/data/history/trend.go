package history

import (
	"fmt"
	"sort"
	"time"
)

// BuildTrendReport orders runs by time and compares each with its
// predecessor. Runs older than window before the newest run are dropped; a
// zero window keeps everything.
func BuildTrendReport(projectKey string, runs []Run, window time.Duration) (TrendReport, error) {
	if window < 0 {
		return TrendReport{}, fmt.Errorf("window must not be negative")
	}
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	report := TrendReport{ProjectKey: normalizeProjectKey(projectKey)}
	if len(sorted) == 0 {
		return report, nil
	}
	if window > 0 {
		report.Since = sorted[len(sorted)-1].Timestamp.Add(-window)
		first := sort.Search(len(sorted), func(i int) bool { return !sorted[i].Timestamp.Before(report.Since) })
		sorted = sorted[first:]
	} else {
		report.Since = sorted[0].Timestamp
	}

	report.RunCount = len(sorted)
	report.Points = make([]TrendPoint, 0, len(sorted))
	for i, run := range sorted {
		point := TrendPoint{Run: run, Changed: true}
		if i > 0 {
			prev := sorted[i-1]
			point.DeltaIssues = run.IssueCount - prev.IssueCount
			point.Changed = run.Fingerprint != prev.Fingerprint
		}
		report.Points = append(report.Points, point)
	}
	return report, nil
}
