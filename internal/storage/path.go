package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var formatPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// BuildArtifactKey names an export file under a per-day partition:
//
//	exports/date=2026-08-30/query_results_20260830T142501Z.csv
//
// Timestamps are UTC so one run never shadows another across time zones.
func BuildArtifactKey(format string, now time.Time) (string, error) {
	if !formatPattern.MatchString(format) {
		return "", fmt.Errorf("invalid artifact format: %q", format)
	}
	ts := now.UTC()
	return path.Join(
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("query_results_%s.%s", ts.Format("20060102T150405Z"), format),
	), nil
}
