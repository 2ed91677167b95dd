// Package report summarizes a finished run: per-subvolume transfer
// sizes and durations reduced to mean/median/p95 via
// montanaflynn/stats, and an optional dry-run plan diff against a
// previously saved JSON plan via yudai/gojsondiff.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// Entry is one transferred subvolume's contribution to the report.
type Entry struct {
	Path           string
	Strategy       string
	BytesTransferred uint64
	DurationSeconds  float64
}

// Summary is the end-of-run report (spec §8 "concrete scenarios" all
// assert properties this summarizes for a human: counts, sizes,
// timing spread).
type Summary struct {
	Transferred int
	Stranded    int
	TotalBytes  uint64

	MeanSeconds   float64
	MedianSeconds float64
	P95Seconds    float64
}

// Summarize reduces entries to a Summary. An empty entries slice
// yields a Summary that is zero apart from Stranded, without error.
func Summarize(entries []Entry, stranded int) (Summary, error) {
	s := Summary{Transferred: len(entries), Stranded: stranded}
	if len(entries) == 0 {
		return s, nil
	}

	durations := make([]float64, len(entries))
	for i, e := range entries {
		s.TotalBytes += e.BytesTransferred
		durations[i] = e.DurationSeconds
	}

	var err error
	if s.MeanSeconds, err = stats.Mean(durations); err != nil {
		return s, fmt.Errorf("mean duration: %w", err)
	}
	if s.MedianSeconds, err = stats.Median(durations); err != nil {
		return s, fmt.Errorf("median duration: %w", err)
	}
	if s.P95Seconds, err = stats.Percentile(durations, 95); err != nil {
		return s, fmt.Errorf("p95 duration: %w", err)
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"transferred=%d stranded=%d bytes=%d mean=%.2fs median=%.2fs p95=%.2fs",
		s.Transferred, s.Stranded, s.TotalBytes, s.MeanSeconds, s.MedianSeconds, s.P95Seconds)
}

// PlanStep is one dry-run line: the external invocation that would
// have been executed for a subvolume.
type PlanStep struct {
	Path         string   `json:"path"`
	Parent       string   `json:"parent,omitempty"`
	CloneSources []string `json:"clone_sources,omitempty"`
	Reason       string   `json:"reason"`
}

// DiffPlan renders a gojsondiff ASCII JSON diff between a previously saved plan and
// the plan the current run computed, so `--dry-run` can answer "what
// changed" for a resumed or re-strategized run.
func DiffPlan(previous, current []PlanStep) (string, error) {
	prevJSON, err := json.Marshal(map[string]any{"steps": previous})
	if err != nil {
		return "", fmt.Errorf("marshal previous plan: %w", err)
	}
	curJSON, err := json.Marshal(map[string]any{"steps": current})
	if err != nil {
		return "", fmt.Errorf("marshal current plan: %w", err)
	}

	d, err := gojsondiff.New().Compare(prevJSON, curJSON)
	if err != nil {
		return "", fmt.Errorf("compare plans: %w", err)
	}
	if !d.Modified() {
		return "", nil
	}

	var curDoc map[string]any
	if err := json.Unmarshal(curJSON, &curDoc); err != nil {
		return "", fmt.Errorf("unmarshal current plan: %w", err)
	}

	f := formatter.NewAsciiFormatter(curDoc, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	})
	out, err := f.Format(d)
	if err != nil {
		return "", fmt.Errorf("format plan diff: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}
