package regress

import (
	"math"
	"testing"
)

func issueAt(rule, file string, line int, severity, message string) CanonicalIssue {
	return CanonicalIssue{
		Tool:       "semgrep",
		RuleID:     rule,
		FilePath:   file,
		LineNumber: line,
		Severity:   severity,
		Message:    message,
	}
}

func TestCompareIssuesPartition(t *testing.T) {
	shared := issueAt("rule-a", "a.py", 1, "error", "msg a")
	onlyBaseline := issueAt("rule-b", "b.py", 2, "warning", "msg b")
	onlyCurrent := issueAt("rule-c", "c.py", 3, "error", "msg c")

	matched, newIssues, missing := CompareIssues(
		[]CanonicalIssue{shared, onlyBaseline},
		[]CanonicalIssue{shared, onlyCurrent},
	)
	if len(matched) != 1 || len(newIssues) != 1 || len(missing) != 1 {
		t.Fatalf("unexpected partition: matched=%d new=%d missing=%d", len(matched), len(newIssues), len(missing))
	}
	if matched[0].RuleID != "rule-a" {
		t.Fatalf("unexpected matched issue: %+v", matched[0])
	}
	if newIssues[0].RuleID != "rule-c" {
		t.Fatalf("unexpected new issue: %+v", newIssues[0])
	}
	if missing[0].RuleID != "rule-b" {
		t.Fatalf("unexpected missing issue: %+v", missing[0])
	}
}

func TestCompareIssuesMatchedTakesCurrentValues(t *testing.T) {
	baseline := issueAt("rule-a", "a.py", 1, "error", "msg a")
	baseline.RuleName = "old name"
	current := issueAt("rule-a", "a.py", 1, "error", "msg a")
	current.RuleName = "new name"

	matched, _, _ := CompareIssues([]CanonicalIssue{baseline}, []CanonicalIssue{current})
	if len(matched) != 1 {
		t.Fatalf("expected a match, got %d", len(matched))
	}
	if matched[0].RuleName != "new name" {
		t.Fatalf("matched issue should carry current values, got %q", matched[0].RuleName)
	}
}

func TestCompareIssuesCollapsesDuplicates(t *testing.T) {
	dup := issueAt("rule-a", "a.py", 1, "error", "msg a")
	matched, newIssues, missing := CompareIssues(
		[]CanonicalIssue{dup, dup, dup},
		[]CanonicalIssue{dup, dup},
	)
	if len(matched) != 1 || len(newIssues) != 0 || len(missing) != 0 {
		t.Fatalf("duplicates should collapse: matched=%d new=%d missing=%d", len(matched), len(newIssues), len(missing))
	}
}

func TestCompareIssuesEmptyInputs(t *testing.T) {
	matched, newIssues, missing := CompareIssues(nil, nil)
	if matched == nil || newIssues == nil || missing == nil {
		t.Fatal("expected empty slices, not nil")
	}
	if len(matched)+len(newIssues)+len(missing) != 0 {
		t.Fatal("expected empty partition")
	}
}

func TestCalculateMetricsHalfRecall(t *testing.T) {
	// 2 baseline, 2 current, 1 matched on each side.
	m := CalculateMetrics(2, 2, 1, 1, 1)
	if m.Recall != 0.5 || m.RecallPercentage != 50.0 {
		t.Fatalf("unexpected recall: %+v", m)
	}
	if m.FPDelta != 0 {
		t.Fatalf("expected fp_delta 0, got %d", m.FPDelta)
	}
	if m.NewIssuesPercentage != 50.0 || m.MissingIssuesPercentage != 50.0 {
		t.Fatalf("unexpected percentages: %+v", m)
	}
	// precision = recall = 0.5, so f1 = 0.5.
	if math.Abs(m.F1Score-0.5) > 1e-9 {
		t.Fatalf("unexpected f1: %f", m.F1Score)
	}
	if m.Status() != StatusBad {
		t.Fatalf("expected bad status at 50%%, got %s", m.Status())
	}
}

func TestCalculateMetricsZeroDenominators(t *testing.T) {
	m := CalculateMetrics(0, 0, 0, 0, 0)
	if m.Recall != 0 || m.RecallPercentage != 0 || m.F1Score != 0 ||
		m.NewIssuesPercentage != 0 || m.MissingIssuesPercentage != 0 || m.FPDelta != 0 {
		t.Fatalf("zero comparison must yield all zeros: %+v", m)
	}
	for _, v := range []float64{m.Recall, m.RecallPercentage, m.F1Score, m.NewIssuesPercentage, m.MissingIssuesPercentage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("metric is not finite: %+v", m)
		}
	}
}

func TestCalculateMetricsBounds(t *testing.T) {
	cases := []struct{ baseline, current, matched, newCount, missing int }{
		{10, 10, 10, 0, 0},
		{10, 5, 5, 0, 5},
		{5, 10, 5, 5, 0},
		{3, 0, 0, 0, 3},
		{0, 3, 0, 3, 0},
	}
	for _, c := range cases {
		m := CalculateMetrics(c.baseline, c.current, c.matched, c.newCount, c.missing)
		if m.Recall < 0 || m.Recall > 1 {
			t.Fatalf("recall out of range for %+v: %f", c, m.Recall)
		}
		if m.F1Score < 0 || m.F1Score > 1 {
			t.Fatalf("f1 out of range for %+v: %f", c, m.F1Score)
		}
		if m.RecallPercentage < 0 || m.RecallPercentage > 100 {
			t.Fatalf("recall percentage out of range for %+v: %f", c, m.RecallPercentage)
		}
	}
}

func TestMetricsStatusThresholds(t *testing.T) {
	cases := []struct {
		recallPct float64
		want      string
	}{
		{100, StatusGood},
		{90, StatusGood},
		{89.9, StatusWarning},
		{70, StatusWarning},
		{69.9, StatusBad},
		{0, StatusBad},
	}
	for _, c := range cases {
		m := Metrics{RecallPercentage: c.recallPct}
		if got := m.Status(); got != c.want {
			t.Fatalf("recall %.1f: expected %s, got %s", c.recallPct, c.want, got)
		}
	}
}

func TestCompareAgainstEmptyBaseline(t *testing.T) {
	current := []CanonicalIssue{
		issueAt("rule-a", "a.py", 1, "error", "m"),
		issueAt("rule-b", "b.py", 2, "warning", "m"),
	}
	result := Compare("proj", "semgrep", nil, current)
	s := result.Statistics
	if s.BaselineIssues != 0 || s.CurrentIssues != 2 || s.MatchedIssues != 0 || s.NewIssues != 2 || s.MissingIssues != 0 {
		t.Fatalf("unexpected statistics: %+v", s)
	}
	if result.Metrics.Recall != 0 || result.Metrics.FPDelta != 2 {
		t.Fatalf("unexpected metrics: %+v", result.Metrics)
	}
	if result.Metrics.Status() != StatusBad {
		t.Fatalf("expected bad status, got %s", result.Metrics.Status())
	}
}

func TestCompareDetailsAreCapped(t *testing.T) {
	var current []CanonicalIssue
	for i := 0; i < 25; i++ {
		current = append(current, issueAt("rule-a", "a.py", i+1, "error", "m"))
	}
	result := Compare("proj", "semgrep", nil, current)
	if len(result.Details.NewIssues) != detailSampleCap {
		t.Fatalf("expected sample capped at %d, got %d", detailSampleCap, len(result.Details.NewIssues))
	}
	if result.Details.TotalNew != 25 {
		t.Fatalf("expected uncapped total 25, got %d", result.Details.TotalNew)
	}
	if result.Statistics.NewIssues != 25 {
		t.Fatalf("statistics must use uncapped counts, got %d", result.Statistics.NewIssues)
	}
}

func TestCompareDeterministicOrder(t *testing.T) {
	baseline := []CanonicalIssue{
		issueAt("rule-1", "a.py", 1, "error", "m"),
		issueAt("rule-2", "b.py", 2, "error", "m"),
		issueAt("rule-3", "c.py", 3, "error", "m"),
	}
	var current []CanonicalIssue
	for i := 10; i < 40; i++ {
		current = append(current, issueAt("rule-n", "n.py", i, "error", "m"))
	}
	_, firstNew, firstMissing := CompareIssues(baseline, current)
	for i := 0; i < 20; i++ {
		_, newIssues, missing := CompareIssues(baseline, current)
		for j := range newIssues {
			if newIssues[j].LineNumber != firstNew[j].LineNumber {
				t.Fatal("new issue order is not deterministic")
			}
		}
		for j := range missing {
			if missing[j].RuleID != firstMissing[j].RuleID {
				t.Fatal("missing issue order is not deterministic")
			}
		}
	}
}
