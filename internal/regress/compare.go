package regress

import "time"

// detailSampleCap bounds the issue lists embedded in a comparison report.
const detailSampleCap = 10

// CompareIssues partitions current issues into matched/new and baseline
// issues into missing, by fingerprint. Duplicate fingerprints collapse
// last-write-wins, mirroring the map semantics the baselines were captured
// with; matched issues carry the CURRENT run's field values since those
// reflect the present message/location detail. Output order follows input
// order, never map iteration order. Inputs are not mutated.
func CompareIssues(baseline, current []CanonicalIssue) (matched, newIssues, missing []CanonicalIssue) {
	baselineByFP := make(map[string]CanonicalIssue, len(baseline))
	for _, issue := range baseline {
		baselineByFP[Fingerprint(issue)] = issue
	}
	currentByFP := make(map[string]CanonicalIssue, len(current))
	for _, issue := range current {
		currentByFP[Fingerprint(issue)] = issue
	}

	matched = []CanonicalIssue{}
	newIssues = []CanonicalIssue{}
	missing = []CanonicalIssue{}

	seen := make(map[string]bool, len(current))
	for _, issue := range current {
		fp := Fingerprint(issue)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		if _, ok := baselineByFP[fp]; ok {
			matched = append(matched, currentByFP[fp])
		} else {
			newIssues = append(newIssues, currentByFP[fp])
		}
	}

	seen = make(map[string]bool, len(baseline))
	for _, issue := range baseline {
		fp := Fingerprint(issue)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		if _, ok := currentByFP[fp]; !ok {
			missing = append(missing, baselineByFP[fp])
		}
	}
	return matched, newIssues, missing
}

// CalculateMetrics derives the quality ratios from comparison counts. Every
// zero-denominator case yields 0.0 rather than an error or NaN.
func CalculateMetrics(baselineCount, currentCount, matchedCount, newCount, missingCount int) Metrics {
	m := Metrics{FPDelta: newCount - missingCount}

	if baselineCount > 0 {
		m.Recall = float64(matchedCount) / float64(baselineCount)
		m.RecallPercentage = m.Recall * 100
		m.MissingIssuesPercentage = float64(missingCount) / float64(baselineCount) * 100
	}
	if currentCount > 0 {
		m.NewIssuesPercentage = float64(newCount) / float64(currentCount) * 100
	}

	precision := 0.0
	if currentCount > 0 {
		precision = float64(matchedCount) / float64(currentCount)
	}
	if precision+m.Recall > 0 {
		m.F1Score = 2 * precision * m.Recall / (precision + m.Recall)
	}
	return m
}

// Compare builds a full ComparisonResult for one (project, tool) pair.
func Compare(project, tool string, baseline, current []CanonicalIssue) ComparisonResult {
	matched, newIssues, missing := CompareIssues(baseline, current)
	return ComparisonResult{
		Project:   project,
		Tool:      tool,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Statistics: Statistics{
			BaselineIssues: len(baseline),
			CurrentIssues:  len(current),
			MatchedIssues:  len(matched),
			NewIssues:      len(newIssues),
			MissingIssues:  len(missing),
		},
		Metrics: CalculateMetrics(len(baseline), len(current), len(matched), len(newIssues), len(missing)),
		Details: Details{
			MatchedIssues: sampleIssues(matched),
			NewIssues:     sampleIssues(newIssues),
			MissingIssues: sampleIssues(missing),
			TotalMatched:  len(matched),
			TotalNew:      len(newIssues),
			TotalMissing:  len(missing),
		},
	}
}

func sampleIssues(issues []CanonicalIssue) []CanonicalIssue {
	if len(issues) <= detailSampleCap {
		return append([]CanonicalIssue{}, issues...)
	}
	return append([]CanonicalIssue{}, issues[:detailSampleCap]...)
}
