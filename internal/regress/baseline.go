package regress

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/solardome/sast-regress/internal/report"
	"go.uber.org/zap"
)

// Store owns the on-disk layout of baselines and normalized results:
//
//	<baselineDir>/<project>/<tool>_baseline.json
//	<resultsDir>/<project>/<tool>_normalized.json
//
// A missing baseline is a named state, not an error; an unreadable baseline
// is surfaced as a persistence error but treated by callers exactly like a
// missing one.
type Store struct {
	baselineDir string
	resultsDir  string
	log         *zap.Logger
}

func NewStore(baselineDir, resultsDir string, log *zap.Logger) *Store {
	return &Store{baselineDir: baselineDir, resultsDir: resultsDir, log: log}
}

func (s *Store) baselinePath(project, tool string) string {
	return filepath.Join(s.baselineDir, project, tool+"_baseline.json")
}

func (s *Store) resultPath(project, tool string) string {
	return filepath.Join(s.resultsDir, project, tool+"_normalized.json")
}

// LoadBaseline returns the baseline snapshot for a (project, tool) pair.
// found is false when no baseline exists; err is non-nil only for
// unreadable or corrupt files.
func (s *Store) LoadBaseline(project, tool string) (CanonicalResult, bool, error) {
	return s.load(s.baselinePath(project, tool))
}

// LoadCurrent returns the last normalized result for a (project, tool) pair.
func (s *Store) LoadCurrent(project, tool string) (CanonicalResult, bool, error) {
	return s.load(s.resultPath(project, tool))
}

func (s *Store) load(path string) (CanonicalResult, bool, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CanonicalResult{}, false, nil
	}
	if err != nil {
		return CanonicalResult{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	var result CanonicalResult
	if err := json.Unmarshal(b, &result); err != nil {
		return CanonicalResult{}, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return result, true, nil
}

// SaveBaseline persists a result as the new baseline snapshot. Last writer
// wins; serializing concurrent writers is the orchestrator's job.
func (s *Store) SaveBaseline(result CanonicalResult) error {
	path := s.baselinePath(result.Project, result.Tool)
	if err := report.WriteJSON(path, result); err != nil {
		return fmt.Errorf("save baseline %s/%s: %w", result.Project, result.Tool, err)
	}
	s.log.Info("baseline saved",
		zap.String("project", result.Project), zap.String("tool", result.Tool),
		zap.Int("issues", result.IssueCount()), zap.String("path", path))
	return nil
}

// SaveCurrent persists the normalized result of the present run, always
// overwriting the previous one.
func (s *Store) SaveCurrent(result CanonicalResult) error {
	path := s.resultPath(result.Project, result.Tool)
	if err := report.WriteJSON(path, result); err != nil {
		return fmt.Errorf("save result %s/%s: %w", result.Project, result.Tool, err)
	}
	return nil
}

func (s *Store) HasBaseline(project, tool string) bool {
	_, err := os.Stat(s.baselinePath(project, tool))
	return err == nil
}

// BaselineInfo summarizes one stored baseline for inventory listings.
type BaselineInfo struct {
	Tool       string         `json:"tool"`
	File       string         `json:"file"`
	Timestamp  string         `json:"timestamp"`
	Issues     int            `json:"issues"`
	Severities map[string]int `json:"severities"`
}

// ListBaselines walks the baseline directory and summarizes every stored
// snapshot, keyed by project. Unreadable entries are logged and skipped.
func (s *Store) ListBaselines() (map[string][]BaselineInfo, error) {
	entries, err := os.ReadDir(s.baselineDir)
	if os.IsNotExist(err) {
		return map[string][]BaselineInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read baseline dir: %w", err)
	}

	out := map[string][]BaselineInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		project := entry.Name()
		files, err := filepath.Glob(filepath.Join(s.baselineDir, project, "*_baseline.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		infos := []BaselineInfo{}
		for _, file := range files {
			result, found, err := s.load(file)
			if err != nil || !found {
				s.log.Warn("skipping unreadable baseline", zap.String("path", file), zap.Error(err))
				continue
			}
			infos = append(infos, BaselineInfo{
				Tool:       result.Tool,
				File:       filepath.Base(file),
				Timestamp:  result.Timestamp,
				Issues:     result.IssueCount(),
				Severities: result.IssuesBySeverity(),
			})
		}
		out[project] = infos
	}
	return out, nil
}

// SeverityChange records a per-severity count delta between two snapshots.
type SeverityChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"delta"`
}

// BaselineDelta is a shallow comparison of two stored baseline revisions for
// the same (project, tool) pair: issue-count drift plus per-severity deltas.
type BaselineDelta struct {
	Project         string                    `json:"project"`
	Tool            string                    `json:"tool"`
	Revision1       string                    `json:"revision1"`
	Revision2       string                    `json:"revision2"`
	Issues1         int                       `json:"issues1"`
	Issues2         int                       `json:"issues2"`
	Delta           int                       `json:"delta"`
	SeverityChanges map[string]SeverityChange `json:"severity_changes"`
}

// DiffBaselines compares two baseline revisions stored as
// <tool>_<revision>.json under the project's baseline directory.
func (s *Store) DiffBaselines(project, tool, rev1, rev2 string) (BaselineDelta, error) {
	load := func(rev string) (CanonicalResult, error) {
		path := filepath.Join(s.baselineDir, project, tool+"_"+rev+".json")
		result, found, err := s.load(path)
		if err != nil {
			return CanonicalResult{}, err
		}
		if !found {
			return CanonicalResult{}, fmt.Errorf("baseline revision not found: %s", path)
		}
		return result, nil
	}
	first, err := load(rev1)
	if err != nil {
		return BaselineDelta{}, err
	}
	second, err := load(rev2)
	if err != nil {
		return BaselineDelta{}, err
	}

	sev1 := first.IssuesBySeverity()
	sev2 := second.IssuesBySeverity()
	changes := map[string]SeverityChange{}
	for severity := range sev1 {
		changes[severity] = SeverityChange{Before: sev1[severity], After: sev2[severity], Delta: sev2[severity] - sev1[severity]}
	}
	for severity := range sev2 {
		if _, ok := changes[severity]; !ok {
			changes[severity] = SeverityChange{After: sev2[severity], Delta: sev2[severity]}
		}
	}

	return BaselineDelta{
		Project:         project,
		Tool:            tool,
		Revision1:       rev1,
		Revision2:       rev2,
		Issues1:         first.IssueCount(),
		Issues2:         second.IssueCount(),
		Delta:           second.IssueCount() - first.IssueCount(),
		SeverityChanges: changes,
	}, nil
}

// ExportCSV writes the baseline inventory as a CSV report.
func (s *Store) ExportCSV(path string) error {
	baselines, err := s.ListBaselines()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil && dir != "." {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Project", "Tool", "Issues", "Errors", "Warnings", "Info", "Timestamp"}); err != nil {
		return err
	}
	projects := make([]string, 0, len(baselines))
	for project := range baselines {
		projects = append(projects, project)
	}
	sort.Strings(projects)
	for _, project := range projects {
		for _, info := range baselines[project] {
			record := []string{
				project,
				info.Tool,
				strconv.Itoa(info.Issues),
				strconv.Itoa(info.Severities["error"]),
				strconv.Itoa(info.Severities["warning"]),
				strconv.Itoa(info.Severities["info"] + info.Severities["note"]),
				info.Timestamp,
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return nil
}
