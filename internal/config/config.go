// Package config loads the harness settings and the projects x tools test
// matrix. Settings come from a viper-backed file plus environment overrides;
// the matrix is a typed YAML document validated at load.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings are the harness-level knobs. Every field has a default so the
// harness runs without any settings file at all.
type Settings struct {
	BaselineDir    string `mapstructure:"baseline_dir"`
	ResultsDir     string `mapstructure:"results_dir"`
	RawResultsDir  string `mapstructure:"raw_results_dir"`
	MetricsDir     string `mapstructure:"metrics_dir"`
	ReportsDir     string `mapstructure:"reports_dir"`
	ProjectsFile   string `mapstructure:"projects_file"`
	ToolsFile      string `mapstructure:"tools_file"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	LogLevel       string `mapstructure:"log_level"`
	LogFile        string `mapstructure:"log_file"`
}

// LoadSettings reads harness settings from the given file when it exists,
// applies defaults for everything unset, and honors SAST_REGRESS_* env
// overrides.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetDefault("baseline_dir", "baseline")
	v.SetDefault("results_dir", "results/normalized")
	v.SetDefault("raw_results_dir", "results/raw")
	v.SetDefault("metrics_dir", "results/metrics")
	v.SetDefault("reports_dir", "results/reports")
	v.SetDefault("projects_file", "config/projects.yaml")
	v.SetDefault("tools_file", "config/tools.yaml")
	v.SetDefault("timeout_seconds", 300)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("SAST_REGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if settings.TimeoutSeconds <= 0 {
		return Settings{}, fmt.Errorf("invalid settings: timeout_seconds must be positive, got %d", settings.TimeoutSeconds)
	}
	return settings, nil
}

// ToolConfig describes one runnable scanner in the matrix.
type ToolConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Image      string            `yaml:"image"`
	Version    string            `yaml:"version"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	OutputFile string            `yaml:"output_file"`
	MountPoint string            `yaml:"mount_point"`
	EnvVars    map[string]string `yaml:"env_vars"`
}

// ProjectConfig describes one test project and the analyzers to run on it.
type ProjectConfig struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	Language  string   `yaml:"language"`
	Analyzers []string `yaml:"analyzers"`
}

// Matrix is the projects x tools test plan.
type Matrix struct {
	Projects []ProjectConfig
	Tools    map[string]ToolConfig
}

type projectsDocument struct {
	Projects []ProjectConfig `yaml:"projects"`
}

type toolsDocument struct {
	Tools map[string]ToolConfig `yaml:"tools"`
}

// LoadMatrix reads and validates the projects and tools documents. Every
// analyzer referenced by a project must be defined in the tools document.
func LoadMatrix(projectsPath, toolsPath string) (Matrix, error) {
	var projectsDoc projectsDocument
	if err := readYAML(projectsPath, &projectsDoc); err != nil {
		return Matrix{}, err
	}
	var toolsDoc toolsDocument
	if err := readYAML(toolsPath, &toolsDoc); err != nil {
		return Matrix{}, err
	}

	tools := map[string]ToolConfig{}
	for name, tool := range toolsDoc.Tools {
		tool.Name = name
		if tool.MountPoint == "" {
			tool.MountPoint = "/src"
		}
		tools[name] = tool
	}

	matrix := Matrix{Projects: projectsDoc.Projects, Tools: tools}
	if errs := matrix.validate(); len(errs) > 0 {
		return Matrix{}, fmt.Errorf("matrix validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return matrix, nil
}

func (m Matrix) validate() []string {
	errs := []string{}
	for name, tool := range m.Tools {
		if tool.Type != "docker" && tool.Type != "native" {
			errs = append(errs, fmt.Sprintf("tool %s: type must be docker or native, got %q", name, tool.Type))
		}
		if tool.Command == "" {
			errs = append(errs, fmt.Sprintf("tool %s: command is required", name))
		}
		if tool.Type == "docker" && tool.Image == "" {
			errs = append(errs, fmt.Sprintf("tool %s: docker tools need an image", name))
		}
	}
	seen := map[string]bool{}
	for i, project := range m.Projects {
		if project.Name == "" {
			errs = append(errs, fmt.Sprintf("project[%d]: name is required", i))
			continue
		}
		if seen[project.Name] {
			errs = append(errs, fmt.Sprintf("project %s: duplicate name", project.Name))
		}
		seen[project.Name] = true
		if project.Path == "" {
			errs = append(errs, fmt.Sprintf("project %s: path is required", project.Name))
		}
		if len(project.Analyzers) == 0 {
			errs = append(errs, fmt.Sprintf("project %s: at least one analyzer is required", project.Name))
		}
		for _, analyzer := range project.Analyzers {
			if _, ok := m.Tools[analyzer]; !ok {
				errs = append(errs, fmt.Sprintf("project %s: analyzer %s is not defined in the tools document", project.Name, analyzer))
			}
		}
	}
	sort.Strings(errs)
	return errs
}

// Project returns the named project's configuration.
func (m Matrix) Project(name string) (ProjectConfig, bool) {
	for _, project := range m.Projects {
		if project.Name == name {
			return project, true
		}
	}
	return ProjectConfig{}, false
}

// ToolNames returns the defined tool names in sorted order.
func (m Matrix) ToolNames() []string {
	names := make([]string, 0, len(m.Tools))
	for name := range m.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readYAML(path string, out interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
