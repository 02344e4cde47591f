// Package config reads the optional .asura.yaml configuration file of a
// scanned project. All settings have defaults, so a missing file is fine.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/asura-sec/asura/pkg/finding"
)

type Config struct {
	// MaxFiles caps the total number of files selected for analysis.
	MaxFiles int `yaml:"max_files"`
	// MaxFilesPerCategory caps each language bucket independently.
	MaxFilesPerCategory int `yaml:"max_files_per_category"`
	// PoolWidth bounds how many tools run concurrently.
	PoolWidth int `yaml:"pool_width"`
	// TimeoutSeconds overrides the per-tool wall clock budget.
	TimeoutSeconds map[string]int `yaml:"timeout_seconds"`
	// LogsDir is where per-run tool logs are written.
	LogsDir string `yaml:"logs_dir"`
}

func Default() *Config {
	return &Config{
		MaxFiles:            1000,
		MaxFilesPerCategory: 500,
		PoolWidth:           3,
		TimeoutSeconds: map[string]int{
			string(finding.ToolBandit):     120,
			string(finding.ToolSafety):     120,
			string(finding.ToolNpmAudit):   120,
			string(finding.ToolSemgrep):    180,
			string(finding.ToolTrufflehog): 120,
		},
		LogsDir: filepath.Join("logs", "scans"),
	}
}

// Timeout returns the wall clock budget for a tool.
func (c *Config) Timeout(tool finding.Tool) time.Duration {
	if sec, ok := c.TimeoutSeconds[string(tool)]; ok && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return 2 * time.Minute
}

func (c *Config) validate() error {
	if c.MaxFiles <= 0 {
		return errors.New("max_files must be positive")
	}
	if c.MaxFilesPerCategory <= 0 {
		return errors.New("max_files_per_category must be positive")
	}
	if c.PoolWidth <= 0 {
		return errors.New("pool_width must be positive")
	}
	for tool, sec := range c.TimeoutSeconds {
		if sec <= 0 {
			return fmt.Errorf("timeout_seconds[%s] must be positive", tool)
		}
	}
	return nil
}

const configFileName = ".asura.yaml"

type Finder struct {
	fs afero.Fs
}

func NewFinder(fs afero.Fs) *Finder {
	return &Finder{fs: fs}
}

// Find returns the configuration file path to read. An explicit path wins;
// otherwise the project root is searched. An empty return means no file.
func (f *Finder) Find(configFilePath, root string) (string, error) {
	if configFilePath != "" {
		return configFilePath, nil
	}
	p := filepath.Join(root, configFileName)
	ok, err := afero.Exists(f.fs, p)
	if err != nil {
		return "", fmt.Errorf("check if a configuration file exists: %w", err)
	}
	if ok {
		return p, nil
	}
	return "", nil
}

type Reader struct {
	fs afero.Fs
}

func NewReader(fs afero.Fs) *Reader {
	return &Reader{fs: fs}
}

// Read decodes a configuration file over the defaults already set on cfg.
func (r *Reader) Read(cfg *Config, configFilePath string) error {
	if configFilePath == "" {
		return nil
	}
	f, err := r.fs.Open(configFilePath)
	if err != nil {
		return fmt.Errorf("open a configuration file: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode a configuration file as YAML: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("validate the configuration: %w", err)
	}
	return nil
}
