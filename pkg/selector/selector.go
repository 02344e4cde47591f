// Package selector picks the files of a project worth handing to analysis
// tools. It walks the project tree, prunes dependency caches and build
// artifacts, skips generated and binary files, and returns bounded file
// lists categorized by language.
package selector

import (
	"bufio"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Bucket names of the returned selection.
const (
	CategoryPython     = "python"
	CategoryJavaScript = "javascript"
	CategoryOther      = "other"
)

// maxFileSize excludes files over 1 MB; they are almost always generated.
const maxFileSize = 1_000_000

// ignoreFileName is a project-local file of extra skip globs, one per line.
const ignoreFileName = ".asuraignore"

// errLimitReached stops the walk early once the global file cap is hit.
var errLimitReached = errors.New("file limit reached")

var skipDirs = map[string]struct{}{
	"node_modules": {}, "venv": {}, ".venv": {}, "env": {}, "ENV": {},
	"build": {}, "dist": {}, ".git": {}, "__pycache__": {}, ".pytest_cache": {},
	"site-packages": {}, ".tox": {}, ".eggs": {}, "vendor": {}, "packages": {},
	"bower_components": {}, ".next": {}, ".nuxt": {}, "coverage": {},
	"tmp": {}, "temp": {}, "cache": {}, ".cache": {}, "logs": {}, "log": {},
}

var skipPatterns = []string{
	"*.min.js", "*.min.css", "*.bundle.js", "*.chunk.js",
	"*.map", "*.lock", "*.sum", "*.log", "*.pyc", "*.pyo",
	"*.svg", "*.png", "*.jpg", "*.jpeg", "*.gif",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.ico",
}

var sourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".vue": {},
	".java": {}, ".cpp": {}, ".c": {}, ".h": {}, ".hpp": {},
	".cs": {}, ".go": {}, ".rs": {}, ".php": {}, ".rb": {}, ".swift": {}, ".kt": {},
}

var jsExtensions = map[string]struct{}{
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".vue": {},
}

// Selection holds the selected file paths per category.
type Selection map[string][]string

// All returns every selected file across categories.
func (s Selection) All() []string {
	files := make([]string, 0, len(s[CategoryPython])+len(s[CategoryJavaScript])+len(s[CategoryOther]))
	for _, category := range []string{CategoryPython, CategoryJavaScript, CategoryOther} {
		files = append(files, s[category]...)
	}
	return files
}

func (s Selection) total() int {
	n := 0
	for _, files := range s {
		n += len(files)
	}
	return n
}

type Selector struct {
	fs        afero.Fs
	maxFiles  int
	maxPerCat int
	progress  func(string)
}

// Param configures a Selector. Progress may be nil.
type Param struct {
	MaxFiles            int
	MaxFilesPerCategory int
	Progress            func(string)
}

func New(fsys afero.Fs, param *Param) *Selector {
	progress := param.Progress
	if progress == nil {
		progress = func(string) {}
	}
	return &Selector{
		fs:        fsys,
		maxFiles:  param.MaxFiles,
		maxPerCat: param.MaxFilesPerCategory,
		progress:  progress,
	}
}

// Select walks root and returns the categorized selection. An empty project
// yields empty buckets, never an error; only a broken walk is an error.
func (s *Selector) Select(logE *logrus.Entry, root string) (Selection, error) {
	extraPatterns := s.readIgnoreFile(logE, root)

	selection := Selection{
		CategoryPython:     {},
		CategoryJavaScript: {},
		CategoryOther:      {},
	}
	s.progress("Scanning for source files in: " + filepath.Base(root))

	if err := afero.Walk(s.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			logE.WithField("path", p).WithError(err).Debug("walk a path")
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if p == root {
				return nil
			}
			if _, ok := skipDirs[name]; ok || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if selection.total() >= s.maxFiles {
			return errLimitReached
		}
		if s.shouldSkip(info, extraPatterns) {
			return nil
		}
		category := categorize(p)
		if len(selection[category]) >= s.maxPerCat {
			return nil
		}
		selection[category] = append(selection[category], p)
		return nil
	}); err != nil && !errors.Is(err, errLimitReached) {
		return nil, err
	}

	s.progress("Found scannable files:")
	s.progress("  python: " + strconv.Itoa(len(selection[CategoryPython])))
	s.progress("  javascript/typescript: " + strconv.Itoa(len(selection[CategoryJavaScript])))
	s.progress("  other: " + strconv.Itoa(len(selection[CategoryOther])))
	return selection, nil
}

func (s *Selector) shouldSkip(info fs.FileInfo, extraPatterns []string) bool {
	if info.Size() > maxFileSize {
		return true
	}
	name := info.Name()
	for _, pattern := range skipPatterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	for _, pattern := range extraPatterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	_, ok := sourceExtensions[filepath.Ext(name)]
	return !ok
}

// readIgnoreFile loads project-local skip globs. Blank lines and #-comments
// are skipped, invalid globs are logged and dropped.
func (s *Selector) readIgnoreFile(logE *logrus.Entry, root string) []string {
	f, err := s.fs.Open(filepath.Join(root, ignoreFileName))
	if err != nil {
		return nil
	}
	defer f.Close()
	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := path.Match(line, "a"); err != nil {
			logE.WithField("pattern", line).WithError(err).Warn("skip an invalid ignore pattern")
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

func categorize(p string) string {
	ext := filepath.Ext(p)
	if ext == ".py" {
		return CategoryPython
	}
	if _, ok := jsExtensions[ext]; ok {
		return CategoryJavaScript
	}
	return CategoryOther
}

