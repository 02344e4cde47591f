// Package pathcheck validates a project root before it is handed to the
// scan engine. It resolves the path to an absolute canonical form and
// rejects system and hidden directories; the engine itself assumes a
// validated root.
package pathcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var unixSystemDirs = []string{
	"/bin", "/sbin", "/usr/bin", "/usr/sbin",
	"/etc", "/sys", "/proc", "/dev",
	"/boot", "/root", "/lib", "/lib64",
}

var windowsSystemDirs = []string{
	`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`,
	`C:\ProgramData`, `C:\System Volume Information`,
}

func systemDirs() []string {
	if runtime.GOOS == "windows" {
		return windowsSystemDirs
	}
	return unixSystemDirs
}

// Validate resolves root to an absolute path free of symlinks and relative
// segments and checks it is a scannable directory. The returned path is the
// one to scan.
func Validate(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("make the path absolute: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", root)
		}
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat the path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path must be a directory: %s", resolved)
	}
	if err := checkSystemDir(resolved); err != nil {
		return "", err
	}
	if name := filepath.Base(resolved); strings.HasPrefix(name, ".") && name != "." {
		return "", fmt.Errorf("refusing to scan a hidden directory: %s", resolved)
	}
	return resolved, nil
}

func checkSystemDir(p string) error {
	lowered := strings.ToLower(p)
	for _, dir := range systemDirs() {
		dir = strings.ToLower(dir)
		if lowered == dir || strings.HasPrefix(lowered, dir+string(filepath.Separator)) {
			return fmt.Errorf("refusing to scan a system directory: %s", p)
		}
	}
	return nil
}
