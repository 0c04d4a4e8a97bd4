package ops

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/errors"
)

// workspaceMarkers identify a workspace root, checked in order at each level.
var workspaceMarkers = []string{config.DirName, ".git"}

// FindWorkspace walks upward from startDir to the nearest directory that
// contains a .codyarchitect or .git entry. The home directory's
// .codyarchitect holds global state and does not mark a workspace.
func FindWorkspace(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", errors.NewNoWorkspace(startDir)
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.NewNoWorkspace(startDir)
	}

	home, _ := os.UserHomeDir()
	for {
		for _, marker := range workspaceMarkers {
			if marker == config.DirName && home != "" && dir == home {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.NewNoWorkspace(startDir)
		}
		dir = parent
	}
}

// ResolveWorkspace returns explicit (made absolute) when given, and otherwise
// discovers the workspace from startDir. An explicit workspace must be an
// existing directory.
func ResolveWorkspace(explicit, startDir string) (string, error) {
	if strings.TrimSpace(explicit) == "" {
		return FindWorkspace(startDir)
	}
	return checkWorkspace(explicit)
}

func checkWorkspace(ws string) (string, error) {
	if strings.TrimSpace(ws) == "" {
		return "", errors.NewNoWorkspace(ws)
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", errors.NewNoWorkspace(ws)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", errors.NewNoWorkspace(ws)
	}
	return abs, nil
}

// ResultDir is where documents of a kind are written inside workspace.
func ResultDir(workspace string, dirName string) string {
	return filepath.Join(workspace, config.DirName, dirName)
}

// TempDir is where out-of-workspace files are copied before being mentioned.
func TempDir(workspace string) string {
	return filepath.Join(workspace, config.DirName, "temp")
}

// isWithin reports whether path lies inside dir. Both must be absolute and clean.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
