package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// ValidateClipPath checks that path names an existing clip file that may be
// read on behalf of a client:
// 1. No directory traversal (.. components)
// 2. .md extension
// 3. File directly in the save directory (no subdirectories)
// 4. The file itself is not a symlink
//
// The "no subdirectories" rule avoids races where an intermediate directory
// is swapped for a symlink between validation and open. O_NOFOLLOW covers
// the final component.
func ValidateClipPath(path, saveDir string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".md" {
		return errors.NewInvalidRequest("path must have .md extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	allowed, err := resolveDir(saveDir)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(absPath)
	if parentDir != allowed {
		return errors.NewInvalidRequest(fmt.Sprintf("file must be directly in the save directory %s", allowed))
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		return errors.NewNotFound("file", path)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// resolveDir returns saveDir as an absolute, cleaned path, resolving it when
// it is itself a symlink.
func resolveDir(saveDir string) (string, error) {
	if strings.TrimSpace(saveDir) == "" {
		return "", errors.NewInvalidRequest("save directory is not configured")
	}
	abs, err := filepath.Abs(filepath.Clean(saveDir))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid save directory: %v", err))
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", errors.NewInvalidRequest(fmt.Sprintf("cannot resolve save directory: %v", err))
		}
		abs = resolved
	}
	return abs, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on all platforms
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
