// Package pathsafe resolves a target file path relative to a work
// directory and rejects any path that would escape the work directory.
package pathsafe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolve joins workdir and target, normalizes the result, and returns it
// only if it stays within workdir. Absolute targets and an empty workdir
// are rejected outright.
func Resolve(workdir, target string) (string, error) {
	if workdir == "" {
		return "", fmt.Errorf("pathsafe: work directory must not be empty")
	}
	if filepath.IsAbs(target) {
		return "", fmt.Errorf("pathsafe: target path %q must not be absolute", target)
	}

	absWorkdir, err := filepath.Abs(workdir)
	if err != nil {
		return "", fmt.Errorf("pathsafe: resolving work directory %q: %w", workdir, err)
	}
	absWorkdir = filepath.Clean(absWorkdir)

	joined := filepath.Join(absWorkdir, target)
	cleaned := filepath.Clean(joined)

	if cleaned != absWorkdir && !strings.HasPrefix(cleaned, absWorkdir+string(filepath.Separator)) {
		return "", fmt.Errorf("pathsafe: target %q escapes work directory %q", target, workdir)
	}

	return cleaned, nil
}
