package server

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot rejects open requests that escape the workspace root.
var ErrOutsideRoot = errors.New("path escapes workspace root")

// Opener shows an absolute path to the user.
type Opener func(ctx context.Context, absPath string) error

// ResolveWithinRoot joins a workspace-relative path onto root and rejects
// anything that would land outside it.
func ResolveWithinRoot(root, rel string) (string, error) {
	if root == "" {
		return "", errors.New("no workspace root configured")
	}
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	root = filepath.Clean(root)
	abs := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return abs, nil
}

// ExecOpener runs command with the path appended as its last argument.
// The command is started and not waited for, so editors may stay open.
func ExecOpener(command string) Opener {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return func(_ context.Context, absPath string) error {
		args := append(append([]string(nil), fields[1:]...), absPath)
		cmd := exec.Command(fields[0], args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %q: %w", fields[0], err)
		}
		go func() { _ = cmd.Wait() }()
		return nil
	}
}
