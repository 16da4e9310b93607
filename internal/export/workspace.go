// Package export turns filtered detections into downloadable files via
// ogr2ogr, with scratch space that is always reclaimed.
package export

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace owns the scratch files and directories of one export run.
// Every path it hands out is recorded and removed by Close, whether the
// run succeeded or not.
type Workspace struct {
	root  string
	paths []string
}

func NewWorkspace(root string) *Workspace {
	if root == "" {
		root = os.TempDir()
	}
	return &Workspace{root: root}
}

func suffix() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// File reserves a unique scratch file path with the given extension.
// The file itself is not created.
func (w *Workspace) File(ext string) string {
	p := filepath.Join(w.root, fmt.Sprintf("export-%s.%s", suffix(), ext))
	w.paths = append(w.paths, p)
	return p
}

// Dir creates a unique scratch directory.
func (w *Workspace) Dir() (string, error) {
	p := filepath.Join(w.root, "export-"+suffix())
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	w.paths = append(w.paths, p)
	return p, nil
}

// Close removes everything the workspace handed out. Removal errors are
// joined so one stubborn path does not hide the others.
func (w *Workspace) Close() error {
	var errs []error
	for _, p := range w.paths {
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	w.paths = nil
	return errors.Join(errs...)
}
