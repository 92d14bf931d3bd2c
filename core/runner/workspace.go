package runner

import (
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
)

var (
	osMkdirTemp = os.MkdirTemp
	osRemoveAll = os.RemoveAll
)

// Workspace is a scratch directory for one run. Close removes it unless
// Keep was called.
type Workspace struct {
	Dir  string
	keep bool
}

// NewWorkspace creates a scratch directory under parent, or the system
// temporary directory when parent is empty.
func NewWorkspace(parent, pattern string) (*Workspace, error) {
	dir, err := osMkdirTemp(parent, pattern)
	if err != nil {
		return nil, errors.NewIO("create workspace", parent, err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Dir}, elem...)...)
}

// Keep stops Close from removing the directory.
func (w *Workspace) Keep() {
	w.keep = true
}

// Kept reports whether Keep was called.
func (w *Workspace) Kept() bool {
	return w.keep
}

// Close removes the directory. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w.keep || w.Dir == "" {
		return nil
	}
	err := osRemoveAll(w.Dir)
	w.Dir = ""
	return err
}
