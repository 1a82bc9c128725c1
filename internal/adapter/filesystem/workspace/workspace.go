// Package workspace lays out the server's per-run and per-job directories.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const runDirTimeLayout = "2006-01-02-15.04.05"

// Workspace is the per-run server directory
type Workspace struct {
	root string
}

// JobDirs are the paths belonging to one job
type JobDirs struct {
	Dir     string
	ScrDir  string
	LogPath string
}

// maxRunDirAttempts bounds the _<n> suffixes tried when the run directory name is taken
const maxRunDirAttempts = 100

// ErrJobDirExists is returned when job_<id> is already present in the run directory
var ErrJobDirExists = errors.New("job directory already exists")

// NewRunDir creates <base>/server_<port>_<timestamp>. An empty base means the working directory.
// A name already taken by another run gets a _<n> suffix; an existing directory is never reused.
func NewRunDir(base string, port int, now time.Time) (*Workspace, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	name := fmt.Sprintf("server_%d_%s", port, now.Format(runDirTimeLayout))
	root := filepath.Join(base, name)
	for attempt := 1; ; attempt++ {
		err := os.Mkdir(root, 0o755)
		if err == nil {
			return &Workspace{root: root}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create server directory: %w", err)
		}
		if attempt >= maxRunDirAttempts {
			return nil, fmt.Errorf("failed to create server directory %s: %w", root, err)
		}
		root = filepath.Join(base, fmt.Sprintf("%s_%d", name, attempt))
	}
}

// Root returns the run directory
func (w *Workspace) Root() string {
	return w.root
}

// CreateJobDir creates job_<id> and its scratch directory
func (w *Workspace) CreateJobDir(id int32) (JobDirs, error) {
	dir := filepath.Join(w.root, fmt.Sprintf("job_%d", id))
	dirs := JobDirs{
		Dir:     dir,
		ScrDir:  filepath.Join(dir, "scr"),
		LogPath: filepath.Join(dir, fmt.Sprintf("%d.log", id)),
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return JobDirs{}, fmt.Errorf("%s: %w", dir, ErrJobDirExists)
		}
		return JobDirs{}, fmt.Errorf("failed to create job directory: %w", err)
	}
	if err := os.Mkdir(dirs.ScrDir, 0o755); err != nil {
		return JobDirs{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dirs, nil
}
