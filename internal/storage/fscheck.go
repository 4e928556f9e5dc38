package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// remoteMounts are filesystem names on which SQLite's WAL locking is not
// reliable. 9p covers VM and container host shares.
var remoteMounts = map[string]bool{
	"9p":     true,
	"afpfs":  true,
	"cifs":   true,
	"nfs":    true,
	"smb2":   true,
	"smbfs":  true,
	"webdav": true,
}

// mountInspector names the filesystem a path lives on.
type mountInspector func(path string) (string, error)

// checkJournalMount rejects journal paths on remote filesystems.
func checkJournalMount(path string) error {
	return checkJournalMountWith(path, mountType)
}

func checkJournalMountWith(path string, inspect mountInspector) error {
	if path == "" {
		return errors.New("journal path is empty")
	}

	dir, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	fsName, err := inspect(dir)
	if err != nil {
		return fmt.Errorf("inspect mount of %q: %w", dir, err)
	}
	if isRemoteMount(fsName) {
		return fmt.Errorf("journal path %q is on %s, a remote filesystem; "+
			"move journal.path (or --journal) to local disk", path, fsName)
	}
	return nil
}

// existingAncestor walks up from path to the first component that exists,
// so a database that has not been created yet is checked where it will be.
func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("nothing along %q exists", abs)
		}
		dir = parent
	}
}

func isRemoteMount(fsName string) bool {
	return remoteMounts[strings.ToLower(strings.TrimSpace(fsName))]
}
