package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/bidtrail/pkg/adapters/fs"
)

// LedgerDir is the directory holding a project's file ledger.
const LedgerDir = ".bidtrail"

// FindRoot looks upwards from startDir for a file ledger: a directory that
// holds the ledger manifest itself or a LedgerDir with one.
// It returns the ledger directory.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, fs.ManifestFile) {
			return dir, nil
		}
		if hasFile(filepath.Join(dir, LedgerDir), fs.ManifestFile) {
			return filepath.Join(dir, LedgerDir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no ledger found above %s", abs)
}

// DefaultURI is the ledger used when none is configured: the nearest file
// ledger above dir, or a new one in dir.
func DefaultURI(dir string) string {
	if root, err := FindRoot(dir); err == nil {
		return SchemeFS + "://" + root
	}
	return SchemeFS + "://" + filepath.Join(dir, LedgerDir)
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
