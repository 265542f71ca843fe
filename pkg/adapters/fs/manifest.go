package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/bidtrail/pkg/core"
)

const (
	// ManifestFile describes the ledger directory.
	ManifestFile = "ledger.json"
	// TempFilePrefix is the prefix used for temporary atomic write files.
	TempFilePrefix = "bidtrail-tmp-"

	manifestVersion = 1
)

// Manifest is written once, when a ledger directory is first initialized.
type Manifest struct {
	Version int      `json:"version"`
	Codec   string   `json:"codec,omitempty"`
	Streams []string `json:"streams"`
	Created string   `json:"created"`
}

// ReadManifest loads the manifest of a ledger directory.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("corrupt manifest: %w", err)
	}
	return m, nil
}

func (l *Ledger) ensureManifest() error {
	m, err := ReadManifest(l.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		streams := make([]string, 0, 3)
		for _, s := range core.Streams() {
			streams = append(streams, string(s))
		}
		m = Manifest{
			Version: manifestVersion,
			Codec:   l.config.Codec,
			Streams: streams,
			Created: core.FormatTimestamp(time.Now()),
		}
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
		return writeFileAtomic(filepath.Join(l.Path, ManifestFile), append(data, '\n'), 0644)
	case err != nil:
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	if m.Version > manifestVersion {
		return fmt.Errorf("ledger at %s has manifest version %d, newer than supported %d", l.Path, m.Version, manifestVersion)
	}
	if m.Codec != "" && l.config.Codec != "" && m.Codec != l.config.Codec {
		return fmt.Errorf("ledger at %s is written with codec %q, not %q", l.Path, m.Codec, l.config.Codec)
	}
	return nil
}

// writeFileAtomic writes data to a file atomically by writing to a temp file
// and then renaming it to the target filename.
func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), TempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}
