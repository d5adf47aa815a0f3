package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fixturesnap/fixturesnap/internal/config"
)

// Digest is the recorded state of one tracked input. Either SHA1 or the
// mtime/size pair is populated, depending on the configured strategy.
type Digest struct {
	SHA1   string `yaml:"sha1,omitempty"`
	MTime  int64  `yaml:"mtime,omitempty"`
	Size   int64  `yaml:"size,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`
}

// Fingerprint is the persisted build state: one digest per tracked input plus
// the fixture directory's file listing at the time of the last build.
type Fingerprint struct {
	Inputs       map[string]Digest `yaml:"inputs"`
	FixtureFiles []string          `yaml:"fixture_files"`
}

type Tracker struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// ShouldRebuild compares the current fingerprint against the persisted one.
// A missing fingerprint file always forces a rebuild. The skip decision
// requires both the tracked-input digests and the fixture file set to match.
func (t *Tracker) ShouldRebuild() (bool, error) {
	previous, err := t.load()
	if err != nil {
		return false, err
	}
	if previous == nil {
		return true, nil
	}

	current, err := t.Current()
	if err != nil {
		return false, err
	}

	return !reflect.DeepEqual(previous, current), nil
}

// Current computes a fresh fingerprint from disk.
func (t *Tracker) Current() (*Fingerprint, error) {
	fp := &Fingerprint{Inputs: make(map[string]Digest, len(t.cfg.FilesToCheck))}

	for _, path := range t.cfg.FilesToCheck {
		digest, err := t.digestFile(path)
		if err != nil {
			return nil, err
		}
		fp.Inputs[path] = digest
	}

	files, err := listFixtureFiles(t.cfg.FixturesDir)
	if err != nil {
		return nil, err
	}
	fp.FixtureFiles = files

	return fp, nil
}

// Record persists the current fingerprint, overwriting any prior state.
func (t *Tracker) Record() error {
	current, err := t.Current()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint: %w", err)
	}

	path := t.cfg.FingerprintPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create fingerprint directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	return nil
}

// Clear removes the persisted fingerprint. Deleting it is the supported way
// to force a rebuild; a missing file is not an error.
func (t *Tracker) Clear() error {
	if err := os.Remove(t.cfg.FingerprintPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (t *Tracker) load() (*Fingerprint, error) {
	data, err := os.ReadFile(t.cfg.FingerprintPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint: %w", err)
	}

	var fp Fingerprint
	if err := yaml.Unmarshal(data, &fp); err != nil {
		// Treat a corrupt fingerprint like a missing one: force rebuild.
		return nil, nil
	}
	return &fp, nil
}

func (t *Tracker) digestFile(path string) (Digest, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Digest{Absent: true}, nil
	}
	if err != nil {
		return Digest{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !t.cfg.UseSHA1Digests {
		return Digest{MTime: info.ModTime().UnixNano(), Size: info.Size()}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return Digest{SHA1: hex.EncodeToString(h.Sum(nil))}, nil
}

func listFixtureFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
