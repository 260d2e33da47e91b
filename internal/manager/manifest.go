package manager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/fsutil"
)

const (
	// ManifestFile is the per-server metadata file.
	ManifestFile = "lodestone-manifest.json"
	// ManifestSchema is the only manifest schema understood.
	ManifestSchema = 1
)

// Manifest is the persisted description of a server.
type Manifest struct {
	Schema         int      `json:"schema"`
	Name           string   `json:"name"`
	Software       string   `json:"software"`
	GameVersion    string   `json:"game_version"`
	MaxRAMGB       int      `json:"max_ram_gb,omitempty"`
	MinRAMGB       int      `json:"min_ram_gb,omitempty"`
	JVMArgs        []string `json:"jvm_args,omitempty"`
	BackupSchedule string   `json:"backup_schedule,omitempty"`
	BackupKeep     int      `json:"backup_keep,omitempty"`
}

// NewManifest returns a manifest with the current schema.
func NewManifest(name, software, version string) *Manifest {
	return &Manifest{
		Schema:      ManifestSchema,
		Name:        name,
		Software:    strings.ToLower(software),
		GameVersion: version,
	}
}

// Validate checks the fields every manifest must carry.
func (m *Manifest) Validate() error {
	switch {
	case m.Schema != ManifestSchema:
		return errors.Newf("unsupported manifest schema %d", m.Schema)
	case m.Name == "":
		return errors.New("manifest has no name")
	case m.Software == "":
		return errors.New("manifest has no software")
	case m.GameVersion == "":
		return errors.New("manifest has no game_version")
	case m.MaxRAMGB < 0, m.MinRAMGB < 0:
		return errors.New("memory must not be negative")
	case m.MaxRAMGB > 0 && m.MinRAMGB > m.MaxRAMGB:
		return errors.Newf("min_ram_gb %d exceeds max_ram_gb %d", m.MinRAMGB, m.MaxRAMGB)
	case m.BackupKeep < 0:
		return errors.New("backup_keep must not be negative")
	}
	return nil
}

// ReadManifest loads and validates the manifest in dir. A missing manifest
// returns an error matching os.ErrNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parse %s", ManifestFile)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", ManifestFile)
	}
	return &m, nil
}

// WriteManifest stores m in dir, indented with two spaces.
func WriteManifest(dir string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	return fsutil.WriteFileAtomic(filepath.Join(dir, ManifestFile), append(data, '\n'), 0o644)
}
