package server

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
)

// Well-known files inside a server directory.
const (
	JarName        = "server.jar"
	EULAFile       = "eula.txt"
	PropertiesFile = "server.properties"
	OpsFile        = "ops.json"
)

// Operator is an entry of ops.json.
type Operator struct {
	UUID                string `json:"uuid"`
	Name                string `json:"name"`
	Level               int    `json:"level"`
	BypassesPlayerLimit bool   `json:"bypassesPlayerLimit"`
}

// JarPath returns the path of the server jar.
func (s *Server) JarPath() string { return filepath.Join(s.dir, JarName) }

// HasJar reports whether the server jar exists.
func (s *Server) HasJar() bool {
	info, err := os.Stat(s.JarPath())
	return err == nil && !info.IsDir()
}

// AcceptEULA records acceptance of the Minecraft EULA.
func (s *Server) AcceptEULA() error {
	return errors.Wrap(
		os.WriteFile(filepath.Join(s.dir, EULAFile), []byte("eula=true\n"), 0o644),
		"write eula.txt",
	)
}

// EULAAccepted reports whether eula.txt contains eula=true.
func (s *Server) EULAAccepted() bool {
	f, err := os.Open(filepath.Join(s.dir, EULAFile))
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok && strings.TrimSpace(key) == "eula" {
			return strings.EqualFold(strings.TrimSpace(value), "true")
		}
	}
	return false
}

// OppedPlayers returns the operators listed in ops.json. A missing or
// malformed file yields an empty list.
func (s *Server) OppedPlayers() []Operator {
	data, err := os.ReadFile(filepath.Join(s.dir, OpsFile))
	if err != nil {
		return nil
	}
	var ops []Operator
	if err := json.Unmarshal(data, &ops); err != nil {
		s.logger.Warn("ignoring malformed ops.json", logging.Err(err), logging.String("server", s.name))
		return nil
	}
	return ops
}

// Properties reads server.properties from disk.
func (s *Server) Properties() (*Properties, error) {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()
	return LoadProperties(filepath.Join(s.dir, PropertiesFile))
}

// SetProperty validates raw against the existing entry and persists it.
func (s *Server) SetProperty(key, raw string) error {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()

	path := filepath.Join(s.dir, PropertiesFile)
	props, err := LoadProperties(path)
	if err != nil {
		return err
	}
	if err := props.SetString(key, raw); err != nil {
		return err
	}
	return props.Save(path)
}

// SaveProperties replaces server.properties with props.
func (s *Server) SaveProperties(props *Properties) error {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()
	return props.Save(filepath.Join(s.dir, PropertiesFile))
}
