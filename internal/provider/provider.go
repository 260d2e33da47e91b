// Package provider resolves game versions and downloads server jars from the
// upstream distribution APIs (PaperMC Fill and Mojang's launcher metadata).
package provider

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors returned by providers.
var (
	ErrUnsupported    = errors.New("unsupported server software")
	ErrUnknownVersion = errors.New("unknown game version")
	ErrNoBuild        = errors.New("no stable build for this version")
	ErrNoJar          = errors.New("no jar for this version")
	ErrChecksum       = errors.New("checksum mismatch")
)

// ProgressFunc receives the number of bytes downloaded so far and the expected
// total, which is -1 when the server did not announce a length.
type ProgressFunc func(downloaded, total int64)

// VersionGroup is a family of releases ("1.21") with its versions, newest first.
type VersionGroup struct {
	Family   string
	Versions []string
}

// Provider is a source of server jars for one server software.
type Provider interface {
	// Name returns the lower-case software name stored in manifests.
	Name() string
	// Versions lists the downloadable versions grouped by family, newest first.
	Versions(ctx context.Context) ([]VersionGroup, error)
	// VersionExists reports whether version is an exact, downloadable version.
	VersionExists(ctx context.Context, version string) (bool, error)
	// DownloadJar fetches the jar for version and stores it at dest.
	DownloadJar(ctx context.Context, version, dest string, progress ProgressFunc) error
	// Refresh drops cached metadata.
	Refresh()
}

// Registry maps software names to providers.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry builds a registry from providers, keyed by their Name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		name := strings.ToLower(p.Name())
		if _, dup := r.providers[name]; !dup {
			r.order = append(r.order, name)
		}
		r.providers[name] = p
	}
	return r
}

// NewDefaultRegistry returns the Paper and Vanilla providers sharing client.
func NewDefaultRegistry(client *Client) *Registry {
	return NewRegistry(
		NewPaper(client, DefaultPaperURL),
		NewVanilla(client, DefaultVanillaURL),
	)
}

// Get looks a provider up by name, ignoring case.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "%q", name)
	}
	return p, nil
}

// Names returns the registered software names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Refresh drops the cached metadata of every provider.
func (r *Registry) Refresh() {
	for _, p := range r.providers {
		p.Refresh()
	}
}

// Latest returns the newest version offered by p.
func Latest(ctx context.Context, p Provider) (string, error) {
	groups, err := p.Versions(ctx)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if len(g.Versions) > 0 {
			return g.Versions[0], nil
		}
	}
	return "", errors.Newf("%s offers no versions", p.Name())
}

func containsVersion(groups []VersionGroup, version string) bool {
	for _, g := range groups {
		if slices.Contains(g.Versions, version) {
			return true
		}
	}
	return false
}
