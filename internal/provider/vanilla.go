package provider

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultVanillaURL is Mojang's launcher metadata host.
const DefaultVanillaURL = "https://launchermeta.mojang.com"

const vanillaReleaseType = "release"

type vanillaManifest struct {
	Latest struct {
		Release string `json:"release"`
	} `json:"latest"`
	Versions []vanillaVersionRef `json:"versions"`
}

type vanillaVersionRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type vanillaVersionDoc struct {
	Downloads struct {
		Server *struct {
			SHA1 string `json:"sha1"`
			Size int64  `json:"size"`
			URL  string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

// Vanilla downloads official server jars using Mojang's version manifest.
type Vanilla struct {
	client   *Client
	baseURL  string
	manifest *cachedValue[*vanillaManifest]
}

// NewVanilla creates a Vanilla provider against baseURL.
func NewVanilla(client *Client, baseURL string) *Vanilla {
	return &Vanilla{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		manifest: newCachedValue[*vanillaManifest](client.ttl),
	}
}

// Name implements Provider.
func (v *Vanilla) Name() string { return "vanilla" }

func (v *Vanilla) loadManifest(ctx context.Context) (*vanillaManifest, error) {
	return v.manifest.get(ctx, func(ctx context.Context) (*vanillaManifest, error) {
		var m vanillaManifest
		if err := v.client.getJSON(ctx, v.baseURL+"/mc/game/version_manifest.json", &m); err != nil {
			return nil, errors.Wrap(err, "failed to get version manifest")
		}
		return &m, nil
	})
}

func (v *Vanilla) releases(ctx context.Context) ([]vanillaVersionRef, error) {
	m, err := v.loadManifest(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]vanillaVersionRef, 0, len(m.Versions))
	for _, ref := range m.Versions {
		if ref.Type == vanillaReleaseType {
			out = append(out, ref)
		}
	}
	return out, nil
}

// Versions implements Provider.
func (v *Vanilla) Versions(ctx context.Context) ([]VersionGroup, error) {
	refs, err := v.releases(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return groupByFamily(ids), nil
}

// VersionExists implements Provider.
func (v *Vanilla) VersionExists(ctx context.Context, version string) (bool, error) {
	refs, err := v.releases(ctx)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		if ref.ID == version {
			return true, nil
		}
	}
	return false, nil
}

// DownloadJar implements Provider.
func (v *Vanilla) DownloadJar(ctx context.Context, version, dest string, progress ProgressFunc) error {
	refs, err := v.releases(ctx)
	if err != nil {
		return err
	}
	var ref *vanillaVersionRef
	for i := range refs {
		if refs[i].ID == version {
			ref = &refs[i]
			break
		}
	}
	if ref == nil {
		return errors.Wrapf(ErrUnknownVersion, "vanilla %s", version)
	}

	var doc vanillaVersionDoc
	if err := v.client.getJSON(ctx, ref.URL, &doc); err != nil {
		return errors.Wrap(err, "failed to get version document")
	}
	if doc.Downloads.Server == nil || doc.Downloads.Server.URL == "" {
		return errors.Wrapf(ErrNoJar, "vanilla %s", version)
	}
	srv := doc.Downloads.Server
	return v.client.download(ctx, srv.URL, dest, checksum{algo: "sha1", value: srv.SHA1}, progress)
}

// Refresh implements Provider.
func (v *Vanilla) Refresh() { v.manifest.invalidate() }
