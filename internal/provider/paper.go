package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultPaperURL is the PaperMC Fill API.
const DefaultPaperURL = "https://fill.papermc.io"

const paperStableChannel = "STABLE"

type paperProject struct {
	Versions map[string][]string `json:"versions"`
}

type paperBuild struct {
	ID        int                      `json:"id"`
	Channel   string                   `json:"channel"`
	Downloads map[string]paperDownload `json:"downloads"`
}

type paperDownload struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	Checksums struct {
		SHA256 string `json:"sha256"`
	} `json:"checksums"`
}

// Paper downloads Paper server jars from the Fill v3 API.
type Paper struct {
	client   *Client
	baseURL  string
	versions *cachedValue[[]VersionGroup]
}

// NewPaper creates a Paper provider against baseURL.
func NewPaper(client *Client, baseURL string) *Paper {
	return &Paper{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		versions: newCachedValue[[]VersionGroup](client.ttl),
	}
}

// Name implements Provider.
func (p *Paper) Name() string { return "paper" }

// Versions implements Provider.
func (p *Paper) Versions(ctx context.Context) ([]VersionGroup, error) {
	return p.versions.get(ctx, func(ctx context.Context) ([]VersionGroup, error) {
		var project paperProject
		if err := p.client.getJSON(ctx, p.baseURL+"/v3/projects/paper", &project); err != nil {
			return nil, errors.Wrap(err, "failed to get Paper project")
		}
		return sortedGroups(project.Versions), nil
	})
}

// VersionExists implements Provider.
func (p *Paper) VersionExists(ctx context.Context, version string) (bool, error) {
	groups, err := p.Versions(ctx)
	if err != nil {
		return false, err
	}
	return containsVersion(groups, version), nil
}

// latestStable returns the newest stable build. Fill lists builds newest first.
func (p *Paper) latestStable(ctx context.Context, version string) (*paperBuild, error) {
	var builds []paperBuild
	u := p.baseURL + "/v3/projects/paper/versions/" + url.PathEscape(version) + "/builds"
	if err := p.client.getJSON(ctx, u, &builds); err != nil {
		return nil, errors.Wrap(err, "failed to get builds")
	}
	for i := range builds {
		if builds[i].Channel == paperStableChannel {
			return &builds[i], nil
		}
	}
	return nil, errors.Wrapf(ErrNoBuild, "paper %s", version)
}

// DownloadJar implements Provider.
func (p *Paper) DownloadJar(ctx context.Context, version, dest string, progress ProgressFunc) error {
	build, err := p.latestStable(ctx, version)
	if err != nil {
		return err
	}
	dl, ok := build.Downloads["server:default"]
	if !ok || dl.URL == "" {
		return errors.Wrapf(ErrNoJar, "paper %s build %d", version, build.ID)
	}
	return p.client.download(ctx, dl.URL, dest, checksum{algo: "sha256", value: dl.Checksums.SHA256}, progress)
}

// Refresh implements Provider.
func (p *Paper) Refresh() { p.versions.invalidate() }
