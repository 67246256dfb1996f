package jarcache

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Upstream version listing endpoints. The forge project publishes its Maven
// metadata on a different host than its artifact downloads.
const (
	forgeMetadataURL    = "https://files.minecraftforge.net/maven/net/minecraftforge/forge/maven-metadata.xml"
	neoforgeMetadataURL = "https://maven.neoforged.net/releases/net/neoforged/neoforge/maven-metadata.xml"

	mavenListingLimit = 5
)

// Catalog lists the versions each platform currently publishes. It is
// read-only upstream discovery, independent of the cache engine: a listing
// call never touches the object store.
type Catalog struct {
	client      *http.Client
	manifestURL string
	paperBase   string
	metadataURL map[Platform]string
}

func NewCatalog() *Catalog {
	return &Catalog{
		client:      &http.Client{Timeout: discoveryTimeout},
		manifestURL: mojangManifestURL,
		paperBase:   paperAPIBase,
		metadataURL: map[Platform]string{
			PlatformForge:    forgeMetadataURL,
			PlatformNeoForge: neoforgeMetadataURL,
		},
	}
}

// Versions returns the published versions for a platform, newest first.
func (c *Catalog) Versions(ctx context.Context, platform Platform) ([]string, error) {
	switch platform {
	case PlatformVanilla:
		return c.vanillaVersions(ctx)
	case PlatformPaper:
		return c.paperVersions(ctx)
	case PlatformForge, PlatformNeoForge:
		return c.mavenVersions(ctx, c.metadataURL[platform])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
}

// vanillaVersions lists official release ids, newest release first.
func (c *Catalog) vanillaVersions(ctx context.Context) ([]string, error) {
	var manifest struct {
		Versions []struct {
			ID          string    `json:"id"`
			Type        string    `json:"type"`
			ReleaseTime time.Time `json:"releaseTime"`
		} `json:"versions"`
	}
	if err := fetchJSON(ctx, c.client, c.manifestURL, &manifest); err != nil {
		return nil, fmt.Errorf("vanilla manifest: %w", err)
	}

	releases := manifest.Versions[:0:0]
	for _, v := range manifest.Versions {
		if v.Type == "release" {
			releases = append(releases, v)
		}
	}
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].ReleaseTime.After(releases[j].ReleaseTime)
	})

	ids := make([]string, 0, len(releases))
	for _, v := range releases {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// paperVersions lists paper's supported versions. The API reports them in
// ascending order; callers expect newest first.
func (c *Catalog) paperVersions(ctx context.Context) ([]string, error) {
	var doc struct {
		Versions []string `json:"versions"`
	}
	if err := fetchJSON(ctx, c.client, c.paperBase, &doc); err != nil {
		return nil, fmt.Errorf("paper project: %w", err)
	}

	out := make([]string, 0, len(doc.Versions))
	for i := len(doc.Versions) - 1; i >= 0; i-- {
		out = append(out, doc.Versions[i])
	}
	return out, nil
}

// mavenVersions parses a maven-metadata.xml document and returns the latest
// stable installer version per Minecraft version, capped at mavenListingLimit.
func (c *Catalog) mavenVersions(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %q: %w", url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("get %q: unexpected status %d", url, resp.StatusCode)
	}

	var metadata struct {
		Versioning struct {
			Versions struct {
				Version []string `xml:"version"`
			} `xml:"versions"`
		} `xml:"versioning"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("parse %q: %w: %v", url, ErrMetadataMalformed, err)
	}

	return filterMavenVersions(metadata.Versioning.Versions.Version, mavenListingLimit), nil
}

// filterMavenVersions walks the version list newest first, drops pre-release
// tags, and keeps the first (latest) entry for each distinct Minecraft
// version. The Minecraft version is the segment before the first hyphen.
func filterMavenVersions(all []string, limit int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)

	for i := len(all) - 1; i >= 0; i-- {
		full := all[i]
		if isPreRelease(full) {
			continue
		}
		mcVersion, _, _ := strings.Cut(full, "-")
		if _, ok := seen[mcVersion]; ok {
			continue
		}
		seen[mcVersion] = struct{}{}
		out = append(out, full)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func isPreRelease(version string) bool {
	upper := strings.ToUpper(version)
	for _, tag := range []string{"SNAPSHOT", "BETA", "RC", "MDC"} {
		if strings.Contains(upper, tag) {
			return true
		}
	}
	return false
}
