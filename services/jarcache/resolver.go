package jarcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default upstream endpoints. Overridable per resolver for tests.
const (
	mojangManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	paperAPIBase      = "https://api.papermc.io/v2/projects/paper"
	forgeMavenBase    = "https://maven.minecraftforge.net/net/minecraftforge/forge"
	neoforgeMavenBase = "https://maven.neoforged.net/releases/net/neoforged/neoforge"
)

// discoveryTimeout bounds origin metadata calls. Artifact transfers use the
// engine's much longer download timeout instead.
const discoveryTimeout = 10 * time.Second

// Resolution is the outcome of origin discovery for one artifact: where to
// download it from and, for build-addressed platforms, which concrete build
// "latest" resolved to.
type Resolution struct {
	URL   string
	Build string
}

// Resolver translates (version, build) into an origin download URL for one
// platform. Implementations convert every internal failure, network, decode,
// or missing field, into one of the package's resolution errors; nothing
// panics past this boundary.
type Resolver interface {
	Resolve(ctx context.Context, version, build string) (Resolution, error)
}

func defaultResolvers() map[Platform]Resolver {
	client := &http.Client{Timeout: discoveryTimeout}
	return map[Platform]Resolver{
		PlatformVanilla:  newVanillaResolver(client, mojangManifestURL),
		PlatformPaper:    newPaperResolver(client, paperAPIBase),
		PlatformForge:    newMavenResolver(PlatformForge, forgeMavenBase),
		PlatformNeoForge: newMavenResolver(PlatformNeoForge, neoforgeMavenBase),
	}
}

// fetchJSON performs a GET and decodes the body into dest. Non-2xx responses
// are errors.
func fetchJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request %q: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("get %q: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %q: %w", url, err)
	}
	return nil
}
