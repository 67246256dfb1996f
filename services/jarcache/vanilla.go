package jarcache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// vanillaResolver resolves official server jars through Mojang's two-step
// discovery: the version manifest maps a version id to a detail document,
// and the detail document carries the server binary URL.
//
// The manifest is cached for the lifetime of the resolver. It is fetched at
// most once on the success path; a failed fetch leaves the cache empty so
// the next call retries. Two requests racing the first fetch may both hit
// the manifest endpoint; both compute the same table, so the duplicate work
// is wasted but harmless.
type vanillaResolver struct {
	client      *http.Client
	manifestURL string

	mu     sync.Mutex
	detail map[string]string // version id -> detail document URL
}

func newVanillaResolver(client *http.Client, manifestURL string) *vanillaResolver {
	return &vanillaResolver{client: client, manifestURL: manifestURL}
}

func (r *vanillaResolver) Resolve(ctx context.Context, version, _ string) (Resolution, error) {
	detailURL, err := r.detailURL(ctx, version)
	if err != nil {
		return Resolution{}, err
	}

	var doc struct {
		Downloads struct {
			Server struct {
				URL string `json:"url"`
			} `json:"server"`
		} `json:"downloads"`
	}
	if err := fetchJSON(ctx, r.client, detailURL, &doc); err != nil {
		return Resolution{}, fmt.Errorf("vanilla %s detail: %w", version, err)
	}
	if doc.Downloads.Server.URL == "" {
		return Resolution{}, fmt.Errorf("vanilla %s: %w: missing downloads.server.url", version, ErrMetadataMalformed)
	}

	return Resolution{URL: doc.Downloads.Server.URL}, nil
}

func (r *vanillaResolver) detailURL(ctx context.Context, version string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.detail == nil {
		var manifest struct {
			Versions []struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"versions"`
		}
		if err := fetchJSON(ctx, r.client, r.manifestURL, &manifest); err != nil {
			return "", fmt.Errorf("vanilla manifest: %w", err)
		}

		table := make(map[string]string, len(manifest.Versions))
		for _, v := range manifest.Versions {
			table[v.ID] = v.URL
		}
		r.detail = table
	}

	url, ok := r.detail[version]
	if !ok {
		return "", fmt.Errorf("vanilla %s: %w", version, ErrVersionNotFound)
	}
	return url, nil
}
