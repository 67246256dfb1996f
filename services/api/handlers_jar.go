package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jarvault/pkg/db"
	"jarvault/services/jarcache"
)

func (a *API) handleJarDownload(w http.ResponseWriter, r *http.Request) {
	platform := strings.TrimSpace(r.URL.Query().Get("platform"))
	version := strings.TrimSpace(r.URL.Query().Get("version"))
	build := strings.TrimSpace(r.URL.Query().Get("build"))
	if build == "" {
		build = "latest"
	}

	if platform == "" || version == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Missing required parameters.",
			"example": "/v1/jar/download?platform=paper&version=1.20.1",
		})
		return
	}

	key, err := a.store.Cache.GetArtifactKey(r.Context(), platform, version, build)
	if err != nil {
		switch {
		case errors.Is(err, jarcache.ErrUnsupportedPlatform):
			respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported platform %q, supported: %s", platform, supportedPlatforms()))
		case errors.Is(err, jarcache.ErrUnavailable):
			respondError(w, http.StatusNotFound, fmt.Errorf("could not find or cache the jar for %s version %s", platform, version))
		default:
			respondError(w, http.StatusInternalServerError, errors.New("artifact store is unavailable"))
		}
		return
	}

	downloadURL, err := a.store.Cache.PresignURL(r.Context(), key, a.config.PresignTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("failed to generate a download url"))
		return
	}

	a.recordFetch(r.Context(), platform, version, build, key)

	respondJSON(w, http.StatusOK, map[string]any{
		"platform":     platform,
		"version":      version,
		"s3_key":       key,
		"download_url": downloadURL,
		"message":      fmt.Sprintf("Use download_url to fetch the jar directly. Link is valid for %s.", a.config.PresignTTL),
	})
}

func (a *API) handleRecentFetches(w http.ResponseWriter, r *http.Request) {
	if a.store.DB == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database not configured"))
		return
	}

	query := `
        SELECT id, platform, version, build, key, created_at
        FROM fetch_events
        ORDER BY created_at DESC
        LIMIT 50
    `

	var fetches []FetchRecord
	if err := db.Select(r.Context(), a.store.DB, &fetches, query); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if fetches == nil {
		fetches = []FetchRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"fetches": fetches})
}

// recordFetch writes the audit row for a served jar. Best effort.
func (a *API) recordFetch(ctx context.Context, platform, version, build, key string) {
	if a.store.DB == nil {
		return
	}

	details, err := json.Marshal(map[string]any{"requested_build": build})
	if err != nil {
		return
	}

	query := `
        INSERT INTO fetch_events (platform, version, build, key, details, created_at)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6)
    `

	_, _ = db.Exec(ctx, a.store.DB, query, platform, version, build, key, string(details), time.Now().UTC())
}

func supportedPlatforms() string {
	names := make([]string, 0, 4)
	for _, p := range jarcache.Platforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
