package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"jarvault/services/jarcache"
)

func (a *API) handleUpstreamVersions(w http.ResponseWriter, r *http.Request) {
	if a.store.Catalog == nil {
		respondError(w, http.StatusFailedDependency, errors.New("upstream catalog not configured"))
		return
	}

	platform, err := jarcache.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported platform, supported: %s", supportedPlatforms()))
		return
	}

	versions, err := a.store.Catalog.Versions(r.Context(), platform)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Errorf("failed to list %s versions: %w", platform, err))
		return
	}
	if versions == nil {
		versions = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"platform": platform,
		"versions": versions,
	})
}

func (a *API) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	if a.store.ORM == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database not configured"))
		return
	}

	var rows []platformModel
	if err := a.store.ORM.WithContext(r.Context()).Order("name asc").Find(&rows).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	platforms := make([]PlatformRecord, 0, len(rows))
	for _, row := range rows {
		platforms = append(platforms, row.toAPI())
	}

	respondJSON(w, http.StatusOK, map[string]any{"platforms": platforms})
}

func (a *API) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	if a.store.ORM == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database not configured"))
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	if _, err := jarcache.ParsePlatform(name); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported platform, supported: %s", supportedPlatforms()))
		return
	}

	row := platformModel{ID: uuid.New(), Name: name}
	result := a.store.ORM.WithContext(r.Context()).
		Where(platformModel{Name: name}).
		FirstOrCreate(&row)
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, result.Error)
		return
	}

	status := http.StatusOK
	if result.RowsAffected > 0 {
		status = http.StatusCreated
	}
	respondJSON(w, status, row.toAPI())
}

func (a *API) handleListVersions(w http.ResponseWriter, r *http.Request) {
	if a.store.ORM == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database not configured"))
		return
	}

	q := a.store.ORM.WithContext(r.Context()).
		Preload("Platform").
		Order("created_at desc")

	if platform := strings.TrimSpace(r.URL.Query().Get("platform")); platform != "" {
		p, err := jarcache.ParsePlatform(platform)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported platform, supported: %s", supportedPlatforms()))
			return
		}
		q = q.Joins("JOIN platforms ON platforms.id = versions.platform_id").
			Where("platforms.name = ?", string(p))
	}

	var rows []versionModel
	if err := q.Find(&rows).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	versions := make([]VersionRecord, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, row.toAPI())
	}

	respondJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (a *API) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	if a.store.ORM == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database not configured"))
		return
	}

	var req struct {
		Platform string `json:"platform"`
		Number   string `json:"number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	platform, err := jarcache.ParsePlatform(req.Platform)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported platform, supported: %s", supportedPlatforms()))
		return
	}

	number := strings.TrimSpace(req.Number)
	if number == "" {
		respondError(w, http.StatusBadRequest, errors.New("number is required"))
		return
	}

	var created VersionRecord
	err = a.store.ORM.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		platformRow := platformModel{ID: uuid.New(), Name: string(platform)}
		if err := tx.Where(platformModel{Name: string(platform)}).FirstOrCreate(&platformRow).Error; err != nil {
			return err
		}

		versionRow := versionModel{ID: uuid.New(), PlatformID: platformRow.ID, Number: number}
		if err := tx.Where(versionModel{PlatformID: platformRow.ID, Number: number}).FirstOrCreate(&versionRow).Error; err != nil {
			return err
		}

		versionRow.Platform = platformRow
		created = versionRow.toAPI()
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}
