package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"jarvault/services/jarcache"
)

const defaultPresignTTL = time.Hour

// JarCache is the artifact cache engine surface the handlers consume.
// *jarcache.Engine satisfies it.
type JarCache interface {
	GetArtifactKey(ctx context.Context, platform, version, build string) (string, error)
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// VersionLister reports upstream published versions. *jarcache.Catalog
// satisfies it.
type VersionLister interface {
	Versions(ctx context.Context, platform jarcache.Platform) ([]string, error)
}

// PlatformRecord is the stored representation of one supported platform.
type PlatformRecord struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionRecord is one known version of a platform.
type VersionRecord struct {
	ID        uuid.UUID `json:"id"`
	Platform  string    `json:"platform"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}

// FetchRecord is the audit row written after each successful jar request.
type FetchRecord struct {
	ID        int64     `json:"id" db:"id"`
	Platform  string    `json:"platform" db:"platform"`
	Version   string    `json:"version" db:"version"`
	Build     string    `json:"build" db:"build"`
	Key       string    `json:"key" db:"key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Store holds external dependencies required by the API layer.
type Store struct {
	DB      *pgxpool.Pool
	ORM     *gorm.DB
	Cache   JarCache
	Catalog VersionLister
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	PresignTTL time.Duration
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	store  *Store
	config Config
}

// New initialises the API layer with sane defaults applied to the provided configuration.
func New(store *Store, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.Cache == nil {
		return nil, errors.New("store cache engine is required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}

	return &API{store: store, config: cfg}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jar/download", a.handleJarDownload)
		r.Get("/jar/recent", a.handleRecentFetches)
		r.Get("/versions/upstream/{platform}", a.handleUpstreamVersions)
		r.Get("/platforms", a.handleListPlatforms)
		r.Post("/platforms", a.handleCreatePlatform)
		r.Get("/versions", a.handleListVersions)
		r.Post("/versions", a.handleCreateVersion)
	})

	return r, nil
}
