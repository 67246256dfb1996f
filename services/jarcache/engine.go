package jarcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	gos3 "jarvault/pkg/s3"
)

const (
	// DefaultPresignTTL bounds the validity of issued download handles.
	DefaultPresignTTL = time.Hour

	// downloadTimeout covers one full artifact transfer from an origin.
	// Server jars run to hundreds of megabytes, so minutes, not seconds.
	downloadTimeout = 5 * time.Minute

	// CachedSubject is the bus subject announcing freshly populated keys.
	CachedSubject = "jarvault.artifacts.cached"
)

// ObjectStore is the slice of the object store gateway the engine depends
// on. *s3.Client satisfies it.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, key string) (gos3.Presence, error)
	UploadFile(ctx context.Context, bucket, key, path string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Publisher distributes cache events. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Config assembles an Engine.
type Config struct {
	Store  ObjectStore
	Bucket string

	// WorkDir holds transient download files. Defaults to a jarvault
	// directory under the OS temp dir.
	WorkDir string

	// Resolvers overrides the per-platform origin resolvers; tests point
	// these at httptest servers. Nil selects the production set.
	Resolvers map[Platform]Resolver

	// Bus is optional; when set, populated keys are announced on it.
	Bus Publisher

	Metrics *Metrics
	Logger  *log.Logger
}

// Engine is the artifact cache orchestrator: derive the storage key, check
// the store, populate on miss, hand out presigned access. One long-lived
// Engine per process; the vanilla resolver's manifest cache lives and dies
// with it.
type Engine struct {
	store     ObjectStore
	bucket    string
	workDir   string
	resolvers map[Platform]Resolver
	bus       Publisher
	metrics   *Metrics
	logger    *log.Logger
	inflight  singleflight.Group
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "jarvault")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	resolvers := cfg.Resolvers
	if resolvers == nil {
		resolvers = defaultResolvers()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	return &Engine{
		store:     cfg.Store,
		bucket:    cfg.Bucket,
		workDir:   workDir,
		resolvers: resolvers,
		bus:       cfg.Bus,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// GetArtifactKey ensures the requested artifact is present in the object
// store and returns its storage key. A populated key is served with zero
// origin traffic. Build defaults to "latest" and only matters for paper.
//
// Failures split three ways: ErrUnsupportedPlatform for unknown platforms,
// ErrUnavailable (possibly wrapping a resolution error) when the artifact
// could not be resolved or transferred, and *StoreError when the object
// store itself misbehaved and a cache decision could not be made safely.
func (e *Engine) GetArtifactKey(ctx context.Context, platform, version, build string) (string, error) {
	if e == nil {
		return "", errors.New("nil engine")
	}

	p, err := ParsePlatform(platform)
	if err != nil {
		return "", err
	}
	if build == "" {
		build = "latest"
	}

	resolver := e.resolvers[p]
	if resolver == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}

	// The paper key embeds the concrete build, so "latest" has to be
	// resolved before the store can be consulted. Every other platform,
	// paper with an explicit build included, checks existence first and
	// skips discovery entirely on a hit.
	var resolved *Resolution
	if p.buildDependent() && build == "latest" {
		r, err := resolver.Resolve(ctx, version, build)
		if err != nil {
			e.logger.Printf("ERROR resolve %s %s: %v", p, version, err)
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		resolved = &r
		build = r.Build
	}

	key := p.Key(version, build)

	presence, err := e.store.Stat(ctx, e.bucket, key)
	if err != nil {
		return "", &StoreError{Op: "stat", Err: err}
	}
	if presence == gos3.PresenceFound {
		e.metrics.CacheHits.Inc()
		return key, nil
	}

	e.metrics.CacheMisses.Inc()

	if resolved == nil {
		r, err := resolver.Resolve(ctx, version, build)
		if err != nil {
			e.logger.Printf("ERROR resolve %s %s: %v", p, version, err)
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		resolved = &r
	}

	// Concurrent misses for the same key collapse into one download within
	// this process. Across processes the duplicate-download-and-overwrite
	// race stands; both writers produce the same bytes.
	if _, err, _ := e.inflight.Do(key, func() (any, error) {
		return nil, e.populate(ctx, resolved.URL, key)
	}); err != nil {
		e.metrics.DownloadFailures.Inc()
		e.logger.Printf("ERROR populate %s: %v", key, err)
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	e.announce(ctx, p, version, build, key)
	return key, nil
}

// PresignURL issues a time-limited direct download handle for a storage key.
// It performs a single store presign call and never consults a resolver.
func (e *Engine) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if e == nil {
		return "", errors.New("nil engine")
	}
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	url, err := e.store.PresignGet(ctx, e.bucket, key, ttl)
	if err != nil {
		e.logger.Printf("ERROR presign %s: %v", key, err)
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return url, nil
}

func (e *Engine) announce(ctx context.Context, p Platform, version, build, key string) {
	if e.bus == nil {
		return
	}
	event := map[string]any{
		"platform": string(p),
		"version":  version,
		"build":    build,
		"s3_key":   key,
	}
	if err := e.bus.Publish(ctx, CachedSubject, event); err != nil {
		e.logger.Printf("WARN publish cache event for %s: %v", key, err)
	}
}
