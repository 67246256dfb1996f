package jarcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	gos3 "jarvault/pkg/s3"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	statErr    error
	uploadErr  error
	presignErr error

	uploads  int
	presigns int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Stat(_ context.Context, _, key string) (gos3.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return gos3.PresenceUnknown, f.statErr
	}
	if _, ok := f.objects[key]; ok {
		return gos3.PresenceFound, nil
	}
	return gos3.PresenceNotFound, nil
}

func (f *fakeStore) UploadFile(_ context.Context, _, key, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigns++
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return fmt.Sprintf("https://store.example/%s/%s?X-Amz-Expires=%d", bucket, key, int(ttl.Seconds())), nil
}

type stubResolver struct {
	mu    sync.Mutex
	res   Resolution
	err   error
	calls int
}

func (s *stubResolver) Resolve(context.Context, string, string) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.res, s.err
}

func (s *stubResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestEngine(t *testing.T, store ObjectStore, resolvers map[Platform]Resolver) *Engine {
	t.Helper()
	engine, err := New(Config{
		Store:     store,
		Bucket:    "jars",
		WorkDir:   t.TempDir(),
		Resolvers: resolvers,
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func TestGetArtifactKeyCacheHitSkipsResolver(t *testing.T) {
	store := newFakeStore()
	store.objects["vanilla/1.20.1/server.jar"] = []byte("jar")

	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformVanilla: resolver})

	key, err := engine.GetArtifactKey(context.Background(), "vanilla", "1.20.1", "latest")
	if err != nil {
		t.Fatalf("GetArtifactKey() error = %v", err)
	}
	if key != "vanilla/1.20.1/server.jar" {
		t.Fatalf("GetArtifactKey() = %q", key)
	}
	if got := resolver.callCount(); got != 0 {
		t.Fatalf("resolver called %d times on cache hit", got)
	}
	if store.uploads != 0 {
		t.Fatalf("upload attempted on cache hit")
	}
}

func TestGetArtifactKeyUnsupportedPlatform(t *testing.T) {
	resolver := &stubResolver{}
	engine := newTestEngine(t, newFakeStore(), map[Platform]Resolver{PlatformVanilla: resolver})

	_, err := engine.GetArtifactKey(context.Background(), "bukkit", "1.20.1", "latest")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("error = %v, want ErrUnsupportedPlatform", err)
	}
	if got := resolver.callCount(); got != 0 {
		t.Fatalf("resolver called %d times for unsupported platform", got)
	}
}

func TestGetArtifactKeyResolutionFailure(t *testing.T) {
	store := newFakeStore()
	resolver := &stubResolver{err: fmt.Errorf("manifest: %w", ErrVersionNotFound)}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformVanilla: resolver})

	_, err := engine.GetArtifactKey(context.Background(), "vanilla", "9.99", "latest")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("error = %v, want wrapped ErrVersionNotFound", err)
	}
	if store.uploads != 0 {
		t.Fatalf("upload attempted after resolution failure")
	}
}

func TestGetArtifactKeyStoreErrorIsNotAMiss(t *testing.T) {
	store := newFakeStore()
	store.statErr = errors.New("connection refused")
	resolver := &stubResolver{res: Resolution{URL: "http://origin.invalid/server.jar"}}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformVanilla: resolver})

	_, err := engine.GetArtifactKey(context.Background(), "vanilla", "1.20.1", "latest")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("error = %v, want *StoreError", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("store failure must not map to artifact-unavailable")
	}
	if got := resolver.callCount(); got != 0 {
		t.Fatalf("resolver called %d times when the store was unreachable", got)
	}
}

func TestGetArtifactKeyPaperLatestResolvesBuild(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "paper jar bytes")
	}))
	defer origin.Close()

	store := newFakeStore()
	resolver := &stubResolver{res: Resolution{URL: origin.URL, Build: "497"}}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformPaper: resolver})

	key, err := engine.GetArtifactKey(context.Background(), "paper", "1.20.1", "latest")
	if err != nil {
		t.Fatalf("GetArtifactKey() error = %v", err)
	}
	if key != "paper/1.20.1/build-497.jar" {
		t.Fatalf("GetArtifactKey() = %q, want concrete build in key", key)
	}
	if strings.Contains(key, "latest") {
		t.Fatalf("key %q still carries the literal build alias", key)
	}
	if string(store.objects[key]) != "paper jar bytes" {
		t.Fatalf("stored object missing or wrong for %q", key)
	}
}

func TestGetArtifactKeyPaperExplicitBuildHitSkipsResolver(t *testing.T) {
	store := newFakeStore()
	store.objects["paper/1.20.1/build-400.jar"] = []byte("jar")
	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformPaper: resolver})

	key, err := engine.GetArtifactKey(context.Background(), "paper", "1.20.1", "400")
	if err != nil {
		t.Fatalf("GetArtifactKey() error = %v", err)
	}
	if key != "paper/1.20.1/build-400.jar" {
		t.Fatalf("GetArtifactKey() = %q", key)
	}
	if got := resolver.callCount(); got != 0 {
		t.Fatalf("resolver called %d times for literal-build cache hit", got)
	}
}

func TestGetArtifactKeyPopulatesOnMiss(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "vanilla server bytes")
	}))
	defer origin.Close()

	store := newFakeStore()
	resolver := &stubResolver{res: Resolution{URL: origin.URL}}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformVanilla: resolver})

	key, err := engine.GetArtifactKey(context.Background(), "vanilla", "1.20.1", "latest")
	if err != nil {
		t.Fatalf("GetArtifactKey() error = %v", err)
	}
	if key != "vanilla/1.20.1/server.jar" {
		t.Fatalf("GetArtifactKey() = %q", key)
	}
	if string(store.objects[key]) != "vanilla server bytes" {
		t.Fatalf("stored object missing or wrong for %q", key)
	}

	// Second call is a pure cache hit.
	if _, err := engine.GetArtifactKey(context.Background(), "vanilla", "1.20.1", "latest"); err != nil {
		t.Fatalf("second GetArtifactKey() error = %v", err)
	}
	if got := resolver.callCount(); got != 1 {
		t.Fatalf("resolver called %d times, want 1", got)
	}
	if store.uploads != 1 {
		t.Fatalf("uploads = %d, want 1", store.uploads)
	}
}

func TestPresignURLNeverTouchesResolvers(t *testing.T) {
	store := newFakeStore()
	resolver := &stubResolver{err: errors.New("resolver must not be called")}
	engine := newTestEngine(t, store, map[Platform]Resolver{PlatformVanilla: resolver})

	url, err := engine.PresignURL(context.Background(), "vanilla/1.20.1/server.jar", 0)
	if err != nil {
		t.Fatalf("PresignURL() error = %v", err)
	}
	if !strings.Contains(url, "vanilla/1.20.1/server.jar") {
		t.Fatalf("PresignURL() = %q, key missing", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=3600") {
		t.Fatalf("PresignURL() = %q, default expiry missing", url)
	}
	if got := resolver.callCount(); got != 0 {
		t.Fatalf("resolver called %d times during presign", got)
	}
}

func TestPresignURLFailure(t *testing.T) {
	store := newFakeStore()
	store.presignErr = errors.New("signing key unavailable")
	engine := newTestEngine(t, store, nil)

	url, err := engine.PresignURL(context.Background(), "vanilla/1.20.1/server.jar", time.Minute)
	if err == nil {
		t.Fatalf("PresignURL() expected error")
	}
	if url != "" {
		t.Fatalf("PresignURL() = %q, want empty on failure", url)
	}
}

func TestEndToEndVanilla(t *testing.T) {
	manifestSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.json":
			fmt.Fprintf(w, `{"versions":[{"id":"1.20.1","url":"http://%s/detail.json"}]}`, r.Host)
		case "/detail.json":
			fmt.Fprintf(w, `{"downloads":{"server":{"url":"http://%s/server.jar"}}}`, r.Host)
		case "/server.jar":
			io.WriteString(w, "the real server jar")
		default:
			http.NotFound(w, r)
		}
	}))
	defer manifestSrv.Close()

	store := newFakeStore()
	resolvers := map[Platform]Resolver{
		PlatformVanilla: newVanillaResolver(manifestSrv.Client(), manifestSrv.URL+"/manifest.json"),
	}
	engine := newTestEngine(t, store, resolvers)

	key, err := engine.GetArtifactKey(context.Background(), "vanilla", "1.20.1", "latest")
	if err != nil {
		t.Fatalf("GetArtifactKey() error = %v", err)
	}
	if key != "vanilla/1.20.1/server.jar" {
		t.Fatalf("GetArtifactKey() = %q", key)
	}
	if string(store.objects[key]) != "the real server jar" {
		t.Fatalf("cached bytes wrong for %q", key)
	}

	url, err := engine.PresignURL(context.Background(), key, DefaultPresignTTL)
	if err != nil {
		t.Fatalf("PresignURL() error = %v", err)
	}
	if !strings.Contains(url, key) || !strings.Contains(url, "X-Amz-Expires") {
		t.Fatalf("PresignURL() = %q, want key and expiry parameter", url)
	}
}
