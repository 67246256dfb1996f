package jarcache

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func workDirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Join(dir, e.Name()))
	}
	return names
}

func TestPopulateOriginFailureLeavesNoLocalFile(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer origin.Close()

	store := newFakeStore()
	workDir := t.TempDir()
	engine, err := New(Config{
		Store:   store,
		Bucket:  "jars",
		WorkDir: workDir,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := engine.populate(context.Background(), origin.URL, "forge/9.99/forge-9.99-installer.jar"); err == nil {
		t.Fatalf("populate() expected error for 404 origin")
	}
	if store.uploads != 0 {
		t.Fatalf("upload attempted after origin failure")
	}
	if left := workDirEntries(t, workDir); len(left) != 0 {
		t.Fatalf("transient files left behind: %v", left)
	}
}

func TestPopulateUploadFailureCleansUp(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "jar bytes")
	}))
	defer origin.Close()

	store := newFakeStore()
	store.uploadErr = errors.New("bucket quota exceeded")
	workDir := t.TempDir()
	engine, err := New(Config{
		Store:   store,
		Bucket:  "jars",
		WorkDir: workDir,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := engine.populate(context.Background(), origin.URL, "vanilla/1.20.1/server.jar"); err == nil {
		t.Fatalf("populate() expected error for failed upload")
	}
	if left := workDirEntries(t, workDir); len(left) != 0 {
		t.Fatalf("transient files left behind: %v", left)
	}
}

func TestPopulateCancelledContext(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "jar bytes")
	}))
	defer origin.Close()

	store := newFakeStore()
	workDir := t.TempDir()
	engine, err := New(Config{
		Store:   store,
		Bucket:  "jars",
		WorkDir: workDir,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := engine.populate(ctx, origin.URL, "vanilla/1.20.1/server.jar"); err == nil {
		t.Fatalf("populate() expected error for cancelled context")
	}
	if store.uploads != 0 {
		t.Fatalf("upload attempted after cancellation")
	}
	if left := workDirEntries(t, workDir); len(left) != 0 {
		t.Fatalf("transient files left behind: %v", left)
	}
}
