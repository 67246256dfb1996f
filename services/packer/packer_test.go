package packer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	jvs3 "jarvault/pkg/s3"
	"jarvault/pkg/signing"
)

type fakeStore struct {
	existing map[string]bool
	statErr  error
	uploads  map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}, uploads: map[string][]byte{}}
}

func (f *fakeStore) Stat(ctx context.Context, bucket, key string) (jvs3.Presence, error) {
	if f.statErr != nil {
		return jvs3.PresenceUnknown, f.statErr
	}
	if f.existing[key] {
		return jvs3.PresenceFound, nil
	}
	return jvs3.PresenceNotFound, nil
}

func (f *fakeStore) UploadFile(ctx context.Context, bucket, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func newTestSigner(t *testing.T) *signing.Signer {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	signer, err := signing.New(identity.String(), "")
	if err != nil {
		t.Fatalf("signing.New: %v", err)
	}
	return signer
}

func writeJar(t *testing.T, root, key string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}
}

func buildTestPack(t *testing.T, signer *signing.Signer) (string, map[string][]byte) {
	t.Helper()

	jars := map[string][]byte{
		"vanilla/1.21/server.jar":                 []byte("vanilla server bytes"),
		"paper/1.20.1/build-196.jar":              []byte("paper build bytes"),
		"forge/1.20.1/forge-1.20.1-installer.jar": []byte("forge installer bytes"),
	}

	jarsDir := t.TempDir()
	for key, content := range jars {
		writeJar(t, jarsDir, key, content)
	}

	output := filepath.Join(t.TempDir(), "packs", "test.tar.zst")
	manifest, err := Build(context.Background(), BuildConfig{
		JarsDir: jarsDir,
		Output:  output,
		Signer:  signer,
		Stdout:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(manifest.Entries) != len(jars) {
		t.Fatalf("manifest has %d entries, want %d", len(manifest.Entries), len(jars))
	}
	if manifest.Signature == "" {
		t.Fatal("manifest is unsigned")
	}
	return output, jars
}

func TestBuildManifestEntries(t *testing.T) {
	signer := newTestSigner(t)
	jarsDir := t.TempDir()
	content := []byte("paper build bytes")
	writeJar(t, jarsDir, "paper/1.20.1/build-196.jar", content)

	manifest, err := Build(context.Background(), BuildConfig{
		JarsDir: jarsDir,
		Output:  filepath.Join(t.TempDir(), "out.tar.zst"),
		Signer:  signer,
		Stdout:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Key != "paper/1.20.1/build-196.jar" {
		t.Fatalf("entry key = %q", entry.Key)
	}
	if entry.Platform != "paper" || entry.Version != "1.20.1" || entry.Build != "196" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Size != int64(len(content)) {
		t.Fatalf("entry size = %d, want %d", entry.Size, len(content))
	}
	sum := sha256.Sum256(content)
	if entry.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("entry sha256 = %q", entry.SHA256)
	}
}

func TestBuildRejectsForeignLayout(t *testing.T) {
	signer := newTestSigner(t)
	jarsDir := t.TempDir()
	writeJar(t, jarsDir, "bukkit/1.8/server.jar", []byte("x"))

	_, err := Build(context.Background(), BuildConfig{
		JarsDir: jarsDir,
		Output:  filepath.Join(t.TempDir(), "out.tar.zst"),
		Signer:  signer,
		Stdout:  &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected an error for an unsupported platform directory")
	}
}

func TestImportRoundTrip(t *testing.T) {
	signer := newTestSigner(t)
	packPath, jars := buildTestPack(t, signer)

	store := newFakeStore()
	manifest, err := Import(context.Background(), ImportConfig{
		PackPath: packPath,
		Bucket:   "jarvault",
		Store:    store,
		Signer:   signer,
		Stdout:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(manifest.Entries) != len(jars) {
		t.Fatalf("imported %d entries, want %d", len(manifest.Entries), len(jars))
	}

	for key, content := range jars {
		if !bytes.Equal(store.uploads[key], content) {
			t.Fatalf("upload for %q = %q, want %q", key, store.uploads[key], content)
		}
	}
}

func TestImportSkipsCachedJars(t *testing.T) {
	signer := newTestSigner(t)
	packPath, _ := buildTestPack(t, signer)

	store := newFakeStore()
	store.existing["vanilla/1.21/server.jar"] = true

	var out bytes.Buffer
	if _, err := Import(context.Background(), ImportConfig{
		PackPath: packPath,
		Bucket:   "jarvault",
		Store:    store,
		Signer:   signer,
		Stdout:   &out,
	}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	if _, ok := store.uploads["vanilla/1.21/server.jar"]; ok {
		t.Fatal("cached jar was re-uploaded")
	}
	if len(store.uploads) != 2 {
		t.Fatalf("uploaded %d jars, want 2", len(store.uploads))
	}
	if !strings.Contains(out.String(), "skipped vanilla/1.21/server.jar") {
		t.Fatalf("output missing skip notice: %s", out.String())
	}
}

func TestImportRejectsForeignSigner(t *testing.T) {
	packPath, _ := buildTestPack(t, newTestSigner(t))

	verifier := newTestSigner(t)
	_, err := Import(context.Background(), ImportConfig{
		PackPath: packPath,
		Bucket:   "jarvault",
		Store:    newFakeStore(),
		Signer:   verifier,
		Stdout:   &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected signature verification to fail for a foreign signer")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key          string
		wantPlatform string
		wantVersion  string
		wantBuild    string
		wantErr      bool
	}{
		{key: "vanilla/1.21/server.jar", wantPlatform: "vanilla", wantVersion: "1.21"},
		{key: "paper/1.20.1/build-196.jar", wantPlatform: "paper", wantVersion: "1.20.1", wantBuild: "196"},
		{key: "neoforge/20.4.237/neoforge-20.4.237-installer.jar", wantPlatform: "neoforge", wantVersion: "20.4.237"},
		{key: "paper/1.20.1/server.jar", wantErr: true},
		{key: "bukkit/1.8/server.jar", wantErr: true},
		{key: "vanilla/server.jar", wantErr: true},
		{key: "vanilla/1.21/readme.txt", wantErr: true},
	}

	for _, tc := range tests {
		platform, version, build, err := parseKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseKey(%q) expected an error", tc.key)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseKey(%q) error = %v", tc.key, err)
			continue
		}
		if string(platform) != tc.wantPlatform || version != tc.wantVersion || build != tc.wantBuild {
			t.Errorf("parseKey(%q) = %s/%s/%s", tc.key, platform, version, build)
		}
	}
}
