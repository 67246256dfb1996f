// Package packer builds and imports signed jar packs for air-gapped cache
// seeding. A pack is a zstd-compressed tar holding a manifest plus jars laid
// out under their cache keys; Import verifies the signature and digests and
// uploads each jar directly into the cache bucket.
package packer

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	jvs3 "jarvault/pkg/s3"
	"jarvault/services/jarcache"
)

const (
	manifestFileName = "manifest.yaml"
	jarsTarPrefix    = "jars"
)

// Build assembles a signed pack from a directory of jars and writes the
// tar.zst archive to cfg.Output.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.JarsDir == "" {
		return nil, errors.New("jars directory is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(cfg.JarsDir)
	if err != nil {
		return nil, fmt.Errorf("stat jars dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("jars dir %q is not a directory", cfg.JarsDir)
	}

	entries, err := collectJars(ctx, cfg.JarsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no jars found to pack")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	manifest := &Manifest{
		Version:          "1",
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		Entries:          entries,
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	sig, err := cfg.Signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifest.Signature = sig

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writePack(cfg.Output, manifestBytes, cfg.JarsDir, entries); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote pack %s (%d jars)\n", cfg.Output, len(entries))
	return manifest, nil
}

// collectJars walks the jars directory and builds an entry per jar. Every
// relative path must parse as a valid cache key.
func collectJars(ctx context.Context, root string) ([]PackEntry, error) {
	var entries []PackEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		key := filepath.ToSlash(rel)

		platform, version, build, err := parseKey(key)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %q: %w", path, err)
		}
		hash := sha256.New()
		size, err := io.Copy(hash, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("hash %q: %w", path, err)
		}

		entries = append(entries, PackEntry{
			Key:      key,
			Platform: string(platform),
			Version:  version,
			Build:    build,
			Size:     size,
			SHA256:   hex.EncodeToString(hash.Sum(nil)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// parseKey splits a cache key into its platform, version and optional build.
// Keys look like vanilla/1.21/server.jar or paper/1.20.1/build-196.jar.
func parseKey(key string) (jarcache.Platform, string, string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("jar path %q does not match platform/version/name.jar", key)
	}

	platform, err := jarcache.ParsePlatform(parts[0])
	if err != nil {
		return "", "", "", fmt.Errorf("jar path %q: %w", key, err)
	}

	version := parts[1]
	if version == "" {
		return "", "", "", fmt.Errorf("jar path %q has an empty version", key)
	}

	name := parts[2]
	if !strings.HasSuffix(strings.ToLower(name), ".jar") {
		return "", "", "", fmt.Errorf("jar path %q does not end in .jar", key)
	}

	build := ""
	if platform == jarcache.PlatformPaper {
		trimmed := strings.TrimSuffix(name, ".jar")
		b, ok := strings.CutPrefix(trimmed, "build-")
		if !ok || b == "" {
			return "", "", "", fmt.Errorf("paper jar %q must be named build-<n>.jar", key)
		}
		build = b
	}

	return platform, version, build, nil
}

func writePack(output string, manifest []byte, jarsDir string, entries []PackEntry) error {
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	defer encoder.Close()

	tw := tar.NewWriter(encoder)
	defer tw.Close()

	manifestHeader := &tar.Header{
		Name:     manifestFileName,
		Mode:     0o644,
		Size:     int64(len(manifest)),
		ModTime:  time.Now().UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(manifestHeader); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("write manifest body: %w", err)
	}

	for _, entry := range entries {
		fullPath := filepath.Join(jarsDir, filepath.FromSlash(entry.Key))
		info, err := os.Stat(fullPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", entry.Key, err)
		}
		jar, err := os.Open(fullPath)
		if err != nil {
			return fmt.Errorf("open %q: %w", entry.Key, err)
		}

		header := &tar.Header{
			Name:     filepath.ToSlash(filepath.Join(jarsTarPrefix, entry.Key)),
			Mode:     int64(info.Mode().Perm()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			jar.Close()
			return fmt.Errorf("write header for %q: %w", entry.Key, err)
		}
		if _, err := io.Copy(tw, jar); err != nil {
			jar.Close()
			return fmt.Errorf("copy %q: %w", entry.Key, err)
		}
		jar.Close()
	}

	return nil
}

// Import verifies a pack and uploads its jars into the cache bucket under
// their manifest keys. Jars already present in the bucket are skipped.
func Import(ctx context.Context, cfg ImportConfig) (*Manifest, error) {
	if cfg.PackPath == "" {
		return nil, errors.New("pack file is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("object store is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest, files, cleanup, err := extractPack(ctx, cfg.PackPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	fmt.Fprintf(cfg.Stdout, "verified manifest signed at %s\n", manifest.CreatedAt.Format(time.RFC3339))

	for _, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, _, _, err := parseKey(entry.Key); err != nil {
			return nil, err
		}

		tarPath := filepath.ToSlash(filepath.Join(jarsTarPrefix, entry.Key))
		tempPath, ok := files[tarPath]
		if !ok {
			return nil, fmt.Errorf("jar %q missing from archive", entry.Key)
		}

		if err := validateEntry(tempPath, entry); err != nil {
			return nil, err
		}

		presence, err := cfg.Store.Stat(ctx, cfg.Bucket, entry.Key)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", entry.Key, err)
		}
		if presence == jvs3.PresenceFound {
			fmt.Fprintf(cfg.Stdout, "skipped %s (already cached)\n", entry.Key)
			continue
		}

		if err := cfg.Store.UploadFile(ctx, cfg.Bucket, entry.Key, tempPath); err != nil {
			return nil, fmt.Errorf("upload %q: %w", entry.Key, err)
		}

		fmt.Fprintf(cfg.Stdout, "uploaded %s (%d bytes)\n", entry.Key, entry.Size)
	}

	return manifest, nil
}

// extractPack unpacks the archive into a temp dir and returns the parsed
// manifest plus a map of tar entry names to extracted paths.
func extractPack(ctx context.Context, packPath string) (*Manifest, map[string]string, func(), error) {
	packFile, err := os.Open(packPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open pack: %w", err)
	}
	defer packFile.Close()

	decoder, err := zstd.NewReader(packFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	tempDir, err := os.MkdirTemp("", "jarvault-pack-*")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tempDir) }

	tr := tar.NewReader(decoder)

	var (
		manifestBytes []byte
		files         = map[string]string{}
	)

	for {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("read tar entry: %w", err)
		}

		name := filepath.Clean(header.Name)
		if header.Typeflag != tar.TypeReg {
			continue
		}

		if name == manifestFileName {
			data, err := io.ReadAll(tr)
			if err != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("read manifest: %w", err)
			}
			manifestBytes = data
			continue
		}

		targetPath := filepath.Join(tempDir, name)
		if !strings.HasPrefix(targetPath, tempDir) {
			cleanup()
			return nil, nil, nil, fmt.Errorf("invalid entry path %q", name)
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("mkdir %q: %w", filepath.Dir(targetPath), err)
		}
		out, err := os.Create(targetPath)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("create temp file for %q: %w", name, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			cleanup()
			return nil, nil, nil, fmt.Errorf("write temp file for %q: %w", name, err)
		}
		out.Close()

		files[filepath.ToSlash(name)] = targetPath
	}

	if len(manifestBytes) == 0 {
		cleanup()
		return nil, nil, nil, errors.New("pack missing manifest.yaml")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != "1" {
		cleanup()
		return nil, nil, nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		cleanup()
		return nil, nil, nil, errors.New("manifest missing signature")
	}

	return &manifest, files, cleanup, nil
}

func validateEntry(path string, entry PackEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", entry.Key, err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return fmt.Errorf("hash %q: %w", entry.Key, err)
	}
	if size != entry.Size {
		return fmt.Errorf("size mismatch for %q: expected %d got %d", entry.Key, entry.Size, size)
	}
	computed := hex.EncodeToString(hash.Sum(nil))
	if !strings.EqualFold(computed, entry.SHA256) {
		return fmt.Errorf("sha256 mismatch for %q", entry.Key)
	}
	return nil
}
