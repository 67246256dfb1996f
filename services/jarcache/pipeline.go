package jarcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// downloadClient carries the long transfer timeout. Discovery calls use the
// resolvers' own short-timeout client.
var downloadClient = &http.Client{Timeout: downloadTimeout}

// populate streams the artifact at originURL into a transient local file and
// hands it to the object store. The body is copied in chunks; the artifact is
// never held in memory. The temp file is removed on every path: origin
// failure, upload failure, and success alike, so repeated failures cannot
// leak disk. Cancelling ctx aborts the origin stream.
func (e *Engine) populate(ctx context.Context, originURL, key string) error {
	tmp, err := os.CreateTemp(e.workDir, strings.ReplaceAll(key, "/", "_")+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := e.fetchToFile(ctx, originURL, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		return err
	}

	uploadStart := time.Now()
	if err := e.store.UploadFile(ctx, e.bucket, key, tmpPath); err != nil {
		return fmt.Errorf("upload %q: %w", key, err)
	}

	e.metrics.DownloadedBytes.Add(float64(written))
	e.logger.Printf("INFO cached %s (%d bytes, upload took %s)", key, written, time.Since(uploadStart).Round(time.Millisecond))
	return nil
}

func (e *Engine) fetchToFile(ctx context.Context, originURL string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, originURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request %q: %w", originURL, err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %q: %w", originURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("download %q: unexpected status %d", originURL, resp.StatusCode)
	}

	written, err := io.Copy(dst, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("stream %q: %w", originURL, err)
	}
	return written, nil
}
