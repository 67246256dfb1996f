package packer

import (
	"context"
	"io"
	"time"

	jvs3 "jarvault/pkg/s3"
	"jarvault/pkg/signing"
)

// ObjectStore is the cache bucket surface Import needs. *s3.Client
// satisfies it.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, key string) (jvs3.Presence, error)
	UploadFile(ctx context.Context, bucket, key, path string) error
}

// BuildConfig configures pack creation.
type BuildConfig struct {
	// JarsDir holds jars laid out as cache keys, e.g.
	// paper/1.20.1/build-196.jar or vanilla/1.21/server.jar.
	JarsDir string
	Output  string
	Signer  *signing.Signer
	Now     func() time.Time
	Stdout  io.Writer
}

// ImportConfig configures pack import into the cache bucket.
type ImportConfig struct {
	PackPath string
	Bucket   string
	Store    ObjectStore
	Signer   *signing.Signer
	Stdout   io.Writer
}
