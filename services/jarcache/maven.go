package jarcache

import (
	"context"
	"fmt"
)

// mavenResolver covers platforms published on a static Maven layout (forge,
// neoforge). There is no discovery call: URL and installer filename follow
// directly from the version string. A version that does not exist upstream
// is only detected when the download itself fails.
type mavenResolver struct {
	platform Platform
	base     string
}

func newMavenResolver(platform Platform, base string) *mavenResolver {
	return &mavenResolver{platform: platform, base: base}
}

func (r *mavenResolver) Resolve(_ context.Context, version, _ string) (Resolution, error) {
	url := fmt.Sprintf("%s/%s/%s-%s-installer.jar", r.base, version, r.platform, version)
	return Resolution{URL: url}, nil
}
