package jarcache

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// paperResolver resolves PaperMC jars through the project's REST API. The
// builds list for a version is ascending, so "latest" is the final entry.
// An explicit build number is used verbatim without checking it against the
// list; a bogus build surfaces as a download failure at the origin.
type paperResolver struct {
	client *http.Client
	base   string
}

func newPaperResolver(client *http.Client, base string) *paperResolver {
	return &paperResolver{client: client, base: base}
}

func (r *paperResolver) Resolve(ctx context.Context, version, build string) (Resolution, error) {
	target := build
	if build == "" || build == "latest" {
		var doc struct {
			Builds []int `json:"builds"`
		}
		url := fmt.Sprintf("%s/versions/%s", r.base, version)
		if err := fetchJSON(ctx, r.client, url, &doc); err != nil {
			return Resolution{}, fmt.Errorf("paper %s builds: %w", version, err)
		}
		if len(doc.Builds) == 0 {
			return Resolution{}, fmt.Errorf("paper %s: %w", version, ErrVersionNotFound)
		}
		target = strconv.Itoa(doc.Builds[len(doc.Builds)-1])
	}

	return Resolution{
		URL:   fmt.Sprintf("%s/versions/%s/builds/%s/download", r.base, version, target),
		Build: target,
	}, nil
}
