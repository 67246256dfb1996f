package jarcache

import (
	"fmt"
	"strings"
)

// Platform identifies one upstream distribution of server jars. The set is
// closed; dispatch over it happens through the engine's resolver table.
type Platform string

const (
	PlatformVanilla  Platform = "vanilla"
	PlatformPaper    Platform = "paper"
	PlatformForge    Platform = "forge"
	PlatformNeoForge Platform = "neoforge"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformVanilla, PlatformPaper, PlatformForge, PlatformNeoForge}
}

// ParsePlatform canonicalises a caller-supplied platform name.
func ParsePlatform(raw string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(raw))) {
	case PlatformVanilla:
		return PlatformVanilla, nil
	case PlatformPaper:
		return PlatformPaper, nil
	case PlatformForge:
		return PlatformForge, nil
	case PlatformNeoForge:
		return PlatformNeoForge, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, raw)
	}
}

// Key derives the storage path for one artifact. The same (platform, version,
// build) always produces the same key, so the key doubles as the cache's
// deduplication identity. For paper the build must already be concrete.
func (p Platform) Key(version, build string) string {
	switch p {
	case PlatformVanilla:
		return fmt.Sprintf("vanilla/%s/server.jar", version)
	case PlatformPaper:
		return fmt.Sprintf("paper/%s/build-%s.jar", version, build)
	default:
		return fmt.Sprintf("%s/%s/%s-%s-installer.jar", p, version, p, version)
	}
}

// buildDependent reports whether the storage key varies with the build.
// Only paper encodes the build in its key; everywhere else the key can be
// computed, and checked for existence, before any origin discovery.
func (p Platform) buildDependent() bool {
	return p == PlatformPaper
}
