package jarcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestFilterMavenVersions(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		limit int
		want  []string
	}{
		{
			name:  "empty",
			input: nil,
			limit: 5,
			want:  []string{},
		},
		{
			name: "drops pre-release tags",
			input: []string{
				"1.19.4-45.1.0",
				"1.20.1-47.0.0-BETA",
				"1.20.1-47.1.0",
				"1.20.1-47.2.0",
			},
			limit: 5,
			want:  []string{"1.20.1-47.2.0", "1.19.4-45.1.0"},
		},
		{
			name: "one entry per minecraft version, limit respected",
			input: []string{
				"1.16.5-36.2.0",
				"1.18.2-40.2.0",
				"1.19.2-43.3.0",
				"1.19.4-45.1.0",
				"1.20.1-47.2.0",
				"1.20.2-48.1.0",
				"1.20.4-49.0.3",
			},
			limit: 3,
			want:  []string{"1.20.4-49.0.3", "1.20.2-48.1.0", "1.20.1-47.2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterMavenVersions(tt.input, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("filterMavenVersions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCatalogVanillaVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"versions":[
			{"id":"24w14a","type":"snapshot","releaseTime":"2024-04-02T10:00:00+00:00"},
			{"id":"1.20.1","type":"release","releaseTime":"2023-06-12T13:25:51+00:00"},
			{"id":"1.20.4","type":"release","releaseTime":"2023-12-07T12:56:20+00:00"}
		]}`)
	}))
	defer srv.Close()

	c := NewCatalog()
	c.client = srv.Client()
	c.manifestURL = srv.URL

	got, err := c.Versions(context.Background(), PlatformVanilla)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	want := []string{"1.20.4", "1.20.1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Versions() = %v, want releases newest first %v", got, want)
	}
}

func TestCatalogPaperVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"versions":["1.19.4","1.20.1","1.20.4"]}`)
	}))
	defer srv.Close()

	c := NewCatalog()
	c.client = srv.Client()
	c.paperBase = srv.URL

	got, err := c.Versions(context.Background(), PlatformPaper)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	want := []string{"1.20.4", "1.20.1", "1.19.4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Versions() = %v, want %v", got, want)
	}
}

func TestCatalogMavenVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>net.neoforged</groupId>
  <artifactId>neoforge</artifactId>
  <versioning>
    <versions>
      <version>20.2.88</version>
      <version>20.4.180</version>
      <version>20.4.237-beta</version>
      <version>20.4.237</version>
    </versions>
  </versioning>
</metadata>`)
	}))
	defer srv.Close()

	c := NewCatalog()
	c.client = srv.Client()
	c.metadataURL[PlatformNeoForge] = srv.URL

	got, err := c.Versions(context.Background(), PlatformNeoForge)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	want := []string{"20.4.237", "20.4.180", "20.2.88"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Versions() = %v, want %v", got, want)
	}
}

func TestCatalogUnsupportedPlatform(t *testing.T) {
	c := NewCatalog()
	if _, err := c.Versions(context.Background(), Platform("bukkit")); err == nil {
		t.Fatalf("Versions() expected error for unsupported platform")
	}
}
